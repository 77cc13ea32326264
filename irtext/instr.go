package irtext

import (
	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/irtext/internal/token"
)

// instr reads (set %x (op ...)) or a bare (op ...).
func (p *parser) instr(n *node) (*ir.Instr, error) {
	if n.head() == "set" {
		if len(n.list) != 3 || n.list[2].atom {
			return nil, errors.ParseFailed(n.line, "expected (set %%local (op ...))")
		}
		dst, err := p.local(n.list[1])
		if err != nil {
			return nil, err
		}
		in, err := p.op(n.list[2], dst)
		if err != nil {
			return nil, err
		}
		if !producesValue(in) {
			return nil, errors.ParseFailed(n.line, "%s defines no value", in.Op)
		}
		return in, nil
	}
	if n.atom {
		return nil, errors.ParseFailed(n.line, "expected an instruction, got %s", n.describe())
	}
	return p.op(n, -1)
}

func producesValue(in *ir.Instr) bool {
	switch in.Op {
	case ir.OpStore, ir.OpBr, ir.OpBrIf, ir.OpRet, ir.OpUnreachable:
		return false
	case ir.OpCall:
		return in.Callee.Sig.Result.Kind != ir.KindVoid
	case ir.OpCallIndirect:
		return in.Type.Result.Kind != ir.KindVoid
	}
	return true
}

// cursor walks the arguments of one instruction.
type cursor struct {
	p    *parser
	n    *node
	args []*node
}

func (c *cursor) more() bool { return len(c.args) > 0 }

func (c *cursor) next(what string) (*node, error) {
	if len(c.args) == 0 {
		return nil, errors.ParseFailed(c.n.line, "%s: missing %s", c.n.describe(), what)
	}
	a := c.args[0]
	c.args = c.args[1:]
	return a, nil
}

func (c *cursor) typ() (*ir.Type, error) {
	a, err := c.next("type")
	if err != nil {
		return nil, err
	}
	return c.p.typ(a)
}

func (c *cursor) operand(hint *ir.Type) (ir.Operand, error) {
	a, err := c.next("operand")
	if err != nil {
		return ir.Operand{}, err
	}
	return c.p.operand(a, hint)
}

func (c *cursor) label() (*ir.Block, error) {
	a, err := c.next("label")
	if err != nil {
		return nil, err
	}
	return c.p.label(a)
}

func (c *cursor) done() error {
	if len(c.args) > 0 {
		return errors.ParseFailed(c.args[0].line, "%s: unexpected %s", c.n.describe(), c.args[0].describe())
	}
	return nil
}

func (p *parser) op(n *node, dst int) (*ir.Instr, error) {
	name := n.head()
	op, ok := ir.LookupOp(name)
	if !ok {
		return nil, errors.ParseFailed(n.line, "unknown instruction %s", n.describe())
	}
	in := &ir.Instr{Op: op, Dst: dst}
	c := &cursor{p: p, n: n, args: n.list[1:]}
	var dstType *ir.Type
	if dst >= 0 {
		dstType = p.fn.Locals[dst].Type
	}

	var err error
	args := func(hints ...*ir.Type) {
		for _, h := range hints {
			if err != nil {
				return
			}
			var o ir.Operand
			o, err = c.operand(h)
			in.Args = append(in.Args, o)
		}
	}

	switch {
	case op == ir.OpMove:
		args(dstType)
	case op == ir.OpBr:
		var b *ir.Block
		if b, err = c.label(); err == nil {
			in.Targets = []*ir.Block{b}
		}
	case op == ir.OpBrIf:
		args(ir.I1)
		for i := 0; i < 2; i++ {
			if err != nil {
				break
			}
			var b *ir.Block
			if b, err = c.label(); err == nil {
				in.Targets = append(in.Targets, b)
			}
		}
	case op == ir.OpRet:
		if c.more() && p.fn.Sig.Result.Kind != ir.KindVoid {
			args(p.fn.Sig.Result)
		}
	case op == ir.OpUnreachable:
	case op == ir.OpCall:
		err = p.call(c, in)
	case op == ir.OpCallIndirect:
		if in.Type, err = c.typ(); err != nil {
			break
		}
		if in.Type.Kind != ir.KindFunc {
			err = errors.ParseFailed(n.line, "call_indirect needs a func type, got %s", in.Type)
			break
		}
		args(ir.Ptr)
		args(in.Type.Params...)
	case op == ir.OpICmp || op == ir.OpFCmp:
		err = p.compare(c, in)
	default:
		if in.Type, err = c.typ(); err != nil {
			break
		}
		switch {
		case op == ir.OpAlloca:
		case op == ir.OpNew:
			args(ir.I32)
		case op == ir.OpLoad:
			args(ir.Ptr)
		case op == ir.OpStore:
			args(in.Type, ir.Ptr)
		case op == ir.OpGEP:
			args(ir.Ptr)
			for err == nil && c.more() {
				args(ir.I32)
			}
		case op == ir.OpPtrAdd:
			args(ir.Ptr, ir.I32)
		case op.IsBinary():
			args(in.Type, in.Type)
		case op.IsCast():
			args(nil)
		case op == ir.OpSelect:
			args(ir.I1, in.Type, in.Type)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return in, nil
}

func (p *parser) call(c *cursor, in *ir.Instr) error {
	a, err := c.next("callee")
	if err != nil {
		return err
	}
	name, err := p.symbol(a)
	if err != nil {
		return err
	}
	callee := p.prog.Func(name)
	if callee == nil {
		return errors.ParseFailed(a.line, "call of unknown function @%s", name)
	}
	in.Callee = callee
	in.Type = callee.Sig.Result
	for _, pt := range callee.Sig.Params {
		o, err := c.operand(pt)
		if err != nil {
			return err
		}
		in.Args = append(in.Args, o)
	}
	return nil
}

func (p *parser) compare(c *cursor, in *ir.Instr) error {
	a, err := c.next("predicate")
	if err != nil {
		return err
	}
	pred, ok := ir.LookupPred(a.tok.Value)
	if !a.isAtom(token.Ident) || !ok || pred.IsFloat() != (in.Op == ir.OpFCmp) {
		return errors.ParseFailed(a.line, "bad %s predicate %s", in.Op, a.describe())
	}
	in.Pred = pred
	if in.Type, err = c.typ(); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		o, err := c.operand(in.Type)
		if err != nil {
			return err
		}
		in.Args = append(in.Args, o)
	}
	return nil
}
