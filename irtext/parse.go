package irtext

import (
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/irtext/internal/token"
)

var scalarTypes = map[string]*ir.Type{
	"void": ir.Void,
	"i1":   ir.I1,
	"i8":   ir.I8,
	"i16":  ir.I16,
	"i32":  ir.I32,
	"i64":  ir.I64,
	"f32":  ir.F32,
	"f64":  ir.F64,
	"ptr":  ir.Ptr,
}

type parser struct {
	prog   *ir.Program
	fn     *ir.Function
	locals map[string]int
	blocks map[string]*ir.Block
}

// Parse reads a program in IR text form.
func Parse(src string) (*ir.Program, error) {
	nodes, err := readAll(token.Tokenize(src))
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 || nodes[0].head() != "program" {
		line := 1
		if len(nodes) > 0 {
			line = nodes[0].line
		}
		return nil, errors.ParseFailed(line, "expected a single (program ...) form")
	}
	p := &parser{}
	return p.program(nodes[0])
}

func (p *parser) program(n *node) (*ir.Program, error) {
	items := n.list[1:]
	name := ""
	if len(items) > 0 && items[0].atom {
		s, err := p.name(items[0])
		if err != nil {
			return nil, err
		}
		name = s
		items = items[1:]
	}
	p.prog = ir.NewProgram(name)

	var typeDefs, globals, funcs, ctors []*node
	for _, it := range items {
		switch it.head() {
		case "type":
			typeDefs = append(typeDefs, it)
		case "global":
			globals = append(globals, it)
		case "func":
			funcs = append(funcs, it)
		case "ctor":
			ctors = append(ctors, it)
		default:
			return nil, errors.ParseFailed(it.line, "unexpected %s at program level", it.describe())
		}
	}

	if err := p.declareTypes(typeDefs); err != nil {
		return nil, err
	}

	globalInits := make(map[*ir.Global]*node)
	for _, g := range globals {
		if err := p.declareGlobal(g, globalInits); err != nil {
			return nil, err
		}
	}
	bodies := make(map[*ir.Function]*node)
	for _, f := range funcs {
		if err := p.declareFunc(f, bodies); err != nil {
			return nil, err
		}
	}

	for _, g := range p.prog.Globals {
		init, ok := globalInits[g]
		if !ok {
			continue
		}
		c, err := p.constant(init, g.Type)
		if err != nil {
			return nil, err
		}
		g.Init = c
	}
	for _, f := range p.prog.Funcs {
		if body, ok := bodies[f]; ok {
			if err := p.body(f, body); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range ctors {
		if err := p.ctor(c); err != nil {
			return nil, err
		}
	}
	return p.prog, nil
}

func (p *parser) name(n *node) (string, error) {
	switch {
	case n.isAtom(token.Ident):
		return n.tok.Value, nil
	case n.isAtom(token.String):
		s, err := strconv.Unquote(`"` + n.tok.Value + `"`)
		if err != nil {
			return "", errors.ParseFailed(n.line, "bad string literal: %v", err)
		}
		return s, nil
	}
	return "", errors.ParseFailed(n.line, "expected a name, got %s", n.describe())
}

// symbol returns the name of an @symbol atom.
func (p *parser) symbol(n *node) (string, error) {
	if n.isAtom(token.Ident) && strings.HasPrefix(n.tok.Value, "@") && len(n.tok.Value) > 1 {
		return n.tok.Value[1:], nil
	}
	return "", errors.ParseFailed(n.line, "expected @symbol, got %s", n.describe())
}

func (p *parser) declareTypes(defs []*node) error {
	bodies := make([]*node, len(defs))
	shells := make([]*ir.Type, len(defs))
	for i, d := range defs {
		if len(d.list) != 3 || !d.list[1].isAtom(token.Ident) {
			return errors.ParseFailed(d.line, "expected (type Name (struct ...))")
		}
		name := d.list[1].tok.Value
		if _, ok := scalarTypes[name]; ok || strings.ContainsAny(name[:1], "@%") {
			return errors.ParseFailed(d.line, "invalid type name %q", name)
		}
		shells[i] = ir.NamedStruct(name)
		if err := p.prog.AddType(shells[i]); err != nil {
			return errors.ParseFailed(d.line, "%v", err)
		}
		bodies[i] = d.list[2]
	}
	for i, b := range bodies {
		if b.head() != "struct" {
			return errors.ParseFailed(b.line, "type %s must be a struct", shells[i].Name)
		}
		for _, f := range b.list[1:] {
			ft, err := p.typ(f)
			if err != nil {
				return err
			}
			shells[i].Fields = append(shells[i].Fields, ft)
		}
	}
	return nil
}

func (p *parser) typ(n *node) (*ir.Type, error) {
	if n.atom {
		if !n.isAtom(token.Ident) {
			return nil, errors.ParseFailed(n.line, "expected a type, got %s", n.describe())
		}
		if t, ok := scalarTypes[n.tok.Value]; ok {
			return t, nil
		}
		if t := p.prog.Type(n.tok.Value); t != nil {
			return t, nil
		}
		return nil, errors.ParseFailed(n.line, "unknown type %s", n.tok.Value)
	}

	switch n.head() {
	case "array":
		if len(n.list) != 3 || !n.list[1].isAtom(token.Number) {
			return nil, errors.ParseFailed(n.line, "expected (array N T)")
		}
		count, err := strconv.ParseUint(n.list[1].tok.Value, 0, 32)
		if err != nil {
			return nil, errors.ParseFailed(n.line, "bad array length %s", n.list[1].tok.Value)
		}
		elem, err := p.typ(n.list[2])
		if err != nil {
			return nil, err
		}
		return ir.Array(elem, uint32(count)), nil
	case "struct":
		fields, err := p.types(n.list[1:])
		if err != nil {
			return nil, err
		}
		return ir.Struct(fields...), nil
	case "func":
		if len(n.list) < 2 {
			return nil, errors.ParseFailed(n.line, "expected (func R P...)")
		}
		ts, err := p.types(n.list[1:])
		if err != nil {
			return nil, err
		}
		return ir.Func(ts[0], ts[1:]...), nil
	}
	return nil, errors.ParseFailed(n.line, "expected a type, got %s", n.describe())
}

func (p *parser) types(ns []*node) ([]*ir.Type, error) {
	out := make([]*ir.Type, len(ns))
	for i, n := range ns {
		t, err := p.typ(n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// declareGlobal handles (global @name TYPE [INIT] [readonly] [external] [synthetic]).
// A global without INIT is an external declaration.
func (p *parser) declareGlobal(n *node, inits map[*ir.Global]*node) error {
	if len(n.list) < 3 {
		return errors.ParseFailed(n.line, "expected (global @name TYPE ...)")
	}
	name, err := p.symbol(n.list[1])
	if err != nil {
		return err
	}
	t, err := p.typ(n.list[2])
	if err != nil {
		return err
	}
	g := &ir.Global{Name: name, Type: t}

	var init *node
	for _, it := range n.list[3:] {
		if it.isAtom(token.Ident) {
			switch it.tok.Value {
			case "readonly":
				g.ReadOnly = true
				continue
			case "external":
				g.Linkage = ir.LinkageExternal
				continue
			case "synthetic":
				g.Synthetic = true
				continue
			}
		}
		if init != nil {
			return errors.ParseFailed(it.line, "global @%s has more than one initializer", name)
		}
		init = it
	}
	if init != nil {
		inits[g] = init
	} else {
		g.Linkage = ir.LinkageExternal
	}
	if err := p.prog.AddGlobal(g); err != nil {
		return errors.ParseFailed(n.line, "%v", err)
	}
	return nil
}

// declareFunc reads a function header; the body is parsed once every
// symbol is known.
func (p *parser) declareFunc(n *node, bodies map[*ir.Function]*node) error {
	if len(n.list) < 2 {
		return errors.ParseFailed(n.line, "expected (func @name ...)")
	}
	name, err := p.symbol(n.list[1])
	if err != nil {
		return err
	}

	var params []ir.Local
	var locals []ir.Local
	result := ir.Void
	hasBody := false
	for _, it := range n.list[2:] {
		switch it.head() {
		case "param", "local":
			decl, err := p.localDecl(it)
			if err != nil {
				return err
			}
			if it.head() == "param" {
				if len(locals) > 0 {
					return errors.ParseFailed(it.line, "param after local in @%s", name)
				}
				params = append(params, decl...)
			} else {
				locals = append(locals, decl...)
			}
		case "result":
			if len(it.list) != 2 {
				return errors.ParseFailed(it.line, "expected (result T)")
			}
			if result, err = p.typ(it.list[1]); err != nil {
				return err
			}
		case "block":
			hasBody = true
		default:
			return errors.ParseFailed(it.line, "unexpected %s in @%s", it.describe(), name)
		}
	}

	paramTypes := make([]*ir.Type, len(params))
	for i, l := range params {
		paramTypes[i] = l.Type
	}
	fn := &ir.Function{Name: name, Sig: ir.Func(result, paramTypes...)}
	fn.Locals = append(params, locals...)
	if err := p.prog.AddFunc(fn); err != nil {
		return errors.ParseFailed(n.line, "%v", err)
	}
	if hasBody {
		bodies[fn] = n
	}
	return nil
}

// localDecl reads (param %name T), (param T...) and the local equivalents.
func (p *parser) localDecl(n *node) ([]ir.Local, error) {
	items := n.list[1:]
	if len(items) == 2 && items[0].isAtom(token.Ident) && strings.HasPrefix(items[0].tok.Value, "%") {
		t, err := p.typ(items[1])
		if err != nil {
			return nil, err
		}
		return []ir.Local{{Name: items[0].tok.Value[1:], Type: t}}, nil
	}
	ts, err := p.types(items)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Local, len(ts))
	for i, t := range ts {
		out[i] = ir.Local{Type: t}
	}
	return out, nil
}

func (p *parser) body(fn *ir.Function, n *node) error {
	p.fn = fn
	p.locals = make(map[string]int, len(fn.Locals))
	for i, l := range fn.Locals {
		if l.Name == "" {
			continue
		}
		if _, dup := p.locals[l.Name]; dup {
			return errors.ParseFailed(n.line, "duplicate local %%%s in @%s", l.Name, fn.Name)
		}
		p.locals[l.Name] = i
	}

	p.blocks = make(map[string]*ir.Block)
	var blockNodes []*node
	for _, it := range n.list[2:] {
		if it.head() != "block" {
			continue
		}
		if len(it.list) < 2 || !it.list[1].isAtom(token.Ident) {
			return errors.ParseFailed(it.line, "expected (block label ...)")
		}
		label := it.list[1].tok.Value
		if _, dup := p.blocks[label]; dup {
			return errors.ParseFailed(it.line, "duplicate block %s in @%s", label, fn.Name)
		}
		b := &ir.Block{Label: label}
		p.blocks[label] = b
		fn.Blocks = append(fn.Blocks, b)
		blockNodes = append(blockNodes, it)
	}

	for i, bn := range blockNodes {
		for _, in := range bn.list[2:] {
			instr, err := p.instr(in)
			if err != nil {
				return err
			}
			fn.Blocks[i].Instrs = append(fn.Blocks[i].Instrs, instr)
		}
	}
	return nil
}

func (p *parser) ctor(n *node) error {
	if len(n.list) < 2 || len(n.list) > 3 {
		return errors.ParseFailed(n.line, "expected (ctor @func [priority])")
	}
	name, err := p.symbol(n.list[1])
	if err != nil {
		return err
	}
	fn := p.prog.Func(name)
	if fn == nil {
		return errors.ParseFailed(n.line, "constructor @%s is not a function", name)
	}
	prio := ir.DefaultPriority
	if len(n.list) == 3 {
		if !n.list[2].isAtom(token.Number) {
			return errors.ParseFailed(n.line, "bad constructor priority %s", n.list[2].describe())
		}
		v, err := strconv.Atoi(n.list[2].tok.Value)
		if err != nil {
			return errors.ParseFailed(n.line, "bad constructor priority %s", n.list[2].tok.Value)
		}
		prio = v
	}
	p.prog.AddConstructor(fn, prio)
	return nil
}

func (p *parser) local(n *node) (int, error) {
	if !n.isAtom(token.Ident) || !strings.HasPrefix(n.tok.Value, "%") {
		return 0, errors.ParseFailed(n.line, "expected %%local, got %s", n.describe())
	}
	name := n.tok.Value[1:]
	if i, ok := p.locals[name]; ok {
		return i, nil
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(p.fn.Locals) {
		return i, nil
	}
	return 0, errors.ParseFailed(n.line, "unknown local %s in @%s", n.tok.Value, p.fn.Name)
}

func (p *parser) label(n *node) (*ir.Block, error) {
	if n.isAtom(token.Ident) {
		if b, ok := p.blocks[n.tok.Value]; ok {
			return b, nil
		}
	}
	return nil, errors.ParseFailed(n.line, "unknown block %s in @%s", n.describe(), p.fn.Name)
}

// operand reads a %local or a constant. hint types untyped literals; it
// may be nil where the instruction gives no type.
func (p *parser) operand(n *node, hint *ir.Type) (ir.Operand, error) {
	if n.isAtom(token.Ident) && strings.HasPrefix(n.tok.Value, "%") {
		i, err := p.local(n)
		return ir.L(i), err
	}
	c, err := p.constant(n, hint)
	if err != nil {
		return ir.Operand{}, err
	}
	return ir.C(c), nil
}

func isNumeric(n *node) bool {
	if n.isAtom(token.Number) {
		return true
	}
	if !n.isAtom(token.Ident) {
		return false
	}
	switch strings.TrimLeft(n.tok.Value, "+-") {
	case "inf", "nan":
		return true
	}
	return false
}

// constant reads a constant of type t. With a nil t only self-typed
// forms are accepted.
func (p *parser) constant(n *node, t *ir.Type) (ir.Constant, error) {
	if n.atom {
		switch {
		case n.isAtom(token.Ident) && n.tok.Value == "null":
			if t != nil && t.Kind != ir.KindPointer {
				return nil, errors.ParseFailed(n.line, "null is not a %s", t)
			}
			return ir.Null(), nil
		case n.isAtom(token.Ident) && n.tok.Value == "zero":
			if t == nil {
				return nil, errors.ParseFailed(n.line, "zero needs a known type here")
			}
			return &ir.ZeroConst{Typ: t}, nil
		case n.isAtom(token.Ident) && strings.HasPrefix(n.tok.Value, "@"):
			if t != nil && t.Kind != ir.KindPointer {
				return nil, errors.ParseFailed(n.line, "%s is a pointer, not %s", n.tok.Value, t)
			}
			return p.ref(n, 0)
		case isNumeric(n):
			if t == nil {
				return nil, errors.ParseFailed(n.line, "untyped literal %s; write (TYPE %s)", n.tok.Value, n.tok.Value)
			}
			return p.literal(n, t)
		}
		return nil, errors.ParseFailed(n.line, "expected a constant, got %s", n.describe())
	}

	head := n.head()
	switch head {
	case "agg":
		return p.aggregate(n, t)
	case "ref":
		if len(n.list) != 3 || !n.list[2].isAtom(token.Number) {
			return nil, errors.ParseFailed(n.line, "expected (ref @global OFFSET)")
		}
		off, err := strconv.ParseInt(n.list[2].tok.Value, 0, 64)
		if err != nil {
			return nil, errors.ParseFailed(n.line, "bad offset %s", n.list[2].tok.Value)
		}
		return p.ref(n.list[1], off)
	}

	lt, ok := scalarTypes[head]
	if !ok || lt.Kind == ir.KindVoid || lt.Kind == ir.KindPointer {
		return nil, errors.ParseFailed(n.line, "expected a constant, got %s", n.describe())
	}
	if t != nil && !t.Equal(lt) {
		return nil, errors.ParseFailed(n.line, "%s constant where %s is expected", lt, t)
	}
	if len(n.list) == 3 && n.list[1].isAtom(token.Ident) && n.list[1].tok.Value == "raw" && lt.Kind == ir.KindFloat {
		bits, err := strconv.ParseUint(n.list[2].tok.Value, 0, 64)
		if err != nil {
			return nil, errors.ParseFailed(n.line, "bad raw float bits %s", n.list[2].tok.Value)
		}
		return &ir.FloatConst{Typ: lt, Bits: ir.Mask(bits, lt.Bits)}, nil
	}
	if len(n.list) != 2 || !isNumeric(n.list[1]) {
		return nil, errors.ParseFailed(n.line, "expected (%s VALUE)", head)
	}
	return p.literal(n.list[1], lt)
}

func (p *parser) literal(n *node, t *ir.Type) (ir.Constant, error) {
	s := strings.ReplaceAll(n.tok.Value, "_", "")
	switch t.Kind {
	case ir.KindInt:
		if v, err := strconv.ParseInt(s, 0, 64); err == nil {
			return ir.NewInt(t, v), nil
		}
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, errors.ParseFailed(n.line, "bad integer %s", n.tok.Value)
		}
		return &ir.IntConst{Typ: t, Value: ir.Mask(v, t.Bits)}, nil
	case ir.KindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && !math.IsInf(v, 0) {
			return nil, errors.ParseFailed(n.line, "bad float %s", n.tok.Value)
		}
		return ir.NewFloat(t, v), nil
	}
	return nil, errors.ParseFailed(n.line, "numeric literal %s where %s is expected", n.tok.Value, t)
}

func (p *parser) ref(n *node, off int64) (ir.Constant, error) {
	name, err := p.symbol(n)
	if err != nil {
		return nil, err
	}
	if g := p.prog.Global(name); g != nil {
		return &ir.GlobalRef{Global: g, Offset: off}, nil
	}
	if f := p.prog.Func(name); f != nil {
		if off != 0 {
			return nil, errors.ParseFailed(n.line, "function reference @%s with offset", name)
		}
		return &ir.FuncRef{Func: f}, nil
	}
	return nil, errors.ParseFailed(n.line, "unknown symbol @%s", name)
}

func (p *parser) aggregate(n *node, t *ir.Type) (ir.Constant, error) {
	if t == nil {
		return nil, errors.ParseFailed(n.line, "aggregate needs a known type here")
	}
	elems := n.list[1:]
	var elemType func(i int) *ir.Type
	switch t.Kind {
	case ir.KindArray:
		if uint32(len(elems)) != t.Len {
			return nil, errors.ParseFailed(n.line, "%s needs %d elements, got %d", t, t.Len, len(elems))
		}
		elemType = func(int) *ir.Type { return t.Elem }
	case ir.KindStruct:
		if len(elems) != len(t.Fields) {
			return nil, errors.ParseFailed(n.line, "%s needs %d fields, got %d", t, len(t.Fields), len(elems))
		}
		elemType = func(i int) *ir.Type { return t.Fields[i] }
	default:
		return nil, errors.ParseFailed(n.line, "aggregate where %s is expected", t)
	}

	out := &ir.AggregateConst{Typ: t, Elems: make([]ir.Constant, len(elems))}
	for i, e := range elems {
		c, err := p.constant(e, elemType(i))
		if err != nil {
			return nil, err
		}
		out.Elems[i] = c
	}
	return out, nil
}
