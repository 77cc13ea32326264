package interp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/sandbox"
	"github.com/wippyai/ctoreval/vmem"
)

const (
	DefaultMaxSteps     = 10_000_000
	DefaultMaxCallDepth = 256

	// cancellation is checked every pollInterval instructions
	pollInterval = 1024
)

// Value is the content of a register: an integer masked to its width, the
// IEEE bits of a float, or a sandbox address.
type Value uint64

// Memory is the sandbox surface the interpreter runs against.
// *sandbox.Sandbox implements it.
type Memory interface {
	Layout() *ir.Layout
	Allocate(size uint32) (vmem.Addr, error)
	AllocateStack(size uint32) (vmem.Addr, error)
	Release(addr vmem.Addr) error
	BlockSize(addr vmem.Addr) (uint32, bool)
	RecordTypedAllocation(addr vmem.Addr, elem *ir.Type, count uint32) error
	TypedAllocation(addr vmem.Addr) (sandbox.TypedAllocation, bool)
	Read(addr vmem.Addr, n uint32) ([]byte, error)
	Write(addr vmem.Addr, data []byte) error
	GlobalAddr(g *ir.Global) (vmem.Addr, bool)
	FuncAddr(f *ir.Function) (vmem.Addr, bool)
	FuncAt(addr vmem.Addr) (*ir.Function, bool)
}

var _ Memory = (*sandbox.Sandbox)(nil)

// Hooks are callbacks invoked during execution.
type Hooks struct {
	// OnStore runs after every successful store, memset or memcpy with the
	// destination address.
	OnStore func(addr vmem.Addr)
}

// Config bounds and customizes execution.
type Config struct {
	// Ignore reports whether a call to an undefined external function may
	// be skipped. Skipped calls return zero.
	Ignore func(name string) bool

	// MaxSteps bounds the number of executed instructions; 0 disables it.
	MaxSteps int64

	// MaxCallDepth bounds nested calls; 0 disables it.
	MaxCallDepth int
}

// DefaultConfig returns limits suitable for constructor bodies.
func DefaultConfig() Config {
	return Config{
		MaxSteps:     DefaultMaxSteps,
		MaxCallDepth: DefaultMaxCallDepth,
	}
}

// Engine executes IR functions against a Memory.
// It is not safe for concurrent use.
type Engine struct {
	ctx    context.Context
	mem    Memory
	layout *ir.Layout
	hooks  Hooks
	cfg    Config
	steps  int64
	depth  int
}

// New creates an engine over mem.
func New(mem Memory, hooks Hooks, cfg Config) *Engine {
	return &Engine{
		mem:    mem,
		layout: mem.Layout(),
		hooks:  hooks,
		cfg:    cfg,
	}
}

// Steps returns the number of instructions executed by the last Execute.
func (e *Engine) Steps() int64 { return e.steps }

// Execute runs fn to completion with the given arguments and returns its
// result, or zero for void functions. Any unsupported operation aborts the
// run with an error; partial effects stay in memory for the caller to
// discard.
func (e *Engine) Execute(ctx context.Context, fn *ir.Function, args ...Value) (Value, error) {
	if len(args) != fn.NumParams() {
		return 0, errors.InvalidInput(errors.PhaseInterpret,
			fmt.Sprintf("@%s takes %d arguments, got %d", fn.Name, fn.NumParams(), len(args)))
	}
	e.ctx = ctx
	e.steps = 0
	e.depth = 0
	defer func() { e.ctx = nil }()

	return e.call(fn, args)
}

type frame struct {
	fn    *ir.Function
	block *ir.Block
	regs  []Value
	stack []vmem.Addr
}

type continuation int

const (
	kNext continuation = iota
	kReturn
	kJump
)

func (e *Engine) call(fn *ir.Function, args []Value) (result Value, err error) {
	if fn.IsDeclaration() {
		return e.callExternal(fn, args)
	}
	if e.cfg.MaxCallDepth > 0 && e.depth >= e.cfg.MaxCallDepth {
		return 0, errors.StepLimit("call depth", int64(e.cfg.MaxCallDepth))
	}
	e.depth++

	fr := &frame{
		fn:    fn,
		block: fn.Blocks[0],
		regs:  make([]Value, len(fn.Locals)),
	}
	copy(fr.regs, args)

	defer func() {
		e.depth--
		for _, addr := range fr.stack {
			if rerr := e.mem.Release(addr); rerr != nil && err == nil {
				err = rerr
			}
		}
	}()

	return e.run(fr)
}

func (e *Engine) run(fr *frame) (Value, error) {
	for {
	block:
		for _, in := range fr.block.Instrs {
			if err := e.tick(); err != nil {
				return 0, err
			}
			cont, ret, err := e.visit(fr, in)
			if err != nil {
				return 0, e.fault(fr, in, err)
			}
			switch cont {
			case kReturn:
				return ret, nil
			case kNext:
			case kJump:
				break block
			}
		}
	}
}

func (e *Engine) tick() error {
	e.steps++
	if e.cfg.MaxSteps > 0 && e.steps > e.cfg.MaxSteps {
		return errors.StepLimit("instruction", e.cfg.MaxSteps)
	}
	if e.steps%pollInterval == 0 && e.ctx != nil {
		if err := e.ctx.Err(); err != nil {
			return errors.Canceled(errors.PhaseInterpret, err)
		}
	}
	return nil
}

// fault annotates err with the failing instruction. The kind is kept so
// callers can classify the failure without unwrapping.
func (e *Engine) fault(fr *frame, in *ir.Instr, err error) error {
	return errors.New(errors.PhaseInterpret, errors.KindOf(err)).
		Symbol("@"+fr.fn.Name).
		Cause(err).
		Detail("%s: %s", fr.block.Label, in.Format(fr.fn)).
		Build()
}

func (e *Engine) visit(fr *frame, in *ir.Instr) (continuation, Value, error) {
	switch in.Op {
	case ir.OpBr:
		fr.block = in.Targets[0]
		return kJump, 0, nil

	case ir.OpBrIf:
		c, err := e.eval(fr, in.Args[0])
		if err != nil {
			return kNext, 0, err
		}
		if c&1 != 0 {
			fr.block = in.Targets[0]
		} else {
			fr.block = in.Targets[1]
		}
		return kJump, 0, nil

	case ir.OpRet:
		if len(in.Args) == 0 {
			return kReturn, 0, nil
		}
		v, err := e.eval(fr, in.Args[0])
		return kReturn, v, err

	case ir.OpUnreachable:
		return kNext, 0, errors.Unsupported(errors.PhaseInterpret, "reached unreachable")
	}

	v, err := e.exec(fr, in)
	if err != nil {
		return kNext, 0, err
	}
	if in.HasDst() {
		fr.regs[in.Dst] = v
	}
	return kNext, 0, nil
}

func (e *Engine) exec(fr *frame, in *ir.Instr) (Value, error) {
	switch {
	case in.Op.IsBinary():
		x, y, err := e.eval2(fr, in.Args[0], in.Args[1])
		if err != nil {
			return 0, err
		}
		if in.Type.Kind == ir.KindFloat {
			return floatBinary(in.Op, in.Type, x, y)
		}
		return intBinary(in.Op, e.bits(in.Type), x, y)

	case in.Op.IsCast():
		v, err := e.eval(fr, in.Args[0])
		if err != nil {
			return 0, err
		}
		return e.cast(in.Op, fr.fn.OperandType(in.Args[0]), in.Type, v)
	}

	switch in.Op {
	case ir.OpMove:
		return e.eval(fr, in.Args[0])

	case ir.OpAlloca:
		addr, err := e.mem.AllocateStack(e.layout.Size(in.Type))
		if err != nil {
			return 0, err
		}
		fr.stack = append(fr.stack, addr)
		return Value(addr), nil

	case ir.OpNew:
		return e.newTyped(fr, in)

	case ir.OpLoad:
		ptr, err := e.eval(fr, in.Args[0])
		if err != nil {
			return 0, err
		}
		return e.load(in.Type, vmem.Addr(ptr))

	case ir.OpStore:
		v, ptr, err := e.eval2(fr, in.Args[0], in.Args[1])
		if err != nil {
			return 0, err
		}
		return 0, e.store(in.Type, vmem.Addr(ptr), v)

	case ir.OpGEP:
		return e.gep(fr, in)

	case ir.OpPtrAdd:
		base, off, err := e.eval2(fr, in.Args[0], in.Args[1])
		if err != nil {
			return 0, err
		}
		delta := ir.SignExtend(uint64(off), e.bits(fr.fn.OperandType(in.Args[1])))
		return e.ptr(uint64(base) + uint64(delta)), nil

	case ir.OpICmp:
		x, y, err := e.eval2(fr, in.Args[0], in.Args[1])
		if err != nil {
			return 0, err
		}
		return boolValue(intCompare(in.Pred, e.bits(in.Type), x, y)), nil

	case ir.OpFCmp:
		x, y, err := e.eval2(fr, in.Args[0], in.Args[1])
		if err != nil {
			return 0, err
		}
		return boolValue(floatCompare(in.Pred, in.Type, x, y)), nil

	case ir.OpSelect:
		c, err := e.eval(fr, in.Args[0])
		if err != nil {
			return 0, err
		}
		if c&1 != 0 {
			return e.eval(fr, in.Args[1])
		}
		return e.eval(fr, in.Args[2])

	case ir.OpCall:
		args, err := e.evalAll(fr, in.Args)
		if err != nil {
			return 0, err
		}
		return e.call(in.Callee, args)

	case ir.OpCallIndirect:
		target, err := e.eval(fr, in.Args[0])
		if err != nil {
			return 0, err
		}
		callee, ok := e.mem.FuncAt(vmem.Addr(target))
		if !ok {
			return 0, errors.New(errors.PhaseInterpret, errors.KindUnsupported).
				Value(uint64(target)).
				Detail("indirect call through %s which is no function address", vmem.Addr(target)).
				Build()
		}
		if !callee.Sig.Equal(in.Type) {
			return 0, errors.TypeMismatch(errors.PhaseInterpret, nil, callee.Sig.String(),
				"indirect call to @"+callee.Name+" with signature "+in.Type.String())
		}
		args, err := e.evalAll(fr, in.Args[1:])
		if err != nil {
			return 0, err
		}
		return e.call(callee, args)
	}

	return 0, errors.Unsupported(errors.PhaseInterpret, "opcode "+in.Op.String())
}

func (e *Engine) eval(fr *frame, o ir.Operand) (Value, error) {
	if o.Const == nil {
		return fr.regs[o.Local], nil
	}
	switch c := o.Const.(type) {
	case *ir.IntConst:
		return Value(c.Value), nil
	case *ir.FloatConst:
		return Value(c.Bits), nil
	case *ir.NullConst:
		return 0, nil
	case *ir.ZeroConst:
		if c.Typ.Kind.IsScalar() {
			return 0, nil
		}
	case *ir.GlobalRef:
		addr, ok := e.mem.GlobalAddr(c.Global)
		if !ok {
			return 0, errors.New(errors.PhaseInterpret, errors.KindExternalCall).
				Symbol("@" + c.Global.Name).
				Detail("reference to a global defined outside the program").
				Build()
		}
		return e.ptr(uint64(addr) + uint64(c.Offset)), nil
	case *ir.FuncRef:
		addr, ok := e.mem.FuncAddr(c.Func)
		if !ok {
			return 0, errors.NotFound(errors.PhaseInterpret, "function", c.Func.Name)
		}
		return Value(addr), nil
	}
	return 0, errors.Unsupported(errors.PhaseInterpret, "first-class aggregate operand "+o.Const.String())
}

func (e *Engine) eval2(fr *frame, a, b ir.Operand) (Value, Value, error) {
	x, err := e.eval(fr, a)
	if err != nil {
		return 0, 0, err
	}
	y, err := e.eval(fr, b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (e *Engine) evalAll(fr *frame, ops []ir.Operand) ([]Value, error) {
	vals := make([]Value, len(ops))
	for i, o := range ops {
		v, err := e.eval(fr, o)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// bits returns the register width of a scalar type.
func (e *Engine) bits(t *ir.Type) uint8 {
	if t.Kind == ir.KindPointer {
		return uint8(e.layout.PointerSize * 8)
	}
	return t.Bits
}

func (e *Engine) ptr(v uint64) Value {
	return Value(ir.Mask(v, uint8(e.layout.PointerSize*8)))
}

func (e *Engine) load(t *ir.Type, addr vmem.Addr) (Value, error) {
	if !t.Kind.IsScalar() {
		return 0, errors.Unsupported(errors.PhaseInterpret, "first-class aggregate load of "+t.String())
	}
	size := e.layout.Size(t)
	data, err := e.mem.Read(addr, size)
	if err != nil {
		return 0, err
	}
	return Value(ir.Mask(ir.Uint(data, size), e.bits(t))), nil
}

func (e *Engine) store(t *ir.Type, addr vmem.Addr, v Value) error {
	if !t.Kind.IsScalar() {
		return errors.Unsupported(errors.PhaseInterpret, "first-class aggregate store of "+t.String())
	}
	size := e.layout.Size(t)
	buf := make([]byte, size)
	ir.PutUint(buf, size, uint64(v))
	if err := e.mem.Write(addr, buf); err != nil {
		return err
	}
	e.stored(addr)
	return nil
}

func (e *Engine) stored(addr vmem.Addr) {
	if e.hooks.OnStore != nil {
		e.hooks.OnStore(addr)
	}
}

func (e *Engine) newTyped(fr *frame, in *ir.Instr) (Value, error) {
	n, err := e.eval(fr, in.Args[0])
	if err != nil {
		return 0, err
	}
	count := uint64(n)
	size := uint64(e.layout.Size(in.Type)) * count
	if count > 1<<32-1 || size > 1<<32-1 {
		return 0, errors.AllocationFailed(size, "typed allocation exceeds the address space")
	}
	addr, err := e.mem.Allocate(uint32(size))
	if err != nil {
		return 0, err
	}
	if err := e.mem.RecordTypedAllocation(addr, in.Type, uint32(count)); err != nil {
		return 0, err
	}
	return Value(addr), nil
}

func (e *Engine) gep(fr *frame, in *ir.Instr) (Value, error) {
	base, err := e.eval(fr, in.Args[0])
	if err != nil {
		return 0, err
	}
	addr := uint64(base)
	cur := in.Type
	for i, idx := range in.Args[1:] {
		raw, err := e.eval(fr, idx)
		if err != nil {
			return 0, err
		}
		n := ir.SignExtend(uint64(raw), e.bits(fr.fn.OperandType(idx)))

		if i == 0 {
			addr += uint64(n * int64(e.layout.Size(cur)))
			continue
		}
		switch cur.Kind {
		case ir.KindArray:
			cur = cur.Elem
			addr += uint64(n * int64(e.layout.Size(cur)))
		case ir.KindStruct:
			if !idx.IsConst() || n < 0 || int(n) >= len(cur.Fields) {
				return 0, errors.TypeMismatch(errors.PhaseInterpret, nil, cur.String(),
					fmt.Sprintf("field index %d is not a constant in range", n))
			}
			addr += uint64(e.layout.FieldOffset(cur, int(n)))
			cur = cur.Fields[n]
		default:
			return 0, errors.TypeMismatch(errors.PhaseInterpret, nil, cur.String(), "gep index into a scalar")
		}
	}
	return e.ptr(addr), nil
}

func (e *Engine) callExternal(fn *ir.Function, args []Value) (Value, error) {
	if ext, ok := lookupExternal(fn.Name); ok {
		Logger().Debug("modeled external call", zap.String("func", fn.Name), zap.Int("args", len(args)))
		if len(args) < ext.params {
			return 0, errors.TypeMismatch(errors.PhaseInterpret, nil, fn.Sig.String(),
				fmt.Sprintf("@%s needs %d arguments", fn.Name, ext.params))
		}
		return ext.run(e, args)
	}
	if e.cfg.Ignore != nil && e.cfg.Ignore(fn.Name) {
		Logger().Debug("ignored external call", zap.String("func", fn.Name))
		return 0, nil
	}
	return 0, errors.ExternalCall("@" + fn.Name)
}
