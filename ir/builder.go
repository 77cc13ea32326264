package ir

// FunctionBuilder assembles a function body instruction by instruction.
//
//	b := ir.NewFunctionBuilder("init", ir.Func(ir.Void))
//	i := b.Local("i", ir.I32)
//	b.SetBlock(b.Block("entry"))
//	b.Move(i, ir.C(ir.NewInt(ir.I32, 0)))
//	b.Ret()
//	fn := b.Function()
type FunctionBuilder struct {
	fn  *Function
	cur *Block
}

// NewFunctionBuilder starts a function with the given signature. Parameters
// become locals p0..pN unless renamed with Param.
func NewFunctionBuilder(name string, sig *Type) *FunctionBuilder {
	fn := &Function{Name: name, Sig: sig}
	for _, t := range sig.Params {
		fn.Locals = append(fn.Locals, Local{Type: t})
	}
	return &FunctionBuilder{fn: fn}
}

// Declare returns an external function declaration.
func Declare(name string, sig *Type) *Function {
	fn := &Function{Name: name, Sig: sig}
	for _, t := range sig.Params {
		fn.Locals = append(fn.Locals, Local{Type: t})
	}
	return fn
}

// Param names parameter i and returns it as an operand.
func (b *FunctionBuilder) Param(i int, name string) Operand {
	b.fn.Locals[i].Name = name
	return L(i)
}

// Local adds a local register.
func (b *FunctionBuilder) Local(name string, t *Type) Operand {
	b.fn.Locals = append(b.fn.Locals, Local{Name: name, Type: t})
	return L(len(b.fn.Locals) - 1)
}

// Block appends a new basic block. The first block is the entry.
func (b *FunctionBuilder) Block(label string) *Block {
	blk := &Block{Label: label}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

// SetBlock directs subsequent instructions into blk.
func (b *FunctionBuilder) SetBlock(blk *Block) {
	b.cur = blk
}

// Emit appends a raw instruction to the current block.
func (b *FunctionBuilder) Emit(in *Instr) {
	b.cur.Instrs = append(b.cur.Instrs, in)
}

func (b *FunctionBuilder) emit(op Op, dst Operand, t *Type, args ...Operand) *Instr {
	in := &Instr{Op: op, Dst: dst.Local, Type: t, Args: args}
	b.Emit(in)
	return in
}

func (b *FunctionBuilder) Move(dst, src Operand) {
	b.emit(OpMove, dst, nil, src)
}

func (b *FunctionBuilder) Alloca(dst Operand, t *Type) {
	b.emit(OpAlloca, dst, t)
}

// New allocates count elements of t on the sandbox heap, recording t as
// the block's declared type.
func (b *FunctionBuilder) New(dst Operand, t *Type, count Operand) {
	b.emit(OpNew, dst, t, count)
}

func (b *FunctionBuilder) Load(dst Operand, t *Type, ptr Operand) {
	b.emit(OpLoad, dst, t, ptr)
}

func (b *FunctionBuilder) Store(t *Type, val, ptr Operand) {
	b.emit(OpStore, Discard, t, val, ptr)
}

// GEP computes base + the offset of indices within t, LLVM style: the first
// index steps over whole t values, later ones select array elements or
// struct fields.
func (b *FunctionBuilder) GEP(dst Operand, t *Type, base Operand, indices ...Operand) {
	b.emit(OpGEP, dst, t, append([]Operand{base}, indices...)...)
}

func (b *FunctionBuilder) PtrAdd(dst, base, offset Operand) {
	b.emit(OpPtrAdd, dst, Ptr, base, offset)
}

// Bin emits a binary arithmetic or bitwise op.
func (b *FunctionBuilder) Bin(op Op, dst Operand, t *Type, x, y Operand) {
	b.emit(op, dst, t, x, y)
}

func (b *FunctionBuilder) ICmp(dst Operand, p Pred, t *Type, x, y Operand) {
	b.emit(OpICmp, dst, t, x, y).Pred = p
}

func (b *FunctionBuilder) FCmp(dst Operand, p Pred, t *Type, x, y Operand) {
	b.emit(OpFCmp, dst, t, x, y).Pred = p
}

// Cast converts v to t.
func (b *FunctionBuilder) Cast(op Op, dst Operand, t *Type, v Operand) {
	b.emit(op, dst, t, v)
}

func (b *FunctionBuilder) Select(dst Operand, t *Type, cond, x, y Operand) {
	b.emit(OpSelect, dst, t, cond, x, y)
}

func (b *FunctionBuilder) Call(dst Operand, fn *Function, args ...Operand) {
	in := b.emit(OpCall, dst, fn.Sig.Result, args...)
	in.Callee = fn
}

func (b *FunctionBuilder) CallIndirect(dst Operand, sig *Type, target Operand, args ...Operand) {
	b.emit(OpCallIndirect, dst, sig, append([]Operand{target}, args...)...)
}

func (b *FunctionBuilder) Br(target *Block) {
	b.emit(OpBr, Discard, nil).Targets = []*Block{target}
}

func (b *FunctionBuilder) BrIf(cond Operand, then, els *Block) {
	b.emit(OpBrIf, Discard, nil, cond).Targets = []*Block{then, els}
}

func (b *FunctionBuilder) Ret(v ...Operand) {
	b.emit(OpRet, Discard, nil, v...)
}

func (b *FunctionBuilder) Unreachable() {
	b.emit(OpUnreachable, Discard, nil)
}

// Function returns the built function.
func (b *FunctionBuilder) Function() *Function {
	return b.fn
}
