package ir

import (
	"strconv"
	"strings"
)

// Op is an instruction opcode.
type Op uint8

const (
	OpMove Op = iota
	OpAlloca
	OpNew
	OpLoad
	OpStore
	OpGEP
	OpPtrAdd

	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr

	OpFAdd
	OpFSub
	OpFMul
	OpFDiv

	OpICmp
	OpFCmp

	OpTrunc
	OpZExt
	OpSExt
	OpFPToSI
	OpFPToUI
	OpSIToFP
	OpUIToFP
	OpFPExt
	OpFPTrunc
	OpPtrToInt
	OpIntToPtr
	OpBitcast

	OpSelect
	OpCall
	OpCallIndirect

	OpBr
	OpBrIf
	OpRet
	OpUnreachable

	opCount
)

var opNames = [...]string{
	OpMove:         "move",
	OpAlloca:       "alloca",
	OpNew:          "new",
	OpLoad:         "load",
	OpStore:        "store",
	OpGEP:          "gep",
	OpPtrAdd:       "ptradd",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpSDiv:         "sdiv",
	OpUDiv:         "udiv",
	OpSRem:         "srem",
	OpURem:         "urem",
	OpAnd:          "and",
	OpOr:           "or",
	OpXor:          "xor",
	OpShl:          "shl",
	OpLShr:         "lshr",
	OpAShr:         "ashr",
	OpFAdd:         "fadd",
	OpFSub:         "fsub",
	OpFMul:         "fmul",
	OpFDiv:         "fdiv",
	OpICmp:         "icmp",
	OpFCmp:         "fcmp",
	OpTrunc:        "trunc",
	OpZExt:         "zext",
	OpSExt:         "sext",
	OpFPToSI:       "fptosi",
	OpFPToUI:       "fptoui",
	OpSIToFP:       "sitofp",
	OpUIToFP:       "uitofp",
	OpFPExt:        "fpext",
	OpFPTrunc:      "fptrunc",
	OpPtrToInt:     "ptrtoint",
	OpIntToPtr:     "inttoptr",
	OpBitcast:      "bitcast",
	OpSelect:       "select",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpBr:           "br",
	OpBrIf:         "br_if",
	OpRet:          "ret",
	OpUnreachable:  "unreachable",
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = Op(op)
	}
	return m
}()

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// LookupOp returns the opcode with the given text name.
func LookupOp(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}

// IsBinary reports whether op is a two-operand arithmetic or bitwise op.
func (op Op) IsBinary() bool { return op >= OpAdd && op <= OpFDiv }

// IsCast reports whether op converts a single operand to Instr.Type.
func (op Op) IsCast() bool { return op >= OpTrunc && op <= OpBitcast }

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool { return op >= OpBr && op <= OpUnreachable }

// Pred is a comparison predicate for icmp and fcmp.
type Pred uint8

const (
	PredEQ Pred = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
	PredOEQ
	PredONE
	PredOLT
	PredOLE
	PredOGT
	PredOGE
	PredUNO
	PredORD
)

var predNames = [...]string{
	PredEQ: "eq", PredNE: "ne",
	PredSLT: "slt", PredSLE: "sle", PredSGT: "sgt", PredSGE: "sge",
	PredULT: "ult", PredULE: "ule", PredUGT: "ugt", PredUGE: "uge",
	PredOEQ: "oeq", PredONE: "one", PredOLT: "olt", PredOLE: "ole",
	PredOGT: "ogt", PredOGE: "oge", PredUNO: "uno", PredORD: "ord",
}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return "pred(" + strconv.Itoa(int(p)) + ")"
}

// LookupPred returns the predicate with the given text name.
func LookupPred(name string) (Pred, bool) {
	for p, n := range predNames {
		if n == name {
			return Pred(p), true
		}
	}
	return 0, false
}

// IsFloat reports whether p is an fcmp predicate.
func (p Pred) IsFloat() bool { return p >= PredOEQ }

// Operand is an instruction input: a local register or a constant.
// GlobalRef and FuncRef constants evaluate to addresses.
type Operand struct {
	Const Constant
	Local int
}

// Discard is the destination of instructions whose result is unused.
var Discard = Operand{Local: -1}

// L refers to local register i.
func L(i int) Operand { return Operand{Local: i} }

// C wraps a constant as an operand.
func C(c Constant) Operand { return Operand{Const: c} }

// IsConst reports whether the operand is an immediate.
func (o Operand) IsConst() bool { return o.Const != nil }

// Instr is a single instruction. Dst is -1 when the instruction defines no
// local. Type is the accessed, allocated or result type depending on Op;
// for call_indirect it is the callee signature.
type Instr struct {
	Type    *Type
	Callee  *Function
	Args    []Operand
	Targets []*Block
	Dst     int
	Op      Op
	Pred    Pred
}

// HasDst reports whether the instruction writes a local.
func (in *Instr) HasDst() bool { return in.Dst >= 0 }

// Format renders the instruction in IR text syntax using fn's local names.
func (in *Instr) Format(fn *Function) string {
	var b strings.Builder
	if in.HasDst() {
		b.WriteString("(set ")
		b.WriteString(fn.LocalName(in.Dst))
		b.WriteByte(' ')
	}
	b.WriteByte('(')
	b.WriteString(in.Op.String())

	switch in.Op {
	case OpICmp, OpFCmp:
		b.WriteByte(' ')
		b.WriteString(in.Pred.String())
	}

	switch in.Op {
	case OpCall:
		b.WriteString(" @")
		b.WriteString(in.Callee.Name)
	case OpBr, OpBrIf, OpRet, OpUnreachable, OpMove:
	default:
		if in.Type != nil {
			b.WriteByte(' ')
			b.WriteString(in.Type.String())
		}
	}

	for _, a := range in.Args {
		b.WriteByte(' ')
		b.WriteString(fn.FormatOperand(a))
	}
	for _, t := range in.Targets {
		b.WriteByte(' ')
		b.WriteString(t.Label)
	}
	b.WriteByte(')')
	if in.HasDst() {
		b.WriteByte(')')
	}
	return b.String()
}
