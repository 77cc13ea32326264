package interp

import (
	"math"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
)

func boolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}

func intBinary(op ir.Op, bits uint8, xv, yv Value) (Value, error) {
	x, y := uint64(xv), uint64(yv)
	sx, sy := ir.SignExtend(x, bits), ir.SignExtend(y, bits)

	var r uint64
	switch op {
	case ir.OpAdd:
		r = x + y
	case ir.OpSub:
		r = x - y
	case ir.OpMul:
		r = x * y
	case ir.OpUDiv, ir.OpURem, ir.OpSDiv, ir.OpSRem:
		if y == 0 {
			return 0, errors.Unsupported(errors.PhaseInterpret, "integer division by zero")
		}
		switch op {
		case ir.OpUDiv:
			r = x / y
		case ir.OpURem:
			r = x % y
		default:
			if sy == -1 && sx == ir.SignExtend(1<<(bits-1), bits) {
				return 0, errors.Unsupported(errors.PhaseInterpret, "signed division overflow")
			}
			if op == ir.OpSDiv {
				r = uint64(sx / sy)
			} else {
				r = uint64(sx % sy)
			}
		}
	case ir.OpAnd:
		r = x & y
	case ir.OpOr:
		r = x | y
	case ir.OpXor:
		r = x ^ y
	case ir.OpShl, ir.OpLShr, ir.OpAShr:
		if y >= uint64(bits) {
			return 0, errors.Unsupported(errors.PhaseInterpret, "shift amount not below the operand width")
		}
		switch op {
		case ir.OpShl:
			r = x << y
		case ir.OpLShr:
			r = x >> y
		default:
			r = uint64(sx >> y)
		}
	default:
		return 0, errors.Unsupported(errors.PhaseInterpret, "integer op "+op.String())
	}
	return Value(ir.Mask(r, bits)), nil
}

func floatBinary(op ir.Op, t *ir.Type, xv, yv Value) (Value, error) {
	if t.Bits == 32 {
		x := math.Float32frombits(uint32(xv))
		y := math.Float32frombits(uint32(yv))
		var r float32
		switch op {
		case ir.OpFAdd:
			r = x + y
		case ir.OpFSub:
			r = x - y
		case ir.OpFMul:
			r = x * y
		case ir.OpFDiv:
			r = x / y
		default:
			return 0, errors.Unsupported(errors.PhaseInterpret, "float op "+op.String())
		}
		return Value(math.Float32bits(r)), nil
	}

	x := math.Float64frombits(uint64(xv))
	y := math.Float64frombits(uint64(yv))
	var r float64
	switch op {
	case ir.OpFAdd:
		r = x + y
	case ir.OpFSub:
		r = x - y
	case ir.OpFMul:
		r = x * y
	case ir.OpFDiv:
		r = x / y
	default:
		return 0, errors.Unsupported(errors.PhaseInterpret, "float op "+op.String())
	}
	return Value(math.Float64bits(r)), nil
}

func intCompare(p ir.Pred, bits uint8, xv, yv Value) bool {
	x, y := uint64(xv), uint64(yv)
	sx, sy := ir.SignExtend(x, bits), ir.SignExtend(y, bits)
	switch p {
	case ir.PredEQ:
		return x == y
	case ir.PredNE:
		return x != y
	case ir.PredSLT:
		return sx < sy
	case ir.PredSLE:
		return sx <= sy
	case ir.PredSGT:
		return sx > sy
	case ir.PredSGE:
		return sx >= sy
	case ir.PredULT:
		return x < y
	case ir.PredULE:
		return x <= y
	case ir.PredUGT:
		return x > y
	case ir.PredUGE:
		return x >= y
	}
	return false
}

func toFloat(t *ir.Type, v Value) float64 {
	if t.Bits == 32 {
		return float64(math.Float32frombits(uint32(v)))
	}
	return math.Float64frombits(uint64(v))
}

func fromFloat(t *ir.Type, f float64) Value {
	if t.Bits == 32 {
		return Value(math.Float32bits(float32(f)))
	}
	return Value(math.Float64bits(f))
}

func floatCompare(p ir.Pred, t *ir.Type, xv, yv Value) bool {
	x, y := toFloat(t, xv), toFloat(t, yv)
	unordered := math.IsNaN(x) || math.IsNaN(y)
	switch p {
	case ir.PredUNO:
		return unordered
	case ir.PredORD:
		return !unordered
	}
	if unordered {
		return false
	}
	switch p {
	case ir.PredOEQ, ir.PredEQ:
		return x == y
	case ir.PredONE, ir.PredNE:
		return x != y
	case ir.PredOLT:
		return x < y
	case ir.PredOLE:
		return x <= y
	case ir.PredOGT:
		return x > y
	case ir.PredOGE:
		return x >= y
	}
	return false
}

func (e *Engine) cast(op ir.Op, from, to *ir.Type, v Value) (Value, error) {
	src, dst := e.bits(from), e.bits(to)
	switch op {
	case ir.OpTrunc, ir.OpZExt, ir.OpPtrToInt, ir.OpIntToPtr:
		return Value(ir.Mask(uint64(v), dst)), nil

	case ir.OpSExt:
		return Value(ir.Mask(uint64(ir.SignExtend(uint64(v), src)), dst)), nil

	case ir.OpFPToSI, ir.OpFPToUI:
		f := math.Trunc(toFloat(from, v))
		if op == ir.OpFPToSI {
			lo, hi := -math.Ldexp(1, int(dst)-1), math.Ldexp(1, int(dst)-1)
			if math.IsNaN(f) || f < lo || f >= hi {
				return 0, errors.Unsupported(errors.PhaseInterpret, "float to signed integer conversion out of range")
			}
			return Value(ir.Mask(uint64(int64(f)), dst)), nil
		}
		if math.IsNaN(f) || f < 0 || f >= math.Ldexp(1, int(dst)) {
			return 0, errors.Unsupported(errors.PhaseInterpret, "float to unsigned integer conversion out of range")
		}
		return Value(uint64(f)), nil

	case ir.OpSIToFP:
		n := ir.SignExtend(uint64(v), src)
		if to.Bits == 32 {
			return Value(math.Float32bits(float32(n))), nil
		}
		return fromFloat(to, float64(n)), nil

	case ir.OpUIToFP:
		n := ir.Mask(uint64(v), src)
		if to.Bits == 32 {
			return Value(math.Float32bits(float32(n))), nil
		}
		return fromFloat(to, float64(n)), nil

	case ir.OpFPExt, ir.OpFPTrunc:
		return fromFloat(to, toFloat(from, v)), nil

	case ir.OpBitcast:
		if e.layout.Size(from) != e.layout.Size(to) {
			return 0, errors.TypeMismatch(errors.PhaseInterpret, nil, to.String(), "bitcast from "+from.String()+" changes size")
		}
		return v, nil
	}
	return 0, errors.Unsupported(errors.PhaseInterpret, "cast "+op.String())
}
