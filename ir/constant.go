package ir

import (
	"math"
	"strconv"
	"strings"
)

// Constant is a compile-time value: a scalar leaf, an aggregate of
// constants, or a symbolic reference to a global or function.
type Constant interface {
	Type() *Type
	String() string
	constant()
}

// IntConst is an integer constant. Value is kept masked to the type width.
type IntConst struct {
	Typ   *Type
	Value uint64
}

// FloatConst is a floating point constant held as its IEEE bit pattern.
type FloatConst struct {
	Typ  *Type
	Bits uint64
}

// NullConst is the null pointer.
type NullConst struct{}

// ZeroConst is the all-zero value of any type.
type ZeroConst struct {
	Typ *Type
}

// AggregateConst is an array or struct constant with elements in declared order.
type AggregateConst struct {
	Typ   *Type
	Elems []Constant
}

// GlobalRef is the address of a global plus a byte offset.
type GlobalRef struct {
	Global *Global
	Offset int64
}

// FuncRef is the address of a function.
type FuncRef struct {
	Func *Function
}

func (*IntConst) constant()       {}
func (*FloatConst) constant()     {}
func (*NullConst) constant()      {}
func (*ZeroConst) constant()      {}
func (*AggregateConst) constant() {}
func (*GlobalRef) constant()      {}
func (*FuncRef) constant()        {}

func (c *IntConst) Type() *Type       { return c.Typ }
func (c *FloatConst) Type() *Type     { return c.Typ }
func (*NullConst) Type() *Type        { return Ptr }
func (c *ZeroConst) Type() *Type      { return c.Typ }
func (c *AggregateConst) Type() *Type { return c.Typ }
func (*GlobalRef) Type() *Type        { return Ptr }
func (*FuncRef) Type() *Type          { return Ptr }

// Mask truncates v to the given integer width.
func Mask(v uint64, bits uint8) uint64 {
	if bits >= 64 {
		return v
	}
	return v & (1<<bits - 1)
}

// SignExtend interprets the low bits of v as a signed value.
func SignExtend(v uint64, bits uint8) int64 {
	if bits >= 64 {
		return int64(v)
	}
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

// NewInt returns an integer constant of type t.
func NewInt(t *Type, v int64) *IntConst {
	return &IntConst{Typ: t, Value: Mask(uint64(v), t.Bits)}
}

// NewFloat returns a float constant of type t.
func NewFloat(t *Type, v float64) *FloatConst {
	if t.Bits == 32 {
		return &FloatConst{Typ: t, Bits: uint64(math.Float32bits(float32(v)))}
	}
	return &FloatConst{Typ: t, Bits: math.Float64bits(v)}
}

// Null returns the null pointer constant.
func Null() *NullConst { return &NullConst{} }

// Signed returns the value sign-extended from the type width.
func (c *IntConst) Signed() int64 {
	return SignExtend(c.Value, c.Typ.Bits)
}

// Float returns the value as a float64.
func (c *FloatConst) Float() float64 {
	if c.Typ.Bits == 32 {
		return float64(math.Float32frombits(uint32(c.Bits)))
	}
	return math.Float64frombits(c.Bits)
}

func (c *IntConst) String() string {
	return "(" + c.Typ.String() + " " + strconv.FormatInt(c.Signed(), 10) + ")"
}

func (c *FloatConst) String() string {
	f := c.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "(" + c.Typ.String() + " raw 0x" + strconv.FormatUint(c.Bits, 16) + ")"
	}
	return "(" + c.Typ.String() + " " + strconv.FormatFloat(f, 'g', -1, int(c.Typ.Bits)) + ")"
}

func (*NullConst) String() string { return "null" }

func (*ZeroConst) String() string { return "zero" }

func (c *AggregateConst) String() string {
	var b strings.Builder
	b.WriteString("(agg")
	for _, e := range c.Elems {
		b.WriteByte(' ')
		b.WriteString(e.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (c *GlobalRef) String() string {
	if c.Offset == 0 {
		return "@" + c.Global.Name
	}
	return "(ref @" + c.Global.Name + " " + strconv.FormatInt(c.Offset, 10) + ")"
}

func (c *FuncRef) String() string { return "@" + c.Func.Name }

// IsZero reports whether every byte of c is zero.
func IsZero(c Constant) bool {
	switch c := c.(type) {
	case *IntConst:
		return c.Value == 0
	case *FloatConst:
		return c.Bits == 0
	case *NullConst, *ZeroConst:
		return true
	case *AggregateConst:
		for _, e := range c.Elems {
			if !IsZero(e) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether two constants denote the same value. A ZeroConst
// equals any all-zero constant of the same type.
func Equal(a, b Constant) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if _, ok := a.(*ZeroConst); ok {
		return a.Type().Equal(b.Type()) && IsZero(b)
	}
	if _, ok := b.(*ZeroConst); ok {
		return a.Type().Equal(b.Type()) && IsZero(a)
	}

	switch x := a.(type) {
	case *IntConst:
		y, ok := b.(*IntConst)
		return ok && x.Typ.Equal(y.Typ) && x.Value == y.Value
	case *FloatConst:
		y, ok := b.(*FloatConst)
		return ok && x.Typ.Equal(y.Typ) && x.Bits == y.Bits
	case *NullConst:
		_, ok := b.(*NullConst)
		return ok
	case *GlobalRef:
		y, ok := b.(*GlobalRef)
		return ok && x.Global == y.Global && x.Offset == y.Offset
	case *FuncRef:
		y, ok := b.(*FuncRef)
		return ok && x.Func == y.Func
	case *AggregateConst:
		y, ok := b.(*AggregateConst)
		if !ok || !x.Typ.Equal(y.Typ) || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}
