package ir

import (
	"math"
	"testing"
)

func TestType_EqualAndString(t *testing.T) {
	tests := []struct {
		name string
		a, b *Type
		eq   bool
		str  string
	}{
		{"ints", Int(32), I32, true, "i32"},
		{"widths", I32, I64, false, "i32"},
		{"arrays", Array(I8, 4), Array(I8, 4), true, "(array 4 i8)"},
		{"array lengths", Array(I8, 4), Array(I8, 5), false, "(array 4 i8)"},
		{"anon structs", Struct(I32, Ptr), Struct(I32, Ptr), true, "(struct i32 ptr)"},
		{"named by name", NamedStruct("A", I32), NamedStruct("A", I64), true, "A"},
		{"named vs anon", NamedStruct("A", I32), Struct(I32), false, "A"},
		{"funcs", Func(I32, Ptr), Func(I32, Ptr), true, "(func i32 ptr)"},
		{"void func", Func(nil), Func(Void), true, "(func void)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.eq {
				t.Errorf("Equal = %v, want %v", got, tt.eq)
			}
			if got := tt.a.String(); got != tt.str {
				t.Errorf("String = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestIntConst(t *testing.T) {
	c := NewInt(I8, -1)
	if c.Value != 0xff {
		t.Errorf("Value = %#x, want 0xff", c.Value)
	}
	if c.Signed() != -1 {
		t.Errorf("Signed = %d", c.Signed())
	}
	if c.String() != "(i8 -1)" {
		t.Errorf("String = %q", c.String())
	}
	if NewInt(I1, 3).Value != 1 {
		t.Error("i1 not masked")
	}
}

func TestFloatConst(t *testing.T) {
	if got := NewFloat(F32, 1.5).String(); got != "(f32 1.5)" {
		t.Errorf("String = %q", got)
	}
	nan := &FloatConst{Typ: F64, Bits: math.Float64bits(math.NaN())}
	if got := nan.String(); got != "(f64 raw 0x7ff8000000000001)" {
		t.Errorf("NaN String = %q", got)
	}
}

func TestEqual(t *testing.T) {
	g := &Global{Name: "g", Type: I32}
	h := &Global{Name: "g", Type: I32}
	arr := Array(I32, 2)

	tests := []struct {
		name string
		a, b Constant
		want bool
	}{
		{"same int", NewInt(I32, 5), NewInt(I32, 5), true},
		{"int widths", NewInt(I32, 5), NewInt(I64, 5), false},
		{"zero vs zero agg", &ZeroConst{Typ: arr}, &AggregateConst{Typ: arr, Elems: []Constant{NewInt(I32, 0), NewInt(I32, 0)}}, true},
		{"zero vs nonzero agg", &AggregateConst{Typ: arr, Elems: []Constant{NewInt(I32, 0), NewInt(I32, 1)}}, &ZeroConst{Typ: arr}, false},
		{"zero vs null", &ZeroConst{Typ: Ptr}, Null(), true},
		{"zero other type", &ZeroConst{Typ: I64}, NewInt(I32, 0), false},
		{"refs by identity", &GlobalRef{Global: g}, &GlobalRef{Global: g}, true},
		{"refs same name", &GlobalRef{Global: g}, &GlobalRef{Global: h}, false},
		{"ref offsets", &GlobalRef{Global: g, Offset: 4}, &GlobalRef{Global: g}, false},
		{"null vs int", Null(), NewInt(I32, 0), false},
		{"nil", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

type fixedReloc map[any]uint64

func (r fixedReloc) GlobalAddr(g *Global) (uint64, bool)   { a, ok := r[g]; return a, ok }
func (r fixedReloc) FuncAddr(f *Function) (uint64, bool) { a, ok := r[f]; return a, ok }

func TestWriteConstant(t *testing.T) {
	l := NewLayout(4)
	g := &Global{Name: "g", Type: I32}
	f := Declare("f", Func(Void))
	reloc := fixedReloc{g: 0x1000, f: 7}
	pair := Struct(I8, Ptr, Ptr)

	c := &AggregateConst{Typ: pair, Elems: []Constant{
		NewInt(I8, -2),
		&GlobalRef{Global: g, Offset: 8},
		&FuncRef{Func: f},
	}}
	buf := make([]byte, 12)
	for i := range buf {
		buf[i] = 0xaa
	}
	if err := WriteConstant(l, c, buf, reloc); err != nil {
		t.Fatalf("WriteConstant: %v", err)
	}
	want := []byte{0xfe, 0, 0, 0, 0x08, 0x10, 0, 0, 7, 0, 0, 0}
	if string(buf) != string(want) {
		t.Errorf("bytes = %x, want %x", buf, want)
	}

	if err := WriteConstant(l, NewInt(I64, 1), make([]byte, 4), reloc); err == nil {
		t.Error("short buffer accepted")
	}
	other := &Global{Name: "other", Type: I32}
	if err := WriteConstant(l, &GlobalRef{Global: other}, make([]byte, 4), reloc); err == nil {
		t.Error("unrelocatable global accepted")
	}
	bad := &AggregateConst{Typ: Array(I32, 2), Elems: []Constant{NewInt(I32, 1)}}
	if err := WriteConstant(l, bad, make([]byte, 8), reloc); err == nil {
		t.Error("short aggregate accepted")
	}
}
