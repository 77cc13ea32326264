package ir

import (
	"strconv"
	"strings"
)

// Kind is the tag of a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindPointer
	KindArray
	KindStruct
	KindFunc
)

var kindNames = [...]string{
	KindVoid:    "void",
	KindInt:     "int",
	KindFloat:   "float",
	KindPointer: "ptr",
	KindArray:   "array",
	KindStruct:  "struct",
	KindFunc:    "func",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether values of this kind live in a single register.
func (k Kind) IsScalar() bool {
	return k == KindInt || k == KindFloat || k == KindPointer
}

// Type is a tagged IR type. Which fields are meaningful depends on Kind:
// Bits for int and float, Elem and Len for array, Fields and Name for
// struct, Result and Params for func. Pointers are opaque.
type Type struct {
	Elem   *Type
	Result *Type
	Name   string
	Fields []*Type
	Params []*Type
	Len    uint32
	Bits   uint8
	Kind   Kind
}

var (
	Void = &Type{Kind: KindVoid}
	I1   = &Type{Kind: KindInt, Bits: 1}
	I8   = &Type{Kind: KindInt, Bits: 8}
	I16  = &Type{Kind: KindInt, Bits: 16}
	I32  = &Type{Kind: KindInt, Bits: 32}
	I64  = &Type{Kind: KindInt, Bits: 64}
	F32  = &Type{Kind: KindFloat, Bits: 32}
	F64  = &Type{Kind: KindFloat, Bits: 64}
	Ptr  = &Type{Kind: KindPointer}
)

// Int returns the integer type of the given width.
func Int(bits uint8) *Type {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 16:
		return I16
	case 32:
		return I32
	case 64:
		return I64
	}
	return &Type{Kind: KindInt, Bits: bits}
}

// Array returns the type [n x elem].
func Array(elem *Type, n uint32) *Type {
	return &Type{Kind: KindArray, Elem: elem, Len: n}
}

// Struct returns an anonymous struct type with the given fields.
func Struct(fields ...*Type) *Type {
	return &Type{Kind: KindStruct, Fields: fields}
}

// NamedStruct returns a named struct type. Named structs compare by name.
func NamedStruct(name string, fields ...*Type) *Type {
	return &Type{Kind: KindStruct, Name: name, Fields: fields}
}

// Func returns a function signature type.
func Func(result *Type, params ...*Type) *Type {
	if result == nil {
		result = Void
	}
	return &Type{Kind: KindFunc, Result: result, Params: params}
}

// Equal reports whether a and b denote the same type.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVoid, KindPointer:
		return true
	case KindInt, KindFloat:
		return t.Bits == o.Bits
	case KindArray:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case KindStruct:
		if t.Name != "" || o.Name != "" {
			return t.Name == o.Name
		}
		return typesEqual(t.Fields, o.Fields)
	case KindFunc:
		return t.Result.Equal(o.Result) && typesEqual(t.Params, o.Params)
	}
	return false
}

func typesEqual(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// String renders the type in IR text syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return "i" + strconv.Itoa(int(t.Bits))
	case KindFloat:
		return "f" + strconv.Itoa(int(t.Bits))
	case KindPointer:
		return "ptr"
	case KindArray:
		return "(array " + strconv.FormatUint(uint64(t.Len), 10) + " " + t.Elem.String() + ")"
	case KindStruct:
		if t.Name != "" {
			return t.Name
		}
		return "(struct" + joinTypes(t.Fields) + ")"
	case KindFunc:
		return "(func " + t.Result.String() + joinTypes(t.Params) + ")"
	}
	return "unknown"
}

// Definition renders a named struct's body; for other types it is String.
func (t *Type) Definition() string {
	if t.Kind == KindStruct && t.Name != "" {
		return "(struct" + joinTypes(t.Fields) + ")"
	}
	return t.String()
}

func joinTypes(ts []*Type) string {
	var b strings.Builder
	for _, f := range ts {
		b.WriteByte(' ')
		b.WriteString(f.String())
	}
	return b.String()
}
