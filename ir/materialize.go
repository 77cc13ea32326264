package ir

import (
	"encoding/binary"

	"github.com/wippyai/ctoreval/errors"
)

// Relocator supplies the addresses that symbolic constants resolve to.
type Relocator interface {
	GlobalAddr(g *Global) (uint64, bool)
	FuncAddr(f *Function) (uint64, bool)
}

// PutUint writes the low size bytes of v little-endian.
func PutUint(buf []byte, size uint32, v uint64) {
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
}

// Uint reads a little-endian value of size bytes.
func Uint(buf []byte, size uint32) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		return binary.LittleEndian.Uint64(buf)
	}
	return 0
}

// WriteConstant stores the bytes of c into buf using layout l. buf must be
// at least the size of c's type.
func WriteConstant(l *Layout, c Constant, buf []byte, reloc Relocator) error {
	t := c.Type()
	size := l.Size(t)
	if uint32(len(buf)) < size {
		return errors.New(errors.PhaseSandbox, errors.KindOutOfBounds).
			Type(t.String()).
			Detail("constant needs %d bytes, buffer has %d", size, len(buf)).
			Build()
	}

	switch c := c.(type) {
	case *IntConst:
		PutUint(buf, size, c.Value)
	case *FloatConst:
		PutUint(buf, size, c.Bits)
	case *NullConst:
		PutUint(buf, size, 0)
	case *ZeroConst:
		clear(buf[:size])
	case *GlobalRef:
		addr, ok := reloc.GlobalAddr(c.Global)
		if !ok {
			return errors.NotFound(errors.PhaseSandbox, "address of global", c.Global.Name)
		}
		PutUint(buf, size, uint64(int64(addr)+c.Offset))
	case *FuncRef:
		addr, ok := reloc.FuncAddr(c.Func)
		if !ok {
			return errors.NotFound(errors.PhaseSandbox, "address of function", c.Func.Name)
		}
		PutUint(buf, size, addr)
	case *AggregateConst:
		clear(buf[:size])
		return writeAggregate(l, c, buf, reloc)
	default:
		return errors.Unsupported(errors.PhaseSandbox, "constant "+c.String())
	}
	return nil
}

func writeAggregate(l *Layout, c *AggregateConst, buf []byte, reloc Relocator) error {
	t := c.Typ
	switch t.Kind {
	case KindArray:
		if uint32(len(c.Elems)) != t.Len {
			return errors.TypeMismatch(errors.PhaseSandbox, nil, t.String(), "wrong element count")
		}
		stride := l.Size(t.Elem)
		for i, e := range c.Elems {
			if err := WriteConstant(l, e, buf[uint32(i)*stride:], reloc); err != nil {
				return err
			}
		}
	case KindStruct:
		if len(c.Elems) != len(t.Fields) {
			return errors.TypeMismatch(errors.PhaseSandbox, nil, t.String(), "wrong field count")
		}
		info := l.Calculate(t)
		for i, e := range c.Elems {
			if err := WriteConstant(l, e, buf[info.Offsets[i]:], reloc); err != nil {
				return err
			}
		}
	default:
		return errors.TypeMismatch(errors.PhaseSandbox, nil, t.String(), "aggregate of non-aggregate type")
	}
	return nil
}
