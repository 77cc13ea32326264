package ir

// DefaultPointerSize is the pointer width of the wasm32 target.
const DefaultPointerSize = 4

// MaxSize is the largest object the 32-bit address space can hold.
const MaxSize = 1<<32 - 1

// Info is the memory layout of a type.
type Info struct {
	// Offsets holds field offsets for structs.
	Offsets []uint32
	Size    uint32
	Align   uint32
}

// Layout computes sizes, alignments and field offsets under C layout rules.
// It caches results per type and is not safe for concurrent use.
type Layout struct {
	cache       map[*Type]Info
	PointerSize uint32
}

// NewLayout creates a layout calculator for the given pointer width.
func NewLayout(pointerSize uint32) *Layout {
	if pointerSize == 0 {
		pointerSize = DefaultPointerSize
	}
	return &Layout{
		cache:       make(map[*Type]Info),
		PointerSize: pointerSize,
	}
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) / align * align
}

// Calculate returns the layout of t. Void and function types have size 0.
func (l *Layout) Calculate(t *Type) Info {
	switch t.Kind {
	case KindInt, KindFloat:
		n := scalarBytes(t.Bits)
		return Info{Size: n, Align: n}
	case KindPointer:
		return Info{Size: l.PointerSize, Align: l.PointerSize}
	case KindArray, KindStruct:
		if cached, ok := l.cache[t]; ok {
			return cached
		}
		var info Info
		if t.Kind == KindArray {
			elem := l.Calculate(t.Elem)
			info = Info{Size: elem.Size * t.Len, Align: elem.Align}
		} else {
			info = l.calculateStruct(t)
		}
		l.cache[t] = info
		return info
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (l *Layout) calculateStruct(t *Type) Info {
	if len(t.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	offsets := make([]uint32, len(t.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)

	for i, field := range t.Fields {
		fl := l.Calculate(field)

		offset = AlignTo(offset, fl.Align)
		offsets[i] = offset

		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}

	return Info{
		Size:    AlignTo(offset, maxAlign),
		Align:   maxAlign,
		Offsets: offsets,
	}
}

// Fits reports whether t, and every aggregate inside it, has a size of at
// most MaxSize. Calculate is only meaningful for types that fit.
func (l *Layout) Fits(t *Type) bool {
	return l.wideSize(t) <= MaxSize
}

// wideSize is Calculate's size in 64 bits, saturating at MaxSize+1.
func (l *Layout) wideSize(t *Type) uint64 {
	const over = MaxSize + 1
	switch t.Kind {
	case KindArray:
		elem := l.wideSize(t.Elem)
		if elem > MaxSize {
			return over
		}
		return min(elem*uint64(t.Len), over)
	case KindStruct:
		var offset uint64
		maxAlign := uint64(1)
		for _, field := range t.Fields {
			size := l.wideSize(field)
			if size > MaxSize {
				return over
			}
			align := uint64(l.Align(field))
			offset = (offset + align - 1) / align * align
			offset += size
			if offset > MaxSize {
				return over
			}
			maxAlign = max(maxAlign, align)
		}
		return (offset + maxAlign - 1) / maxAlign * maxAlign
	default:
		return uint64(l.Calculate(t).Size)
	}
}

// Size returns the allocation size of t.
func (l *Layout) Size(t *Type) uint32 {
	return l.Calculate(t).Size
}

// Align returns the alignment of t.
func (l *Layout) Align(t *Type) uint32 {
	return l.Calculate(t).Align
}

// FieldOffset returns the byte offset of field i of struct t.
func (l *Layout) FieldOffset(t *Type, i int) uint32 {
	return l.Calculate(t).Offsets[i]
}

func scalarBytes(bits uint8) uint32 {
	switch {
	case bits <= 8:
		return 1
	case bits <= 16:
		return 2
	case bits <= 32:
		return 4
	default:
		return 8
	}
}
