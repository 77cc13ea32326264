package emit

import (
	"slices"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/vmem"
)

const (
	// Base is the linear memory address of the first global. Addresses
	// below it stay clear of data so null and table indices never alias a
	// global.
	Base = 1024

	// PageSize is the wasm page size.
	PageSize = 65536

	// MemoryExport is the export name of the image's linear memory.
	MemoryExport = "__memory"
)

type placed struct {
	global *ir.Global
	addr   uint32
	size   uint32
}

// Image is the linear memory layout of a program's defined globals.
// Function references become 1-based table indices.
type Image struct {
	layout  *ir.Layout
	data    []byte
	globals []placed // sorted by addr
	byGlob  map[*ir.Global]int
	funcs   []*ir.Function
	byFunc  map[*ir.Function]uint32
}

// Build lays out every defined global of prog and materializes its
// initializer. External declarations take no space; a reference to one
// fails the build.
func Build(prog *ir.Program) (*Image, error) {
	if len(prog.Funcs) >= Base {
		return nil, errors.New(errors.PhaseEmit, errors.KindUnsupported).
			Detail("%d functions do not fit below the data base", len(prog.Funcs)).
			Build()
	}

	im := &Image{
		layout: prog.Layout(),
		byGlob: make(map[*ir.Global]int),
		byFunc: make(map[*ir.Function]uint32, len(prog.Funcs)),
	}
	for i, f := range prog.Funcs {
		im.funcs = append(im.funcs, f)
		im.byFunc[f] = uint32(i + 1)
	}

	end := uint64(Base)
	for _, g := range prog.Globals {
		if g.IsDeclaration() {
			continue
		}
		if g.Name == MemoryExport {
			return nil, errors.New(errors.PhaseEmit, errors.KindInvalidInput).
				Symbol(g.Name).
				Detail("global name collides with the memory export").
				Build()
		}
		size := im.layout.Size(g.Type)
		addr := uint64(ir.AlignTo(uint32(end), im.layout.Align(g.Type)))
		if addr+uint64(size) > 1<<32 {
			return nil, errors.AllocationFailed(uint64(size), "image exceeds the wasm32 address space")
		}
		im.byGlob[g] = len(im.globals)
		im.globals = append(im.globals, placed{global: g, addr: uint32(addr), size: size})
		end = addr + uint64(max(size, 1))
	}

	im.data = make([]byte, end-Base)
	for _, p := range im.globals {
		buf := im.data[p.addr-Base : p.addr-Base+p.size]
		if err := ir.WriteConstant(im.layout, p.global.Init, buf, im); err != nil {
			return nil, errors.New(errors.PhaseEmit, errors.KindInvalidData).
				Symbol(p.global.Name).
				Cause(err).
				Detail("cannot materialize initializer").
				Build()
		}
	}
	return im, nil
}

// Layout returns the data layout used by the image.
func (im *Image) Layout() *ir.Layout { return im.layout }

// Data returns the memory contents starting at Base.
func (im *Image) Data() []byte { return im.data }

// End returns the first address past the last global.
func (im *Image) End() uint32 { return Base + uint32(len(im.data)) }

// Pages returns the number of wasm pages the image needs.
func (im *Image) Pages() uint32 {
	return uint32((uint64(im.End()) + PageSize - 1) / PageSize)
}

// Globals returns the placed globals in address order.
func (im *Image) Globals() []*ir.Global {
	out := make([]*ir.Global, len(im.globals))
	for i, p := range im.globals {
		out[i] = p.global
	}
	return out
}

// GlobalAddr returns the image address of g.
func (im *Image) GlobalAddr(g *ir.Global) (uint64, bool) {
	i, ok := im.byGlob[g]
	if !ok {
		return 0, false
	}
	return uint64(im.globals[i].addr), true
}

// FuncAddr returns the table index of f.
func (im *Image) FuncAddr(f *ir.Function) (uint64, bool) {
	idx, ok := im.byFunc[f]
	return uint64(idx), ok
}

// Resolve maps an image address back to the global it points into, or a
// table index back to its function.
func (im *Image) Resolve(addr vmem.Addr) (vmem.Origin, uint32, bool) {
	a := uint32(addr)
	if a < Base {
		if a == 0 || int(a) > len(im.funcs) {
			return vmem.Origin{}, 0, false
		}
		return vmem.Origin{Kind: vmem.OriginFunction, Func: im.funcs[a-1]}, 0, true
	}

	i, found := slices.BinarySearchFunc(im.globals, a, func(p placed, a uint32) int {
		switch {
		case p.addr < a:
			return -1
		case p.addr > a:
			return 1
		}
		return 0
	})
	if !found {
		i--
	}
	if i < 0 {
		return vmem.Origin{}, 0, false
	}
	p := im.globals[i]
	if a-p.addr >= p.size {
		return vmem.Origin{}, 0, false
	}
	return vmem.Origin{Kind: vmem.OriginGlobal, Global: p.global}, a - p.addr, true
}
