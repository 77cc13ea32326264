package reconstruct

import (
	"fmt"
	"strconv"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/vmem"
)

// Memory reads raw bytes at an address.
type Memory interface {
	Read(addr vmem.Addr, n uint32) ([]byte, error)
}

// Resolver maps an address to the entity it points into.
type Resolver interface {
	Resolve(addr vmem.Addr) (vmem.Origin, uint32, bool)
}

// TypedHeap reports the declared type of the heap block starting at base.
type TypedHeap interface {
	HeapType(base vmem.Addr) (*ir.Type, bool)
}

// Options configures a Reconstructor.
type Options struct {
	// Heap gives access to typed heap records. Without it every pointer
	// into heap memory is unresolved.
	Heap TypedHeap

	// Taken reports whether a symbol name is already used by the program.
	// Synthesized globals avoid such names.
	Taken func(name string) bool

	// CollapseZero replaces all-zero aggregates with a zero initializer.
	CollapseZero bool
}

type pending struct {
	global *ir.Global
	typ    *ir.Type
	base   vmem.Addr
}

// Reconstructor rebuilds typed constants from memory. Heap blocks reached
// through pointers become synthesized internal globals; each block maps to
// one global for the lifetime of the Reconstructor, so aliasing pointers
// share it and pointer cycles terminate.
type Reconstructor struct {
	mem     Memory
	res     Resolver
	layout  *ir.Layout
	opts    Options
	blocks  map[vmem.Addr]*ir.Global
	names   map[string]struct{}
	synth   []*ir.Global
	pending []pending
	owner   string
	counter int
}

// New creates a reconstructor reading through mem and resolving through res.
func New(layout *ir.Layout, mem Memory, res Resolver, opts Options) *Reconstructor {
	return &Reconstructor{
		mem:    mem,
		res:    res,
		layout: layout,
		opts:   opts,
		blocks: make(map[vmem.Addr]*ir.Global),
		names:  make(map[string]struct{}),
	}
}

// Reconstruct reads a value of type t at addr and returns it as a constant.
// owner names the global being rebuilt; it prefixes synthesized globals
// and error paths. Heap blocks first reached from this value have their
// initializers filled in before Reconstruct returns.
func (r *Reconstructor) Reconstruct(owner string, t *ir.Type, addr vmem.Addr) (ir.Constant, error) {
	r.owner = owner
	c, err := r.value(t, addr, []string{owner})
	if err != nil {
		return nil, err
	}
	for len(r.pending) > 0 {
		p := r.pending[0]
		r.pending = r.pending[1:]
		init, err := r.value(p.typ, p.base, []string{p.global.Name})
		if err != nil {
			return nil, err
		}
		p.global.Init = init
	}
	return c, nil
}

// Synthesized returns the globals created for heap blocks, in creation order.
func (r *Reconstructor) Synthesized() []*ir.Global {
	out := make([]*ir.Global, len(r.synth))
	copy(out, r.synth)
	return out
}

func (r *Reconstructor) read(addr vmem.Addr, n uint32, path []string) ([]byte, error) {
	data, err := r.mem.Read(addr, n)
	if err != nil {
		return nil, errors.New(errors.PhaseReconstruct, errors.KindOf(err)).
			Path(path...).
			Cause(err).
			Detail("cannot read %d bytes at %s", n, addr).
			Build()
	}
	return data, nil
}

func (r *Reconstructor) value(t *ir.Type, addr vmem.Addr, path []string) (ir.Constant, error) {
	switch t.Kind {
	case ir.KindInt:
		size := r.layout.Size(t)
		data, err := r.read(addr, size, path)
		if err != nil {
			return nil, err
		}
		return &ir.IntConst{Typ: t, Value: ir.Mask(ir.Uint(data, size), t.Bits)}, nil

	case ir.KindFloat:
		size := r.layout.Size(t)
		data, err := r.read(addr, size, path)
		if err != nil {
			return nil, err
		}
		return &ir.FloatConst{Typ: t, Bits: ir.Uint(data, size)}, nil

	case ir.KindPointer:
		size := r.layout.PointerSize
		data, err := r.read(addr, size, path)
		if err != nil {
			return nil, err
		}
		return r.pointer(vmem.Addr(ir.Uint(data, size)), path)

	case ir.KindArray:
		stride := r.layout.Size(t.Elem)
		elems := make([]ir.Constant, t.Len)
		for i := range elems {
			c, err := r.value(t.Elem, addr+vmem.Addr(uint32(i)*stride), append(path, "["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return r.aggregate(t, elems), nil

	case ir.KindStruct:
		info := r.layout.Calculate(t)
		elems := make([]ir.Constant, len(t.Fields))
		for i, f := range t.Fields {
			c, err := r.value(f, addr+vmem.Addr(info.Offsets[i]), append(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return r.aggregate(t, elems), nil
	}

	return nil, errors.TypeMismatch(errors.PhaseReconstruct, path, t.String(), "type has no in-memory representation")
}

func (r *Reconstructor) aggregate(t *ir.Type, elems []ir.Constant) ir.Constant {
	c := &ir.AggregateConst{Typ: t, Elems: elems}
	if r.opts.CollapseZero && len(elems) > 0 && ir.IsZero(c) {
		return &ir.ZeroConst{Typ: t}
	}
	return c
}

func (r *Reconstructor) pointer(addr vmem.Addr, path []string) (ir.Constant, error) {
	if addr == 0 {
		return ir.Null(), nil
	}
	origin, off, ok := r.res.Resolve(addr)
	if !ok {
		return nil, errors.UnresolvedPointer(path, uint64(addr), "does not point into any live allocation")
	}

	switch origin.Kind {
	case vmem.OriginGlobal:
		return &ir.GlobalRef{Global: origin.Global, Offset: int64(off)}, nil

	case vmem.OriginFunction:
		if off != 0 {
			return nil, errors.UnresolvedPointer(path, uint64(addr), "points inside function @"+origin.Func.Name)
		}
		return &ir.FuncRef{Func: origin.Func}, nil

	case vmem.OriginHeap:
		base := addr - vmem.Addr(off)
		g, err := r.heapGlobal(base, path, addr)
		if err != nil {
			return nil, err
		}
		return &ir.GlobalRef{Global: g, Offset: int64(off)}, nil
	}

	return nil, errors.UnresolvedPointer(path, uint64(addr), "points into "+origin.String()+" memory")
}

func (r *Reconstructor) heapGlobal(base vmem.Addr, path []string, addr vmem.Addr) (*ir.Global, error) {
	if g, ok := r.blocks[base]; ok {
		return g, nil
	}
	if r.opts.Heap == nil {
		return nil, errors.UnresolvedPointer(path, uint64(addr), "points into heap memory")
	}
	t, ok := r.opts.Heap.HeapType(base)
	if !ok {
		return nil, errors.UnresolvedPointer(path, uint64(addr), "points into a heap block without type information")
	}

	g := &ir.Global{
		Name:      r.freshName(),
		Type:      t,
		Linkage:   ir.LinkageInternal,
		Synthetic: true,
	}
	r.blocks[base] = g
	r.synth = append(r.synth, g)
	r.pending = append(r.pending, pending{global: g, typ: t, base: base})
	return g, nil
}

func (r *Reconstructor) freshName() string {
	for {
		r.counter++
		name := fmt.Sprintf("%s.heap.%d", r.owner, r.counter)
		if _, used := r.names[name]; used {
			continue
		}
		if r.opts.Taken != nil && r.opts.Taken(name) {
			continue
		}
		r.names[name] = struct{}{}
		return name
	}
}
