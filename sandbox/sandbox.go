package sandbox

import (
	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/vmem"
)

const (
	// BaseAddr is the lowest address handed out; the page below it stays
	// unmapped so null and small integers never resolve.
	BaseAddr = 0x10000

	blockAlign = 8
	guardGap   = 16
)

// Config holds sandbox limits.
type Config struct {
	// MaxMemoryBytes bounds the live heap and stack bytes of one run.
	// 0 means no limit beyond the 4 GiB address space.
	MaxMemoryBytes uint64
}

// TypedAllocation is the declared element type of a heap block.
type TypedAllocation struct {
	Elem  *ir.Type
	Count uint32
}

// DeclaredType returns Elem, or [Count x Elem] for multi-element blocks.
func (t TypedAllocation) DeclaredType() *ir.Type {
	if t.Count == 1 {
		return t.Elem
	}
	return ir.Array(t.Elem, t.Count)
}

type block struct {
	data     []byte
	origin   vmem.Origin
	charged  uint64
	readOnly bool
}

// Stats describes sandbox usage over its lifetime.
type Stats struct {
	Allocations uint64
	Releases    uint64
	LiveBytes   uint64
	PeakBytes   uint64
}

// Sandbox is an isolated virtual memory space for one constructor run.
// Every block is backed by host memory owned by the sandbox and registered
// with its address mapper. It is not safe for concurrent use.
type Sandbox struct {
	mapper  *vmem.Mapper
	layout  *ir.Layout
	blocks  map[vmem.Addr]*block
	typed   map[vmem.Addr]TypedAllocation
	globals map[*ir.Global]vmem.Addr
	funcs   map[*ir.Function]vmem.Addr
	stats   Stats
	next    uint64
	maxMem  uint64
	nextID  uint32
	closed  bool
}

// New creates an empty sandbox.
func New(layout *ir.Layout, cfg Config) *Sandbox {
	return &Sandbox{
		mapper:  vmem.NewMapper(),
		layout:  layout,
		blocks:  make(map[vmem.Addr]*block),
		typed:   make(map[vmem.Addr]TypedAllocation),
		globals: make(map[*ir.Global]vmem.Addr),
		funcs:   make(map[*ir.Function]vmem.Addr),
		next:    BaseAddr,
		maxMem:  cfg.MaxMemoryBytes,
	}
}

// Mapper returns the sandbox's address mapper.
func (s *Sandbox) Mapper() *vmem.Mapper { return s.mapper }

// Layout returns the data layout used for this sandbox.
func (s *Sandbox) Layout() *ir.Layout { return s.layout }

// Stats returns usage counters.
func (s *Sandbox) Stats() Stats { return s.stats }

// Live returns the number of live blocks.
func (s *Sandbox) Live() int { return len(s.blocks) }

// Resolve is the backward lookup of the address mapper.
func (s *Sandbox) Resolve(addr vmem.Addr) (vmem.Origin, uint32, bool) {
	return s.mapper.Resolve(addr)
}

func (s *Sandbox) reserve(size uint32, origin vmem.Origin, readOnly bool) (vmem.Addr, error) {
	if s.closed {
		return 0, errors.SandboxFault("allocation in a torn down sandbox")
	}
	n := max(size, 1)
	base := uint64(ir.AlignTo(uint32(s.next), blockAlign))
	if s.next > 1<<32-blockAlign || base+uint64(n) > 1<<32 {
		return 0, errors.AllocationFailed(uint64(size), "sandbox address space exhausted")
	}

	addr := vmem.Addr(base)
	if err := s.mapper.Map(addr, n, origin); err != nil {
		return 0, err
	}
	s.blocks[addr] = &block{data: make([]byte, n), origin: origin, readOnly: readOnly}
	s.next = base + uint64(n) + guardGap
	return addr, nil
}

func (s *Sandbox) allocateDynamic(size uint32, kind vmem.OriginKind) (vmem.Addr, error) {
	if s.maxMem > 0 && s.stats.LiveBytes+uint64(size) > s.maxMem {
		return 0, errors.AllocationFailed(uint64(size), "sandbox memory limit reached")
	}
	s.nextID++
	addr, err := s.reserve(size, vmem.Origin{Kind: kind, ID: s.nextID}, false)
	if err != nil {
		return 0, err
	}
	s.blocks[addr].charged = uint64(size)
	s.stats.Allocations++
	s.stats.LiveBytes += uint64(size)
	s.stats.PeakBytes = max(s.stats.PeakBytes, s.stats.LiveBytes)
	return addr, nil
}

// Allocate acquires a zeroed heap block of size bytes.
func (s *Sandbox) Allocate(size uint32) (vmem.Addr, error) {
	return s.allocateDynamic(size, vmem.OriginHeap)
}

// AllocateStack acquires a zeroed block for a function frame slot.
func (s *Sandbox) AllocateStack(size uint32) (vmem.Addr, error) {
	return s.allocateDynamic(size, vmem.OriginStack)
}

// RecordTypedAllocation attaches a declared element type to the heap block
// starting at addr, replacing any earlier record.
func (s *Sandbox) RecordTypedAllocation(addr vmem.Addr, elem *ir.Type, count uint32) error {
	b, ok := s.blocks[addr]
	if !ok || b.origin.Kind != vmem.OriginHeap {
		return errors.SandboxFault("typed record for %s which starts no heap block", addr)
	}
	need := uint64(s.layout.Size(elem)) * uint64(count)
	if need > uint64(len(b.data)) {
		return errors.New(errors.PhaseSandbox, errors.KindTypeMismatch).
			Type(elem.String()).
			Detail("%d elements need %d bytes, block at %s has %d", count, need, addr, len(b.data)).
			Build()
	}
	s.typed[addr] = TypedAllocation{Elem: elem, Count: count}
	return nil
}

// TypedAllocation returns the type record of the heap block starting at addr.
func (s *Sandbox) TypedAllocation(addr vmem.Addr) (TypedAllocation, bool) {
	t, ok := s.typed[addr]
	return t, ok
}

// HeapType returns the declared type of the heap block at base.
func (s *Sandbox) HeapType(base vmem.Addr) (*ir.Type, bool) {
	t, ok := s.typed[base]
	if !ok {
		return nil, false
	}
	return t.DeclaredType(), true
}

// Release frees the heap or stack block starting at addr and evicts its
// type record, if any.
func (s *Sandbox) Release(addr vmem.Addr) error {
	b, ok := s.blocks[addr]
	if !ok {
		return errors.SandboxFault("release of %s which starts no live block", addr)
	}
	if b.origin.Kind != vmem.OriginHeap && b.origin.Kind != vmem.OriginStack {
		return errors.SandboxFault("release of %s owned by %s", addr, b.origin)
	}
	if err := s.mapper.Unmap(addr); err != nil {
		return err
	}
	delete(s.typed, addr)
	delete(s.blocks, addr)
	s.stats.Releases++
	s.stats.LiveBytes -= b.charged
	return nil
}

// BlockSize returns the size of the live block starting at addr.
func (s *Sandbox) BlockSize(addr vmem.Addr) (uint32, bool) {
	b, ok := s.blocks[addr]
	if !ok {
		return 0, false
	}
	return uint32(len(b.data)), true
}

func (s *Sandbox) locate(addr vmem.Addr, n uint32) (*block, uint32, error) {
	e, ok := s.mapper.Lookup(addr)
	if !ok || uint64(addr)+uint64(n) > e.End() {
		return nil, 0, errors.OutOfBounds(errors.PhaseSandbox, uint64(addr), n)
	}
	b := s.blocks[e.Base]
	if b.origin.Kind == vmem.OriginFunction {
		return nil, 0, errors.Unsupported(errors.PhaseSandbox, "memory access to function "+b.origin.String())
	}
	return b, uint32(addr - e.Base), nil
}

// Read returns a copy of n bytes at addr. The range must lie inside one
// live block.
func (s *Sandbox) Read(addr vmem.Addr, n uint32) ([]byte, error) {
	b, off, err := s.locate(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.data[off:off+n])
	return out, nil
}

// Write stores data at addr. The range must lie inside one writable block.
func (s *Sandbox) Write(addr vmem.Addr, data []byte) error {
	b, off, err := s.locate(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	if b.readOnly {
		return errors.ReadOnly(b.origin.String(), uint64(addr))
	}
	copy(b.data[off:], data)
	return nil
}

// Teardown releases every block, mapped globals and functions included.
// It is idempotent; the sandbox accepts no allocations afterwards.
func (s *Sandbox) Teardown() {
	for addr := range s.blocks {
		_ = s.mapper.Unmap(addr)
	}
	clear(s.blocks)
	clear(s.typed)
	clear(s.globals)
	clear(s.funcs)
	s.stats.LiveBytes = 0
	s.closed = true
}

// Closed reports whether Teardown has run.
func (s *Sandbox) Closed() bool { return s.closed }

// MapProgram maps every defined global of prog and writes its current
// initializer, then maps one byte per function so function pointers have
// an address. External global declarations stay unmapped.
func (s *Sandbox) MapProgram(prog *ir.Program) error {
	for _, g := range prog.Globals {
		if g.IsDeclaration() {
			continue
		}
		addr, err := s.reserve(s.layout.Size(g.Type), vmem.Origin{Kind: vmem.OriginGlobal, Global: g}, g.ReadOnly)
		if err != nil {
			return err
		}
		s.globals[g] = addr
	}
	for _, f := range prog.Funcs {
		addr, err := s.reserve(1, vmem.Origin{Kind: vmem.OriginFunction, Func: f}, true)
		if err != nil {
			return err
		}
		s.funcs[f] = addr
	}

	reloc := relocator{s}
	for _, g := range prog.Globals {
		addr, ok := s.globals[g]
		if !ok {
			continue
		}
		if err := ir.WriteConstant(s.layout, g.Init, s.blocks[addr].data, reloc); err != nil {
			return errors.New(errors.PhaseSandbox, errors.KindInvalidData).
				Symbol(g.Name).
				Cause(err).
				Detail("cannot materialize initializer").
				Build()
		}
	}
	return nil
}

// GlobalAddr returns the address of a mapped global.
func (s *Sandbox) GlobalAddr(g *ir.Global) (vmem.Addr, bool) {
	addr, ok := s.globals[g]
	return addr, ok
}

// FuncAddr returns the address of a mapped function.
func (s *Sandbox) FuncAddr(f *ir.Function) (vmem.Addr, bool) {
	addr, ok := s.funcs[f]
	return addr, ok
}

// FuncAt returns the function whose address is exactly addr.
func (s *Sandbox) FuncAt(addr vmem.Addr) (*ir.Function, bool) {
	origin, off, ok := s.mapper.Resolve(addr)
	if !ok || off != 0 || origin.Kind != vmem.OriginFunction {
		return nil, false
	}
	return origin.Func, true
}

// Relocator adapts the sandbox to ir.Relocator.
func (s *Sandbox) Relocator() ir.Relocator { return relocator{s} }

type relocator struct{ s *Sandbox }

func (r relocator) GlobalAddr(g *ir.Global) (uint64, bool) {
	addr, ok := r.s.globals[g]
	return uint64(addr), ok
}

func (r relocator) FuncAddr(f *ir.Function) (uint64, bool) {
	addr, ok := r.s.funcs[f]
	return uint64(addr), ok
}
