package vmem

import (
	"fmt"
	"slices"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
)

// Addr is a sandbox address. It is an opaque handle into the sandbox
// address space and never a host pointer.
type Addr uint32

func (a Addr) String() string { return fmt.Sprintf("0x%08x", uint32(a)) }

// OriginKind identifies what owns a range of sandbox memory.
type OriginKind uint8

const (
	OriginGlobal OriginKind = iota
	OriginHeap
	OriginStack
	OriginFunction
)

var originNames = [...]string{
	OriginGlobal:   "global",
	OriginHeap:     "heap",
	OriginStack:    "stack",
	OriginFunction: "function",
}

func (k OriginKind) String() string {
	if int(k) < len(originNames) {
		return originNames[k]
	}
	return "unknown"
}

// Origin is the symbolic owner of a mapped range. Global is set for global
// origins, Func for function origins, ID numbers heap and stack blocks.
type Origin struct {
	Global *ir.Global
	Func   *ir.Function
	ID     uint32
	Kind   OriginKind
}

func (o Origin) String() string {
	switch o.Kind {
	case OriginGlobal:
		return "@" + o.Global.Name
	case OriginFunction:
		return "@" + o.Func.Name
	default:
		return fmt.Sprintf("%s#%d", o.Kind, o.ID)
	}
}

// Entry is one live address mapping.
type Entry struct {
	Origin Origin
	Base   Addr
	Size   uint32
}

// End returns the first address past the entry.
func (e Entry) End() uint64 { return uint64(e.Base) + uint64(e.Size) }

// Mapper translates between sandbox address ranges and symbolic origins.
// Live entries never overlap. It is owned by a single sandbox and is not
// safe for concurrent use.
type Mapper struct {
	entries []Entry // sorted by Base
}

// NewMapper returns an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// search returns the index of the first entry with Base > addr.
func (m *Mapper) search(addr Addr) int {
	i, found := slices.BinarySearchFunc(m.entries, addr, func(e Entry, a Addr) int {
		switch {
		case e.Base < a:
			return -1
		case e.Base > a:
			return 1
		}
		return 0
	})
	if found {
		i++
	}
	return i
}

// Map registers [addr, addr+size) as owned by origin.
func (m *Mapper) Map(addr Addr, size uint32, origin Origin) error {
	if size == 0 {
		return errors.SandboxFault("map of empty range at %s", addr)
	}
	end := uint64(addr) + uint64(size)
	if end > 1<<32 {
		return errors.SandboxFault("range %s+%d exceeds the address space", addr, size)
	}

	i := m.search(addr)
	if i > 0 && m.entries[i-1].End() > uint64(addr) {
		prev := m.entries[i-1]
		return errors.SandboxFault("range %s+%d overlaps %s at %s", addr, size, prev.Origin, prev.Base)
	}
	if i < len(m.entries) && uint64(m.entries[i].Base) < end {
		next := m.entries[i]
		return errors.SandboxFault("range %s+%d overlaps %s at %s", addr, size, next.Origin, next.Base)
	}

	m.entries = slices.Insert(m.entries, i, Entry{Base: addr, Size: size, Origin: origin})
	return nil
}

// Unmap removes the mapping that starts exactly at addr.
func (m *Mapper) Unmap(addr Addr) error {
	i := m.search(addr) - 1
	if i < 0 || m.entries[i].Base != addr {
		return errors.SandboxFault("unmap of %s which starts no live mapping", addr)
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	return nil
}

// Resolve returns the origin owning addr and the offset of addr within it.
// Addresses outside every live mapping, including one past the end of an
// allocation, are unresolved.
func (m *Mapper) Resolve(addr Addr) (Origin, uint32, bool) {
	e, ok := m.Lookup(addr)
	if !ok {
		return Origin{}, 0, false
	}
	return e.Origin, uint32(addr - e.Base), true
}

// Lookup returns the live entry containing addr.
func (m *Mapper) Lookup(addr Addr) (Entry, bool) {
	i := m.search(addr) - 1
	if i < 0 {
		return Entry{}, false
	}
	e := m.entries[i]
	if uint64(addr) >= e.End() {
		return Entry{}, false
	}
	return e, true
}

// Len returns the number of live mappings.
func (m *Mapper) Len() int { return len(m.entries) }

// Entries returns a copy of the live mappings in address order.
func (m *Mapper) Entries() []Entry {
	return slices.Clone(m.entries)
}

// Reset drops every mapping.
func (m *Mapper) Reset() {
	m.entries = m.entries[:0]
}
