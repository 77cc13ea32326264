package sandbox

import (
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/vmem"
)

// Resolver maps a sandbox address back to its owner.
type Resolver interface {
	Resolve(addr vmem.Addr) (vmem.Origin, uint32, bool)
}

// StoreInterceptor records which globals a constructor run writes to.
// Stores to heap or stack memory and stores to unmapped addresses are not
// recorded; the interpreter faults on the latter before they land.
type StoreInterceptor struct {
	resolver Resolver
	modified map[*ir.Global]struct{}
	order    []*ir.Global
	stores   uint64
}

// NewStoreInterceptor creates an interceptor resolving through r.
func NewStoreInterceptor(r Resolver) *StoreInterceptor {
	return &StoreInterceptor{
		resolver: r,
		modified: make(map[*ir.Global]struct{}),
	}
}

// OnStore is called for every store the interpreter performs.
func (i *StoreInterceptor) OnStore(addr vmem.Addr) {
	i.stores++
	origin, _, ok := i.resolver.Resolve(addr)
	if !ok || origin.Kind != vmem.OriginGlobal {
		return
	}
	if _, seen := i.modified[origin.Global]; seen {
		return
	}
	i.modified[origin.Global] = struct{}{}
	i.order = append(i.order, origin.Global)
}

// Reset clears the modified set and the store counter.
func (i *StoreInterceptor) Reset() {
	clear(i.modified)
	i.order = i.order[:0]
	i.stores = 0
}

// Modified returns the globals written since the last Reset, in the order
// of their first write.
func (i *StoreInterceptor) Modified() []*ir.Global {
	out := make([]*ir.Global, len(i.order))
	copy(out, i.order)
	return out
}

// Stores returns the number of stores observed since the last Reset.
func (i *StoreInterceptor) Stores() uint64 { return i.stores }
