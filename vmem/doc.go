// Package vmem maps sandbox address ranges to the symbolic entities that own them.
//
// A Mapper holds one entry per live allocation: a base address, a size and an
// Origin (a global variable, a heap block, a stack slot or a function). It answers
// the forward question an interpreter needs when it creates memory and the
// backward question the constant reconstructor asks when it finds a raw
// address inside memory: which entity does this address point into, and at what
// offset.
//
// Resolution is exact. An address resolves only if it lies inside a live
// entry; an address one past the end of an allocation is unresolved, so callers
// never attribute a pointer to an allocation it does not point into.
//
// Mapper performs no allocation of its own and holds no memory contents; the
// sandbox package owns both.
package vmem
