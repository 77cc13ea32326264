// Package sandbox provides the isolated memory a constructor runs in.
//
// A Sandbox owns a private 32-bit address space. MapProgram gives every
// defined global and every function an address; Allocate and AllocateStack
// hand out fresh zeroed blocks for heap and frame memory. Blocks are never
// reused and are separated by unmapped gaps, so stale and one-past-end
// pointers never land in an unrelated block. All accesses are bounds
// checked against a single block.
//
// Heap blocks may carry a typed record (element type and count). The
// constant reconstructor needs that record to turn a heap block referenced
// from a global into a synthesized global of the same type.
//
// StoreInterceptor observes stores and keeps the set of globals written
// during one run, which is the set the driver must rebuild.
//
// Nothing here touches the compiler's real program state: the sandbox
// holds copies of initializers, and Teardown discards everything.
package sandbox
