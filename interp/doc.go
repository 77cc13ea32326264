// Package interp executes IR functions inside a sandbox.
//
// The Engine is a straightforward register interpreter: it walks basic
// blocks, keeps one Value per local and performs every memory access
// through a Memory, normally a *sandbox.Sandbox. Loads and stores are
// little-endian and bounds checked; integer arithmetic wraps at the
// operand width.
//
// Calls to functions without a body are resolved against a small set of
// modeled library functions (malloc, calloc, realloc, free, memset, memcpy,
// memmove and their llvm intrinsic spellings). Config.Ignore may name
// further calls that are safe to skip, such as atexit registration. Any
// other external call aborts the run.
//
// Execution is bounded by an instruction budget and a call depth limit,
// and the context passed to Execute is polled for cancellation. Whatever
// goes wrong, Execute returns an *errors.Error whose Kind says why; the
// engine never panics on malformed or hostile input it can detect.
package interp
