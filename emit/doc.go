// Package emit lowers a program's globals into a wasm32 data image.
//
// Build places every defined global in linear memory starting at Base,
// aligned to its natural alignment, and writes its initializer with
// references relocated: a global reference becomes the target's image
// address plus offset, a function reference becomes a 1-based table index.
// Encode wraps the image in a core wasm module that exports the memory and
// the address of each global, so a host can inspect the folded state
// without running any code.
package emit
