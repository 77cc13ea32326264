// Package verify checks that a program's initializers survive lowering to
// a wasm image.
//
// The image is instantiated with wazero and every defined global is
// rebuilt from linear memory with the same reconstructor the pre-execution
// driver uses, resolving addresses through the image layout instead of a
// sandbox. Each rebuilt constant must equal the global's initializer.
package verify
