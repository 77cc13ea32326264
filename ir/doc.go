// Package ir is the whole-program representation the pre-execution engine
// consumes and rewrites.
//
// A Program holds named struct types, globals, functions and the list of
// global constructors. Functions are register machines: typed mutable
// locals, parameters first, and basic blocks ending in a terminator.
// Operands are either locals or constants; a GlobalRef or FuncRef operand
// evaluates to the address of its target.
//
// Types and their memory layout follow the wasm32 C ABI: 4-byte pointers,
// natural alignment, struct fields laid out in order with padding. Layout
// computes sizes and offsets, and WriteConstant turns a constant into its
// little-endian bytes given a Relocator for symbolic addresses.
//
// Programs are usually built with FunctionBuilder or parsed from text by
// the irtext package.
package ir
