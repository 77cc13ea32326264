// Package reconstruct turns typed memory back into compile-time constants.
//
// Given a type and an address, a Reconstructor reads the bytes the type
// occupies and rebuilds them as an ir.Constant: integers and floats from
// their little-endian bits, arrays and structs element by element under the
// target layout, and pointers by asking a Resolver which entity the address
// points into. A pointer into a global becomes a global reference with a
// byte offset, a pointer to a function entry becomes a function reference,
// and null stays null. Anything else fails with an unresolved pointer error
// carrying the path of the offending field.
//
// Pointers into heap blocks that carry a type record are folded into new
// internal globals named after the global that first reached them. The
// reconstructor remembers which block became which global, so two pointers
// to the same block share one global and cyclic structures terminate.
//
// The package reads through small interfaces and works equally over the
// interpreter sandbox and over the linear memory of an emitted image.
package reconstruct
