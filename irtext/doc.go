// Package irtext reads and writes the s-expression text form of an IR
// program.
//
// A program lists named struct types, globals, functions and
// constructors:
//
//	(program "list"
//	  (type Node (struct i32 ptr))
//	  (global @head ptr null)
//	  (global @count i32 0)
//	  (func @init (local %n ptr)
//	    (block entry
//	      (set %n (new Node 1))
//	      (store ptr %n @head)
//	      (ret)))
//	  (ctor @init 100))
//
// A global without an initializer is an external declaration, as is a
// function without blocks. Instructions use the syntax of ir.Instr.Format.
// Bare numeric literals are accepted wherever the instruction fixes the
// operand type; elsewhere write the typed form, e.g. (i64 7).
package irtext
