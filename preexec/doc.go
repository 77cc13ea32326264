// Package preexec runs global constructors at compile time and folds their
// effects into global initializers.
//
// For each constructor, in priority order, the driver builds a fresh
// sandbox holding the program's current global state, interprets the
// constructor, and records every global it writes. If the run finishes
// and every written global can be rebuilt as a constant, the new
// initializers are committed, heap objects they reference become new
// internal globals, and the constructor is removed. Otherwise the
// constructor is deferred to startup and the program is left untouched.
//
// Each attempt walks an explicit state machine:
//
//	idle -> sandbox_ready -> running -> collecting -> committing -> idle
//	                 \___________\___________\______-> discarding -> idle
//
// Only the committing state mutates the program, and the sandbox is torn
// down whichever way the attempt ends. Deferral is never an error; the
// Report says what happened to each constructor and why.
package preexec
