// Package ctoreval evaluates static constructors ahead of time.
//
// A compiler back end targeting wasm hands over a whole program whose
// constructors would otherwise run at startup. Each constructor is executed
// in an isolated sandbox; when it finishes and every global it wrote can be
// rebuilt as a constant, those constants become the globals' initializers
// and the constructor is dropped. Anything the sandbox cannot model defers
// the constructor and leaves the program untouched.
//
// # Architecture Overview
//
//	ctoreval/            Root package with the one-call Fold entry point
//	├── ir/              Program model: types, constants, functions, layout
//	├── irtext/          S-expression text form of a program
//	├── vmem/            Address ranges to symbolic owners
//	├── sandbox/         Isolated memory for one constructor run
//	├── interp/          Instruction interpreter over a sandbox
//	├── reconstruct/     Memory back to typed constants
//	├── preexec/         Driver: run, reconstruct, commit or discard
//	├── emit/            Folded globals as a wasm data image
//	├── verify/          Image round trip under wazero
//	├── errors/          Structured error types
//	└── cmd/ctoreval/    Command line front end
//
// # Quick Start
//
//	prog, report, err := ctoreval.Fold(ctx, src, preexec.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Folded(), "constructors folded")
//	fmt.Print(irtext.Print(prog))
//
// # Soundness
//
// A folded global holds exactly the value the constructor would have left
// in it. Commits are all-or-nothing per constructor, constructors run in
// priority order, and pointers resolve only into live allocations; a
// pointer into a heap block becomes a reference to a new internal global
// holding that block's contents.
package ctoreval
