// Package errors provides structured error types for constructor pre-execution.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, IR type, the symbol involved and
// a cause chain.
//
// The kinds map onto the pre-execution failure taxonomy: KindSandboxFault for
// allocator and address mapper invariant violations, KindUnsupported and
// KindExternalCall for operations the sandbox does not model, KindUnresolvedPointer
// for pointers that cannot be traced to an origin, and KindTypeMismatch for
// declared types that disagree with memory.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseReconstruct, errors.KindTypeMismatch).
//		Symbol("table").
//		Path("[2]", "next").
//		Type("ptr").
//		Detail("heap block too small").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ExternalCall("printf")
//	err := errors.OutOfBounds(errors.PhaseInterpret, addr, 4)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
