package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSandbox     Phase = "sandbox"     // address mapping and allocation
	PhaseInterpret   Phase = "interpret"   // constructor execution
	PhaseReconstruct Phase = "reconstruct" // memory to constant
	PhaseCommit      Phase = "commit"      // program mutation
	PhaseParse       Phase = "parse"       // IR text parsing
	PhaseEmit        Phase = "emit"        // wasm image emission
	PhaseVerify      Phase = "verify"      // image verification
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindSandboxFault      Kind = "sandbox_fault"
	KindUnsupported       Kind = "unsupported"
	KindExternalCall      Kind = "external_call"
	KindUnresolvedPointer Kind = "unresolved_pointer"
	KindTypeMismatch      Kind = "type_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindReadOnly          Kind = "read_only"
	KindAllocation        Kind = "allocation"
	KindStepLimit         Kind = "step_limit"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindMismatch          Kind = "mismatch"
	KindCanceled          Kind = "canceled"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Symbol string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" in ")
		b.WriteString(e.Symbol)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether any *Error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the IR type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Symbol sets the global or function the error is attributed to
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// SandboxFault creates an allocator or address mapper invariant violation
func SandboxFault(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseSandbox,
		Kind:   KindSandboxFault,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// ExternalCall creates an error for a call to an unmodeled external function
func ExternalCall(name string) *Error {
	return &Error{
		Phase:  PhaseInterpret,
		Kind:   KindExternalCall,
		Symbol: name,
		Detail: "call to unmodeled external function",
	}
}

// UnresolvedPointer creates an error for a pointer that cannot be traced to a known origin
func UnresolvedPointer(path []string, addr uint64, reason string) *Error {
	return &Error{
		Phase:  PhaseReconstruct,
		Kind:   KindUnresolvedPointer,
		Path:   path,
		Value:  addr,
		Detail: fmt.Sprintf("pointer 0x%x %s", addr, reason),
	}
}

// TypeMismatch creates a reconstruction type mismatch error
func TypeMismatch(phase Phase, path []string, typ, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   typ,
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, addr uint64, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Value:  addr,
		Detail: fmt.Sprintf("access of %d bytes at 0x%x outside any live allocation", size, addr),
	}
}

// ReadOnly creates an error for a write into read-only memory
func ReadOnly(symbol string, addr uint64) *Error {
	return &Error{
		Phase:  PhaseSandbox,
		Kind:   KindReadOnly,
		Symbol: symbol,
		Value:  addr,
		Detail: fmt.Sprintf("write to read-only memory at 0x%x", addr),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint64, detail string) *Error {
	return &Error{
		Phase:  PhaseSandbox,
		Kind:   KindAllocation,
		Value:  size,
		Detail: fmt.Sprintf("failed to allocate %d bytes: %s", size, detail),
	}
}

// StepLimit creates an error for exceeding an execution bound
func StepLimit(what string, limit int64) *Error {
	return &Error{
		Phase:  PhaseInterpret,
		Kind:   KindStepLimit,
		Value:  limit,
		Detail: fmt.Sprintf("%s limit of %d exceeded", what, limit),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error at the given source line
func ParseFailed(line int, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Value:  line,
		Detail: fmt.Sprintf("line %d: %s", line, fmt.Sprintf(detail, args...)),
	}
}

// Canceled wraps a context cancellation
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCanceled,
		Detail: "execution canceled",
		Cause:  cause,
	}
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }
