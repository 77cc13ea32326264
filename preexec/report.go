package preexec

import (
	"github.com/wippyai/ctoreval/errors"
)

// Outcome is the result of pre-executing one constructor.
type Outcome uint8

const (
	// Folded constructors had their effects committed as initializers and
	// were removed from the constructor list.
	Folded Outcome = iota
	// Deferred constructors were left untouched to run at startup.
	Deferred
)

func (o Outcome) String() string {
	if o == Folded {
		return "folded"
	}
	return "deferred"
}

// Reason says why a constructor was deferred.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonUnsupportedInstruction
	ReasonExternalCall
	ReasonUnresolvedPointer
	ReasonReconstruction
	ReasonSandboxFault
	ReasonMemoryFault
	ReasonStepLimit
	ReasonCanceled
	ReasonIneligible
	ReasonSkipped
)

var reasonNames = [...]string{
	ReasonNone:                   "",
	ReasonUnsupportedInstruction: "unsupported instruction",
	ReasonExternalCall:           "external call",
	ReasonUnresolvedPointer:      "unresolved pointer",
	ReasonReconstruction:         "reconstruction failure",
	ReasonSandboxFault:           "sandbox fault",
	ReasonMemoryFault:            "memory fault",
	ReasonStepLimit:              "execution limit",
	ReasonCanceled:               "canceled",
	ReasonIneligible:             "ineligible",
	ReasonSkipped:                "skipped after earlier deferral",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// reasonFor classifies a failure by the kind and phase of its error.
func reasonFor(err error) Reason {
	var e *errors.Error
	if !errors.As(err, &e) {
		return ReasonSandboxFault
	}
	switch e.Kind {
	case errors.KindExternalCall:
		return ReasonExternalCall
	case errors.KindUnresolvedPointer:
		return ReasonUnresolvedPointer
	case errors.KindUnsupported, errors.KindTypeMismatch, errors.KindInvalidData:
		if e.Phase == errors.PhaseReconstruct {
			return ReasonReconstruction
		}
		return ReasonUnsupportedInstruction
	case errors.KindOutOfBounds, errors.KindReadOnly, errors.KindAllocation:
		return ReasonMemoryFault
	case errors.KindStepLimit:
		return ReasonStepLimit
	case errors.KindCanceled:
		return ReasonCanceled
	}
	return ReasonSandboxFault
}

// Diagnostic describes what happened to one constructor.
type Diagnostic struct {
	Err         error
	Constructor string
	Modified    []string
	Synthesized []string
	Priority    int
	Steps       int64
	Stores      uint64
	PeakBytes   uint64
	Outcome     Outcome
	Reason      Reason
}

// Report lists one Diagnostic per constructor in execution order.
type Report struct {
	Program     string
	Diagnostics []Diagnostic
}

// Folded returns the number of folded constructors.
func (r *Report) Folded() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Outcome == Folded {
			n++
		}
	}
	return n
}

// Deferred returns the number of deferred constructors.
func (r *Report) Deferred() int {
	return len(r.Diagnostics) - r.Folded()
}

// Lookup returns the diagnostic for the named constructor.
func (r *Report) Lookup(ctor string) (Diagnostic, bool) {
	for _, d := range r.Diagnostics {
		if d.Constructor == ctor {
			return d, true
		}
	}
	return Diagnostic{}, false
}
