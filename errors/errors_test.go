package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseReconstruct,
				Kind:   KindTypeMismatch,
				Symbol: "table",
				Path:   []string{"[2]", "next"},
				Type:   "ptr",
				Detail: "heap block too small",
			},
			contains: []string{"[reconstruct]", "type_mismatch", "in table", "[2].next", "type ptr", "heap block too small"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseSandbox,
				Kind:  KindSandboxFault,
			},
			contains: []string{"[sandbox]", "sandbox_fault"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInterpret,
				Kind:   KindAllocation,
				Detail: "heap full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[interpret]", "allocation", "heap full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseInterpret,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseReconstruct,
		Kind:  KindUnresolvedPointer,
		Path:  []string{"head"},
	}

	if !err.Is(&Error{Phase: PhaseReconstruct, Kind: KindUnresolvedPointer}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseInterpret, Kind: KindUnresolvedPointer}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseReconstruct, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("ctor: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseReconstruct, Kind: KindUnresolvedPointer}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}

	inner := ExternalCall("printf")
	outer := Wrap(PhaseCommit, KindMismatch, inner, "commit")
	if got := KindOf(fmt.Errorf("x: %w", inner)); got != KindExternalCall {
		t.Errorf("KindOf = %q, want %q", got, KindExternalCall)
	}
	if got := KindOf(outer); got != KindMismatch {
		t.Errorf("KindOf(outer) = %q, want %q", got, KindMismatch)
	}
	if !HasKind(outer, KindExternalCall) {
		t.Error("HasKind should find the wrapped kind")
	}
	if HasKind(outer, KindSandboxFault) {
		t.Error("HasKind reported a kind that is not in the chain")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseReconstruct, KindTypeMismatch).
		Path("node", "next").
		Type("ptr").
		Symbol("list").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "struct", "i32").
		Build()

	if err.Phase != PhaseReconstruct {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseReconstruct)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "node" || err.Path[1] != "next" {
		t.Errorf("Path = %v, want [node next]", err.Path)
	}
	if err.Type != "ptr" {
		t.Errorf("Type = %v, want 'ptr'", err.Type)
	}
	if err.Symbol != "list" {
		t.Errorf("Symbol = %v, want 'list'", err.Symbol)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected struct, got i32" {
		t.Errorf("Detail = %v, want 'expected struct, got i32'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("SandboxFault", func(t *testing.T) {
		err := SandboxFault("overlap at 0x%x", 0x1000)
		if err.Kind != KindSandboxFault || err.Phase != PhaseSandbox {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Detail, "0x1000") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("ExternalCall", func(t *testing.T) {
		err := ExternalCall("puts")
		if err.Kind != KindExternalCall || err.Symbol != "puts" {
			t.Errorf("got %v symbol %q", err.Kind, err.Symbol)
		}
	})

	t.Run("UnresolvedPointer", func(t *testing.T) {
		err := UnresolvedPointer([]string{"head"}, 0xdead, "is not mapped")
		if err.Kind != KindUnresolvedPointer {
			t.Errorf("Kind = %v", err.Kind)
		}
		if err.Value != uint64(0xdead) {
			t.Errorf("Value = %v", err.Value)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseInterpret, 0x20, 4)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(1024, "limit reached")
		if err.Kind != KindAllocation || !strings.Contains(err.Detail, "1024") {
			t.Errorf("got %v %q", err.Kind, err.Detail)
		}
	})

	t.Run("StepLimit", func(t *testing.T) {
		err := StepLimit("step", 10)
		if err.Kind != KindStepLimit || !strings.Contains(err.Detail, "10") {
			t.Errorf("got %v %q", err.Kind, err.Detail)
		}
	})

	t.Run("ParseFailed", func(t *testing.T) {
		err := ParseFailed(7, "unexpected %s", "')'")
		if err.Phase != PhaseParse || !strings.Contains(err.Detail, "line 7") {
			t.Errorf("got %v %q", err.Phase, err.Detail)
		}
	})
}
