package preexec

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/ctoreval/errors"
)

// State is a phase of pre-executing one constructor.
type State uint8

const (
	StateIdle State = iota
	StateSandboxReady
	StateRunning
	StateCollecting
	StateCommitting
	StateDiscarding
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateSandboxReady: "sandbox_ready",
	StateRunning:      "running",
	StateCollecting:   "collecting",
	StateCommitting:   "committing",
	StateDiscarding:   "discarding",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

var transitions = map[State][]State{
	StateIdle:         {StateSandboxReady, StateDiscarding},
	StateSandboxReady: {StateRunning, StateDiscarding},
	StateRunning:      {StateCollecting, StateDiscarding},
	StateCollecting:   {StateCommitting, StateDiscarding},
	StateCommitting:   {StateIdle},
	StateDiscarding:   {StateIdle},
}

// machine tracks the state of the constructor currently being processed.
type machine struct {
	log   *zap.Logger
	state State
}

func (m *machine) to(next State) error {
	if !slices.Contains(transitions[m.state], next) {
		return errors.New(errors.PhaseCommit, errors.KindInvalidInput).
			Detail("invalid driver transition %s -> %s", m.state, next).
			Build()
	}
	m.log.Debug("driver state", zap.Stringer("from", m.state), zap.Stringer("to", next))
	m.state = next
	return nil
}
