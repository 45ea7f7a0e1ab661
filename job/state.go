package job

import (
	"fmt"

	"github.com/xraph/spool"
)

// transitions lists the allowed state changes. Completed and cancelled are
// terminal and have no outgoing edges.
var transitions = map[State][]State{
	StateDraft:    {StateQueued, StateCancelled},
	StateQueued:   {StatePrinting, StateFailed, StateCancelled},
	StatePrinting: {StateCompleted, StateFailed},
	StateFailed:   {StateQueued, StateCancelled},
}

// CanTransition reports whether a job may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves j to state to, or returns an error wrapping
// spool.ErrInvalidState.
func (j *Job) Transition(to State) error {
	if !CanTransition(j.State, to) {
		return fmt.Errorf("%w: %s -> %s", spool.ErrInvalidState, j.State, to)
	}
	j.State = to
	return nil
}
