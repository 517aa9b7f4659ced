package orchestrator

import "fmt"

// State is the lifecycle state of a project workflow.
type State string

const (
	StateIdle      State = "IDLE"
	StatePlanning  State = "PLANNING"
	StateWriting   State = "WRITING"
	StateBuilding  State = "BUILDING"
	StateFixing    State = "FIXING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether the state absorbs all further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateCancelled:
		return true
	}
	return false
}

// validTransitions is the forward path; FAILED and CANCELLED are
// reachable from any non-terminal state and handled separately.
var validTransitions = map[State][]State{
	StateIdle:     {StatePlanning, StateWriting, StateBuilding, StateDone},
	StatePlanning: {StateWriting, StateBuilding, StateDone},
	StateWriting:  {StateBuilding, StateDone},
	StateBuilding: {StateFixing, StateDone},
	StateFixing:   {StateBuilding, StateDone},
}

// canTransition reports whether from → to is a legal move.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed || to == StateCancelled {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition reports an attempted illegal state change.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid workflow transition %s -> %s", e.From, e.To)
}
