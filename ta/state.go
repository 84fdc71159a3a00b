package ta

import "fmt"

// State is the phase of one command invocation.
type State uint8

const (
	StateReceived State = iota
	StateShapeValidated
	StateExecuting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateShapeValidated:
		return "shape_validated"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// StateHook observes every transition of an invocation. Hooks run
// synchronously on the invoking goroutine.
type StateHook func(tc TaskContext, from, to State)
