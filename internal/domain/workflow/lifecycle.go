package workflow

import "fmt"

// transitions lists every permitted move. Terminal states have no entry.
var transitions = map[State]map[Trigger]State{
	StateProcessing: {
		TriggerComplete: StateCompleted,
		TriggerFail:     StateFailed,
	},
}

// StateMachine tracks the lifecycle state of one uploaded file.
// It is not safe for concurrent use; the owner serializes access.
type StateMachine interface {
	State() State
	CanFire(trigger Trigger) bool
	Fire(trigger Trigger) error
}

type fileLifecycle struct {
	state State
}

// NewFileLifecycle returns a state machine for one uploaded file, starting in StateProcessing.
// Each file moves to completed or failed exactly once.
func NewFileLifecycle() StateMachine {
	return &fileLifecycle{state: StateProcessing}
}

func (m *fileLifecycle) State() State {
	return m.state
}

func (m *fileLifecycle) CanFire(trigger Trigger) bool {
	_, ok := transitions[m.state][trigger]
	return ok
}

func (m *fileLifecycle) Fire(trigger Trigger) error {
	next, ok := transitions[m.state][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.state)
	}
	m.state = next
	return nil
}
