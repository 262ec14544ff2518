package workflow

import "errors"

// ErrInvalidTransition is returned when a trigger is not permitted from the current state
var ErrInvalidTransition = errors.New("invalid state transition")

// State represents a lifecycle state of an uploaded claim document
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValid reports whether s is a known lifecycle state
func (s State) IsValid() bool {
	return s == StateProcessing || s.IsTerminal()
}

func (s State) String() string {
	return string(s)
}

// Trigger is the outcome reported for a file
type Trigger string

const (
	TriggerComplete Trigger = "COMPLETE"
	TriggerFail     Trigger = "FAIL"
)

func (t Trigger) String() string {
	return string(t)
}
