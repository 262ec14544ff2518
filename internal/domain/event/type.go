package event

// Type identifies the type of domain event
type Type string

const (
	TypeBatchStarted  Type = "batch.started"
	TypeFileCompleted Type = "file.completed"
	TypeFileFailed    Type = "file.failed"
	TypeBatchFinished Type = "batch.finished"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeBatchStarted,
		TypeFileCompleted,
		TypeFileFailed,
		TypeBatchFinished:
		return true
	default:
		return false
	}
}

// AllTypes returns every upload event type in lifecycle order
func AllTypes() []Type {
	return []Type{TypeBatchStarted, TypeFileCompleted, TypeFileFailed, TypeBatchFinished}
}
