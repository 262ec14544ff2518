package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers
const (
	KeyFileName    = "file_name"
	KeyFraudStatus = "fraud_status"
	KeyError       = "error"
	KeyFileCount   = "file_count"
	KeyCompleted   = "completed"
	KeyFailed      = "failed"
	KeyProgress    = "progress"
)

// Event represents something that happened to an upload batch or one of its files
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	BatchID   string                 `json:"batch_id"`
	FileID    string                 `json:"file_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a batch-level event
func NewEvent(eventType Type, batchID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		BatchID:   batchID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewFileEvent creates an event about one file of a batch
func NewFileEvent(eventType Type, batchID, fileID string, payload map[string]interface{}) *Event {
	evt := NewEvent(eventType, batchID, payload)
	evt.FileID = fileID
	return evt
}

// GetPayloadString returns the string stored under key, or ""
func (e *Event) GetPayloadString(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// GetPayloadInt returns the number stored under key truncated to int64, or 0
func (e *Event) GetPayloadInt(key string) int64 {
	return int64(e.number(key))
}

// GetPayloadFloat returns the number stored under key, or 0
func (e *Event) GetPayloadFloat(key string) float64 {
	return e.number(key)
}

// number accepts the numeric types publishers use and float64 from decoded JSON
func (e *Event) number(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
