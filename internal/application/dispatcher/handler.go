package dispatcher

import (
	"context"

	"github.com/garyjia/fraudguard/internal/domain/event"
)

// Handler processes upload events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Async     bool
	Handler   Handler
}

// queued is one event waiting for an async subscriber
type queued struct {
	ctx context.Context
	evt *event.Event
}
