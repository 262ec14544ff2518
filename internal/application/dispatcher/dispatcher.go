package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/garyjia/fraudguard/internal/domain/event"
)

// ErrClosed is returned when dispatching on a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

const defaultQueueSize = 64

// Dispatcher routes upload events to registered handlers
type Dispatcher interface {
	// Subscribe registers a synchronous handler with a generated name
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a synchronous handler with a name used in logs
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAsync registers one handler for all eventTypes that runs on its own goroutine.
	// It sees events of those types in dispatch order, one at a time.
	SubscribeAsync(name string, handler Handler, eventTypes ...event.Type)

	// Dispatch runs the synchronous handlers in registration order and queues the event
	// for async handlers. A failing handler does not stop the others; sync errors are joined.
	Dispatch(ctx context.Context, evt *event.Event) error

	// ListHandlers returns registered handlers for an event type, without the functions
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects new events and waits until async handlers drain their queues
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	info  HandlerInfo
	queue chan queued // nil for sync handlers
}

type eventDispatcher struct {
	mu        sync.RWMutex
	subs      map[event.Type][]*subscription
	queues    []chan queued
	closed    bool
	queueSize int
	logger    Logger

	workers conc.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithQueueSize sets how many events an async handler may fall behind before Dispatch blocks
func WithQueueSize(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs:      make(map[event.Type][]*subscription),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.Lock()
	name := fmt.Sprintf("handler-%d", len(d.subs[eventType]))
	d.addLocked(&subscription{info: HandlerInfo{Name: name, EventType: eventType, Handler: handler}})
	d.mu.Unlock()
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.addLocked(&subscription{info: HandlerInfo{Name: name, EventType: eventType, Handler: handler}})
	d.mu.Unlock()
}

func (d *eventDispatcher) SubscribeAsync(name string, handler Handler, eventTypes ...event.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.error("Cannot subscribe, dispatcher is closed", "handler_name", name)
		return
	}
	if len(eventTypes) == 0 {
		return
	}

	// One queue shared by every type keeps cross-type order
	queue := make(chan queued, d.queueSize)
	d.queues = append(d.queues, queue)
	for _, t := range eventTypes {
		d.addLocked(&subscription{
			info:  HandlerInfo{Name: name, EventType: t, Async: true, Handler: handler},
			queue: queue,
		})
	}
	d.workers.Go(func() { d.drain(name, handler, queue) })
}

func (d *eventDispatcher) addLocked(sub *subscription) {
	d.subs[sub.info.EventType] = append(d.subs[sub.info.EventType], sub)
	d.info("Handler registered",
		"event_type", sub.info.EventType,
		"handler_name", sub.info.Name,
		"async", sub.info.Async,
	)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	subs := append([]*subscription(nil), d.subs[evt.Type]...)

	// Enqueue under the read lock so Close cannot close a queue mid-send
	for _, sub := range subs {
		if sub.queue != nil {
			sub.queue <- queued{ctx: context.WithoutCancel(ctx), evt: evt}
		}
	}
	d.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if sub.queue != nil {
			continue
		}
		if err := safeExecute(ctx, evt, sub.info.Handler); err != nil {
			d.error("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", sub.info.Name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("handler %s failed: %w", sub.info.Name, err))
		}
	}

	return errors.Join(errs...)
}

// drain runs one async subscription until its queue is closed
func (d *eventDispatcher) drain(name string, handler Handler, queue <-chan queued) {
	for item := range queue {
		if err := safeExecute(item.ctx, item.evt, handler); err != nil {
			d.error("Async handler error",
				"event_type", item.evt.Type,
				"event_id", item.evt.ID,
				"handler_name", name,
				"error", err,
			)
		}
	}
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]HandlerInfo, 0, len(d.subs[eventType]))
	for _, sub := range d.subs[eventType] {
		info := sub.info
		info.Handler = nil
		infos = append(infos, info)
	}
	return infos
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	d.info("Closing dispatcher, draining async handlers")
	d.workers.Wait()
	d.info("Dispatcher closed")
	return nil
}

// safeExecute runs a handler with panic recovery
func safeExecute(ctx context.Context, evt *event.Event, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) error(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
