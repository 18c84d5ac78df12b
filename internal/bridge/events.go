package bridge

import (
	"log/slog"
	"sync"

	"github.com/chanronson/wlckg1-bridge/internal/decoder"
)

// Event types emitted on the bus.
const (
	// EventLock carries a *decoder.Event for a frame that survived the
	// filters.
	EventLock = "lock_event"
	// EventDrop carries a Drop for a frame that did not.
	EventDrop = "frame_drop"
)

// Event is one bus notification.
type Event struct {
	Type string
	Data interface{}
}

// Drop describes a refused frame for diagnostics consumers.
type Drop struct {
	Device  string
	Outcome decoder.Outcome
	Len     int
	// Counter is zero when the frame was too short to carry one.
	Counter uint8
}

// EventHandler receives bus events. Handlers run synchronously on the
// emitter's goroutine.
type EventHandler func(Event)

// EventBus fans decoded events out to subscribers.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates an event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger.With("component", "events"),
	}
}

// On registers a handler for a specific event type. Returns an
// unsubscribe function.
func (b *EventBus) On(eventType string, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]EventHandler)
	}
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// OnAll registers a handler for all event types. Returns an unsubscribe
// function.
func (b *EventBus) OnAll(handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.allHandlers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.allHandlers, id)
	}
}

// Emit delivers an event to every matching handler, synchronously. A
// panicking handler is logged and does not stop delivery to the rest.
func (b *EventBus) Emit(event Event) {
	b.mu.RLock()
	targets := make([]EventHandler, 0, len(b.handlers[event.Type])+len(b.allHandlers))
	for _, h := range b.handlers[event.Type] {
		targets = append(targets, h)
	}
	for _, h := range b.allHandlers {
		targets = append(targets, h)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		b.callHandler(event, h)
	}
}

func (b *EventBus) callHandler(event Event, handler EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", event.Type, "panic", r)
		}
	}()
	handler(event)
}
