package events

import (
	"sync"
	"time"
)

// Handler processes specific event types
type Handler interface {
	// HandleEvent processes a single event
	HandleEvent(event Event)

	// EventTypes returns the event types this handler processes
	EventTypes() []EventType
}

// HandlerFunc adapts a function to Handler for the listed types
type HandlerFunc struct {
	Types []EventType
	Fn    func(Event)
}

func (h HandlerFunc) HandleEvent(event Event) { h.Fn(event) }
func (h HandlerFunc) EventTypes() []EventType { return h.Types }

// Router dispatches events to registered handlers
//
// Two delivery paths:
//   - Emit routes immediately on the caller's goroutine
//   - Publish queues; DispatchAll drains the queue on the frame loop
//
// Handlers for one type run in registration order.
type Router struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	queue    *EventQueue
	now      func() time.Time
}

// NewRouter creates a router with its own queue
func NewRouter() *Router {
	return &Router{
		handlers: make(map[EventType][]Handler),
		queue:    NewEventQueue(),
		now:      time.Now,
	}
}

// Register adds a handler for its declared event types
func (r *Router) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range handler.EventTypes() {
		r.handlers[t] = append(r.handlers[t], handler)
	}
}

// Publish stamps and queues an event for the next DispatchAll, safe from any goroutine
func (r *Router) Publish(t EventType, payload any) {
	r.queue.Push(Event{Type: t, Payload: payload, Timestamp: r.now()})
}

// Emit stamps and routes an event synchronously
func (r *Router) Emit(t EventType, payload any) {
	r.route(Event{Type: t, Payload: payload, Timestamp: r.now()})
}

// DispatchAll consumes all pending events and routes them in FIFO order
// Returns the number of events consumed
func (r *Router) DispatchAll() int {
	evs := r.queue.Consume()
	for _, ev := range evs {
		r.route(ev)
	}
	return len(evs)
}

func (r *Router) route(ev Event) {
	r.mu.RLock()
	handlers := r.handlers[ev.Type]
	r.mu.RUnlock()

	for _, h := range handlers {
		h.HandleEvent(ev)
	}
}

// HasHandlers returns true if any handlers are registered for the given type
func (r *Router) HasHandlers(t EventType) bool {
	return r.HandlerCount(t) > 0
}

// HandlerCount returns the number of handlers registered for the given type
func (r *Router) HandlerCount(t EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t])
}

// Overrun returns how many queued events were lost to ring overflow
func (r *Router) Overrun() uint64 {
	return r.queue.Overrun()
}
