package events

import (
	"sync/atomic"

	"github.com/thaleshodan/proxange/constants"
)

// EventQueue is a lock-free MPSC ring buffer of dashboard events
// Push is safe from any goroutine; Consume belongs to the frame loop
// When full, the oldest unread events are overwritten
type EventQueue struct {
	events    [constants.EventQueueSize]Event
	published [constants.EventQueueSize]atomic.Bool
	head      atomic.Uint64
	tail      atomic.Uint64
	overrun   atomic.Uint64
}

// NewEventQueue creates an empty queue
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push reserves a slot by CAS on tail, writes, then marks the slot published
func (eq *EventQueue) Push(event Event) {
	for {
		tail := eq.tail.Load()
		next := tail + 1
		if !eq.tail.CompareAndSwap(tail, next) {
			continue
		}

		idx := tail & constants.EventBufferMask
		eq.events[idx] = event
		eq.published[idx].Store(true)

		head := eq.head.Load()
		if next-head > constants.EventQueueSize {
			if eq.head.CompareAndSwap(head, next-constants.EventQueueSize) {
				eq.overrun.Add(next - constants.EventQueueSize - head)
			}
		}
		return
	}
}

// Consume returns pending events in FIFO order
// Stops early at a slot whose writer has not finished
func (eq *EventQueue) Consume() []Event {
	for {
		head := eq.head.Load()
		tail := eq.tail.Load()
		if tail == head {
			return nil
		}

		n := tail - head
		if n > constants.EventQueueSize {
			n = constants.EventQueueSize
			head = tail - constants.EventQueueSize
		}

		out := make([]Event, 0, n)
		for i := uint64(0); i < n; i++ {
			idx := (head + i) & constants.EventBufferMask
			if !eq.published[idx].Load() {
				break
			}
			out = append(out, eq.events[idx])
			eq.published[idx].Store(false)
		}

		if eq.head.CompareAndSwap(head, head+uint64(len(out))) {
			if len(out) == 0 {
				return nil
			}
			return out
		}
	}
}

// Overrun returns how many events were overwritten before being consumed
func (eq *EventQueue) Overrun() uint64 {
	return eq.overrun.Load()
}
