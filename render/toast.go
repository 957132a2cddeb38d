package render

import (
	"sync"
	"time"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/events"
)

// Toast is one on-screen notification
type Toast struct {
	Title    string
	Message  string
	Severity events.Severity
	Expires  time.Time
}

// Toasts is the notification stack; it receives EventNotification from the router
type Toasts struct {
	mu    sync.Mutex
	items []Toast
	ttl   time.Duration
	max   int
}

// NewToasts creates a stack keeping at most max toasts for ttl each
func NewToasts(ttl time.Duration, max int) *Toasts {
	if ttl <= 0 {
		ttl = constants.ToastDuration
	}
	if max <= 0 {
		max = constants.MaxToasts
	}
	return &Toasts{ttl: ttl, max: max}
}

// Push adds a toast; the oldest is dropped when the stack is full
func (t *Toasts) Push(title, message string, severity events.Severity, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = append(t.items, Toast{
		Title:    title,
		Message:  message,
		Severity: severity,
		Expires:  now.Add(t.ttl),
	})
	if over := len(t.items) - t.max; over > 0 {
		t.items = append(t.items[:0], t.items[over:]...)
	}
}

// Active prunes expired toasts and returns the rest, oldest first
func (t *Toasts) Active(now time.Time) []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.items[:0]
	for _, item := range t.items {
		if now.Before(item.Expires) {
			kept = append(kept, item)
		}
	}
	t.items = kept

	out := make([]Toast, len(kept))
	copy(out, kept)
	return out
}

// EventTypes implements events.Handler
func (t *Toasts) EventTypes() []events.EventType {
	return []events.EventType{events.EventNotification}
}

// HandleEvent implements events.Handler
func (t *Toasts) HandleEvent(ev events.Event) {
	p, ok := ev.Payload.(*events.NotificationPayload)
	if !ok {
		return
	}
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	t.Push(p.Title, p.Message, p.Severity, now)
}
