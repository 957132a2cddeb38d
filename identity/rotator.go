package identity

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/events"
	"github.com/thaleshodan/proxange/logbook"
	"github.com/thaleshodan/proxange/scheduler"
)

// Recorder persists observed identities
type Recorder interface {
	Record(ctx context.Context, id Identity, trigger string) error
}

// Notifier shows a user-facing notification
type Notifier interface {
	Notify(title, message string, severity events.Severity)
}

// Publisher queues dashboard events
type Publisher interface {
	Publish(t events.EventType, payload any)
}

// Rotator is the scheduler's rotation side effect: probe, then report
// A failed probe is logged and notified; it never stops the scheduler
type Rotator struct {
	probe   Probe
	log     *logbook.Log
	bus     Publisher
	notify  Notifier
	history Recorder
	logger  *zap.Logger

	mu       sync.RWMutex
	current  Identity
	seq      uint64 // rotations started
	applied  uint64 // seq of the identity in current
	rotated  uint64
	failures uint64
}

// RotatorOption configures a Rotator
type RotatorOption func(*Rotator)

// WithPublisher sets the event sink
func WithPublisher(p Publisher) RotatorOption {
	return func(r *Rotator) { r.bus = p }
}

// WithNotifier sets the notification sink
func WithNotifier(n Notifier) RotatorOption {
	return func(r *Rotator) { r.notify = n }
}

// WithRecorder sets the history sink
func WithRecorder(rec Recorder) RotatorOption {
	return func(r *Rotator) { r.history = rec }
}

// WithRotatorLogger attaches a logger
func WithRotatorLogger(log *zap.Logger) RotatorOption {
	return func(r *Rotator) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewRotator creates a rotator starting from initial
func NewRotator(probe Probe, log *logbook.Log, initial Identity, opts ...RotatorOption) *Rotator {
	r := &Rotator{
		probe:   probe,
		log:     log,
		current: initial,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rotate probes a new identity and reports the outcome
// When rotations overlap, the identity of the latest started one is kept as current
func (r *Rotator) Rotate(ctx context.Context, trigger scheduler.Trigger) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	proxy := r.current.Proxy
	r.mu.Unlock()

	id, err := r.probe.ProbeIdentity(ctx)
	if err != nil {
		// Shutdown cancels in-flight probes; that is not a failed rotation
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			r.logger.Debug("rotation cancelled", zap.String("trigger", string(trigger)))
			return
		}
		r.fail(trigger, err)
		return
	}
	if id.Proxy == "" {
		id.Proxy = proxy
	}

	r.mu.Lock()
	if seq > r.applied {
		r.current = id
		r.applied = seq
	}
	r.rotated++
	r.mu.Unlock()

	country := id.Location.Country
	if country == "" {
		country = "unknown"
	}
	r.log.Appendf("IP rotated to %s (%s)", id.Address, country)
	r.logger.Info("identity rotated",
		zap.String("trigger", string(trigger)),
		zap.String("address", id.Address),
		zap.String("country", country),
		zap.Duration("latency", id.Latency),
	)

	if r.history != nil {
		if err := r.history.Record(ctx, id, string(trigger)); err != nil {
			r.logger.Warn("record rotation failed", zap.Error(err))
		}
	}
	if r.bus != nil {
		r.bus.Publish(events.EventRotated, &events.RotatedPayload{
			ID:        id.ID.String(),
			Trigger:   string(trigger),
			Address:   id.Address,
			Proxy:     id.Proxy,
			Country:   id.Location.Country,
			City:      id.Location.City,
			Latency:   id.Latency,
			Timestamp: id.Timestamp,
		})
	}
	if r.notify != nil {
		r.notify.Notify("IP Rotated", "New IP: "+id.Address, events.SeverityInfo)
	}
}

func (r *Rotator) fail(trigger scheduler.Trigger, err error) {
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()

	r.log.Appendf("Rotation failed: %v", err)
	r.logger.Warn("rotation failed", zap.String("trigger", string(trigger)), zap.Error(err))

	if r.bus != nil {
		r.bus.Publish(events.EventRotationFailed, &events.RotationFailedPayload{
			Trigger: string(trigger),
			Error:   err.Error(),
		})
	}
	if r.notify != nil {
		r.notify.Notify("Rotation Failed", err.Error(), events.SeverityError)
	}
}

// Current returns the most recent identity
func (r *Rotator) Current() Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Rotations returns the number of successful rotations
func (r *Rotator) Rotations() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rotated
}

// Failures returns the number of failed rotations
func (r *Rotator) Failures() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures
}
