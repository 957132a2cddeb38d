package scheduler

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/core"
	"github.com/thaleshodan/proxange/engine"
)

// progressEpsilon absorbs float error so N steps of 100/N land on a full cycle
const progressEpsilon = 1e-9

// State is the scheduler's automatic rotation state
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// Trigger names what caused a rotation
type Trigger string

const (
	TriggerStart  Trigger = "start"
	TriggerAuto   Trigger = "auto"
	TriggerManual Trigger = "manual"
)

// Rotator performs the rotation side effect
// Rotate may block; the scheduler never waits on it before the next tick
type Rotator interface {
	Rotate(ctx context.Context, trigger Trigger)
}

// RotatorFunc adapts a function to Rotator
type RotatorFunc func(ctx context.Context, trigger Trigger)

func (f RotatorFunc) Rotate(ctx context.Context, trigger Trigger) { f(ctx, trigger) }

// Clock supplies rotation timestamps
type Clock = engine.TimeProvider

// TickerFactory creates the countdown ticker, stop must release it
type TickerFactory func(d time.Duration) (c <-chan time.Time, stop func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Snapshot is a consistent copy of the rotation state
type Snapshot struct {
	State           State
	IntervalSeconds int
	ElapsedFraction float64
	LastRotation    time.Time
	// Attempts counts dispatched rotations, failed ones included
	Attempts uint64
}

// Active reports whether automatic rotation is running
func (s Snapshot) Active() bool {
	return s.State == StateActive
}

// Remaining returns whole seconds until the next automatic rotation
func (s Snapshot) Remaining() int {
	left := float64(s.IntervalSeconds) * (constants.ProgressFull - s.ElapsedFraction) / constants.ProgressFull
	return int(math.Ceil(left - progressEpsilon))
}

// ClampInterval bounds seconds to the supported interval range
func ClampInterval(seconds int) int {
	if seconds < constants.MinIntervalSeconds {
		return constants.MinIntervalSeconds
	}
	if seconds > constants.MaxIntervalSeconds {
		return constants.MaxIntervalSeconds
	}
	return seconds
}

// Scheduler runs the auto-rotation countdown
// At most one countdown goroutine exists at a time; arming always follows a completed teardown
type Scheduler struct {
	rotator      Rotator
	clock        Clock
	newTicker    TickerFactory
	dispatch     func(func())
	inlineWait   time.Duration
	tickInterval time.Duration
	log          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	interval     int
	elapsed      float64
	lastRotation time.Time
	attempts     uint64
	closed       bool

	// toggleMu serializes arm/disarm so two toggles never race to create timers
	toggleMu sync.Mutex
	cdStop   chan struct{}
	cdDone   chan struct{}
	armed    atomic.Int32

	inflight sync.WaitGroup
}

// New creates an idle scheduler
func New(rotator Rotator, opts ...Option) *Scheduler {
	s := &Scheduler{
		rotator:      rotator,
		clock:        engine.NewMonotonicTimeProvider(),
		newTicker:    realTicker,
		dispatch:     core.Go,
		inlineWait:   constants.RotationInlineWait,
		tickInterval: constants.RotationTickInterval,
		log:          zap.NewNop(),
		state:        StateIdle,
		interval:     constants.DefaultIntervalSeconds,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Toggle switches between Idle and Active and returns the new state
// Idle→Active rotates once and restarts the countdown from zero; Active→Idle only disarms
// The start rotation has completed on return unless its probe outlasts the inline wait
func (s *Scheduler) Toggle() State {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return StateIdle
	}

	if s.state == StateActive {
		s.state = StateIdle
		s.mu.Unlock()
		s.disarm()
		s.log.Info("auto rotation deactivated")
		return StateIdle
	}

	s.state = StateActive
	s.elapsed = 0
	start := s.beginRotationLocked(TriggerStart)
	interval := s.interval
	s.mu.Unlock()

	s.disarm()
	s.arm()
	start()

	s.log.Info("auto rotation activated", zap.Int("interval", interval))
	return StateActive
}

// RotateNow performs a rotation without touching state or progress
// Like Toggle, it returns once the rotation completed or the inline wait expired
func (s *Scheduler) RotateNow() {
	s.mu.Lock()
	fire := s.beginRotationLocked(TriggerManual)
	s.mu.Unlock()
	fire()
}

// SetInterval clamps and stores the interval, applied from the next tick
// Progress already accumulated is not rescaled
func (s *Scheduler) SetInterval(seconds int) int {
	clamped := ClampInterval(seconds)
	s.mu.Lock()
	s.interval = clamped
	s.mu.Unlock()

	if clamped != seconds {
		s.log.Debug("interval clamped", zap.Int("requested", seconds), zap.Int("applied", clamped))
	}
	return clamped
}

// Tick advances the countdown by one step and reports whether it fired a rotation
// Overshoot past a full cycle is discarded
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	if s.state != StateActive || s.closed {
		s.mu.Unlock()
		return false
	}

	next := s.elapsed + constants.ProgressFull/float64(s.interval)
	if next < constants.ProgressFull-progressEpsilon {
		s.elapsed = next
		s.mu.Unlock()
		return false
	}

	s.elapsed = 0
	fire := s.beginRotationLocked(TriggerAuto)
	s.mu.Unlock()

	fire()
	return true
}

// beginRotationLocked records the rotation and returns the dispatch closure
// Must hold s.mu; the WaitGroup is incremented under the lock so Close never races an Add
func (s *Scheduler) beginRotationLocked(trigger Trigger) func() {
	if s.closed {
		return func() {}
	}
	s.lastRotation = s.clock.Now()
	s.attempts++
	s.inflight.Add(1)

	ctx := s.ctx
	wait := s.inlineWait
	if trigger == TriggerAuto {
		wait = 0
	}
	return func() {
		done := make(chan struct{})
		s.dispatch(func() {
			defer s.inflight.Done()
			defer close(done)
			s.rotator.Rotate(ctx, trigger)
		})
		if wait <= 0 {
			return
		}

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			s.log.Debug("rotation still pending", zap.String("trigger", string(trigger)))
		}
	}
}

// arm starts the countdown goroutine, caller holds toggleMu and has disarmed
func (s *Scheduler) arm() {
	c, stop := s.newTicker(s.tickInterval)
	stopCh := make(chan struct{})
	done := make(chan struct{})
	s.cdStop, s.cdDone = stopCh, done
	s.armed.Add(1)

	core.Go(func() {
		defer close(done)
		defer stop()
		for {
			select {
			case <-stopCh:
				return
			case <-s.ctx.Done():
				return
			case <-c:
				s.Tick()
			}
		}
	})
}

// disarm stops the countdown and waits for its goroutine, no-op when not armed
func (s *Scheduler) disarm() {
	if s.cdStop == nil {
		return
	}
	close(s.cdStop)
	<-s.cdDone
	s.cdStop, s.cdDone = nil, nil
	s.armed.Add(-1)
}

// Snapshot returns the current state
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:           s.state,
		IntervalSeconds: s.interval,
		ElapsedFraction: s.elapsed,
		LastRotation:    s.lastRotation,
		Attempts:        s.attempts,
	}
}

// Armed returns the number of live countdowns, 0 or 1
func (s *Scheduler) Armed() int {
	return int(s.armed.Load())
}

// Wait blocks until every dispatched rotation has returned
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Close disarms the countdown, cancels pending rotations' context and waits for them
// Further calls are no-ops
func (s *Scheduler) Close() {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateIdle
	s.mu.Unlock()

	s.disarm()
	s.cancel()
	s.inflight.Wait()
	s.log.Debug("scheduler closed")
}
