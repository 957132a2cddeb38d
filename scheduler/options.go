package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock sets the timestamp source for rotations
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTickerFactory replaces the countdown ticker, tests drive ticks by hand
func WithTickerFactory(f TickerFactory) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.newTicker = f
		}
	}
}

// WithDispatch sets how rotation side effects are launched
// The default runs each one on its own crash-safe goroutine
func WithDispatch(d func(func())) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.dispatch = d
		}
	}
}

// WithInterval sets the initial interval, clamped
func WithInterval(seconds int) Option {
	return func(s *Scheduler) {
		s.interval = ClampInterval(seconds)
	}
}

// WithTickInterval sets the countdown period
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithLogger attaches a logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithInlineWait bounds how long Toggle and RotateNow wait for their rotation, 0 never waits
// Automatic rotations are never awaited
func WithInlineWait(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.inlineWait = d
		}
	}
}
