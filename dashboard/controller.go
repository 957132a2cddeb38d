// Package dashboard owns the running state of the proxy dashboard and turns
// keyboard and terminal intents into scheduler, rotator and registry calls.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/core"
	"github.com/thaleshodan/proxange/engine"
	"github.com/thaleshodan/proxange/events"
	"github.com/thaleshodan/proxange/identity"
	"github.com/thaleshodan/proxange/logbook"
	"github.com/thaleshodan/proxange/modes"
	"github.com/thaleshodan/proxange/proxies"
	"github.com/thaleshodan/proxange/render"
	"github.com/thaleshodan/proxange/scheduler"
)

// bootLines are appended to the log when the dashboard starts
var bootLines = []string{
	"Proxange initialized",
	"Checking available proxies...",
	"Tor circuit established",
	"System ready",
}

// Anonymity score range, inclusive
const (
	minAnonymityScore = 70
	maxAnonymityScore = 99
)

// Delays are the durations of the simulated background checks
type Delays struct {
	ProxyTest time.Duration
	LeakCheck time.Duration
	ClearLogs time.Duration
}

// DefaultDelays are the pauses before mock test results are reported
var DefaultDelays = Delays{
	ProxyTest: 2 * time.Second,
	LeakCheck: 1500 * time.Millisecond,
	ClearLogs: time.Second,
}

// Purger wipes stored rotation history; store.History implements it
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Deps are the collaborators of a Controller; Probe and Router are required
type Deps struct {
	Probe    identity.Probe
	Router   *events.Router
	Registry *proxies.Registry
	// History also implements Purger when clearing logs should wipe it
	History identity.Recorder
	Sound    Sound
	Logger   *zap.Logger
	Clock    scheduler.Clock
	Rand     *rand.Rand
	Delays   *Delays

	// Interval is the initial auto-rotation interval in seconds, clamped
	Interval int
	// SchedulerOptions are appended after the controller's own options
	SchedulerOptions []scheduler.Option
}

// ErrMissingDependency is returned by New when a required collaborator is nil
var ErrMissingDependency = errors.New("missing dependency")

// Controller implements modes.Controller and modes.Target
type Controller struct {
	log      *logbook.Log
	router   *events.Router
	notifier *Notifier
	rotator  *identity.Rotator
	sched    *scheduler.Scheduler
	interp   *modes.Interpreter
	registry *proxies.Registry
	purger   Purger
	toasts   *render.Toasts
	sound    Sound
	logger   *zap.Logger
	clock    scheduler.Clock
	delays   Delays
	started  time.Time

	terminalOpen atomic.Bool
	score        atomic.Int32

	rngMu sync.Mutex
	rng   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc

	// Pending delayed actions; Close stops them
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	closed  bool
	pending sync.WaitGroup
}

// New wires a controller and writes the boot lines to its log
func New(d Deps) (*Controller, error) {
	if d.Probe == nil {
		return nil, fmt.Errorf("%w: probe", ErrMissingDependency)
	}
	if d.Router == nil {
		return nil, fmt.Errorf("%w: router", ErrMissingDependency)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = engine.NewMonotonicTimeProvider()
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	delays := DefaultDelays
	if d.Delays != nil {
		delays = *d.Delays
	}
	if d.Interval == 0 {
		d.Interval = constants.DefaultIntervalSeconds
	}

	c := &Controller{
		log:      logbook.New(constants.LogCapacity),
		router:   d.Router,
		registry: d.Registry,
		toasts:   render.NewToasts(constants.ToastDuration, constants.MaxToasts),
		sound:    d.Sound,
		logger:   d.Logger,
		clock:    d.Clock,
		delays:   delays,
		rng:      d.Rand,
		timers:   make(map[*time.Timer]struct{}),
	}
	if p, ok := d.History.(Purger); ok {
		c.purger = p
	}
	c.started = c.clock.Now()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.notifier = NewNotifier(d.Router, d.Sound, d.Logger.Named("notify"))

	opts := []identity.RotatorOption{
		identity.WithPublisher(d.Router),
		identity.WithNotifier(c.notifier),
		identity.WithRotatorLogger(d.Logger.Named("rotator")),
	}
	if d.History != nil {
		opts = append(opts, identity.WithRecorder(d.History))
	}
	c.rotator = identity.NewRotator(d.Probe, c.log, identity.Initial(c.started), opts...)

	schedOpts := append([]scheduler.Option{
		scheduler.WithInterval(d.Interval),
		scheduler.WithClock(d.Clock),
		scheduler.WithLogger(d.Logger.Named("scheduler")),
	}, d.SchedulerOptions...)
	c.sched = scheduler.New(c.rotator, schedOpts...)
	c.interp = modes.NewInterpreter(c.log, c, d.Logger.Named("terminal"))

	c.rerollScore()
	c.log.Subscribe(c.onLogLine)
	c.register()

	for _, line := range bootLines {
		c.log.Append(line)
	}
	return c, nil
}

// register attaches the controller's own handlers to the router
func (c *Controller) register() {
	c.router.Register(c.toasts)
	c.router.Register(events.HandlerFunc{
		Types: []events.EventType{events.EventRotated},
		Fn:    func(events.Event) { c.rerollScore() },
	})
	c.router.Register(events.HandlerFunc{
		Types: []events.EventType{events.EventIntervalChanged},
		Fn: func(events.Event) {
			if c.sound != nil {
				c.sound.PlayTick()
			}
		},
	})
	c.router.Register(events.HandlerFunc{
		Types: []events.EventType{events.EventLogAppended},
		Fn: func(ev events.Event) {
			if p, ok := ev.Payload.(*events.LogAppendedPayload); ok {
				c.logger.Debug("log", zap.String("line", p.Line), zap.Bool("cleared", p.Cleared))
			}
		},
	})
}

func (c *Controller) onLogLine(line string, cleared bool) {
	c.router.Publish(events.EventLogAppended, &events.LogAppendedPayload{Line: line, Cleared: cleared})
}

func (c *Controller) rerollScore() {
	c.rngMu.Lock()
	n := minAnonymityScore + c.rng.Intn(maxAnonymityScore-minAnonymityScore+1)
	c.rngMu.Unlock()
	c.score.Store(int32(n))
}

// Log returns the connection log
func (c *Controller) Log() *logbook.Log {
	return c.log
}

// Scheduler returns the rotation scheduler
func (c *Controller) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Rotator returns the identity rotator
func (c *Controller) Rotator() *identity.Rotator {
	return c.rotator
}

// Toggle switches automatic rotation on or off
func (c *Controller) Toggle() {
	state := c.sched.Toggle()
	active := state == scheduler.StateActive
	if active {
		c.log.Append("Automatic IP rotation activated")
	} else {
		c.log.Append("Automatic IP rotation deactivated")
	}
	c.router.Publish(events.EventStateChanged, &events.StateChangedPayload{
		Active:          active,
		IntervalSeconds: c.sched.Snapshot().IntervalSeconds,
	})
}

// RotateNow rotates once, in either state
func (c *Controller) RotateNow() {
	c.sched.RotateNow()
}

// SetInterval applies a new interval and returns the clamped value
func (c *Controller) SetInterval(seconds int) int {
	applied := c.sched.SetInterval(seconds)
	c.logger.Debug("interval changed", zap.Int("seconds", applied))
	c.router.Publish(events.EventIntervalChanged, &events.IntervalChangedPayload{IntervalSeconds: applied})
	return applied
}

// AdjustInterval shifts the interval by delta seconds
func (c *Controller) AdjustInterval(delta int) int {
	return c.SetInterval(c.sched.Snapshot().IntervalSeconds + delta)
}

// OpenTerminal shows the terminal overlay
func (c *Controller) OpenTerminal() {
	if !c.terminalOpen.Swap(true) {
		c.log.Append("Terminal activated")
	}
}

// CloseTerminal hides the terminal overlay
func (c *Controller) CloseTerminal() {
	c.terminalOpen.Store(false)
}

// TerminalOpen reports whether the overlay is shown
func (c *Controller) TerminalOpen() bool {
	return c.terminalOpen.Load()
}

// Execute runs one terminal command line
func (c *Controller) Execute(input string) {
	c.interp.Execute(input)
}

// Status reports the current identity for the status command
func (c *Controller) Status() modes.StatusReport {
	id := c.rotator.Current()
	return modes.StatusReport{
		Address:      id.Address,
		City:         id.Location.City,
		Country:      id.Location.Country,
		Proxy:        id.Proxy,
		AutoRotation: c.sched.Snapshot().Active(),
	}
}

// TestProxies starts a connectivity test of every registered proxy
// The result is logged after the test delay
func (c *Controller) TestProxies() {
	if c.registry == nil || c.registry.Total() == 0 {
		c.log.Append("No proxies configured")
		return
	}

	c.notifier.Notify("Testing Proxies", "Testing all proxies for connectivity...", events.SeverityInfo)
	c.log.Append("Testing all proxy connections...")

	c.after(c.delays.ProxyTest, func() {
		res, err := c.registry.TestAll(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Appendf("Proxy test failed: %v", err)
			c.notifier.Notify("Test Failed", err.Error(), events.SeverityError)
			return
		}
		c.log.Appendf("All proxies tested. %s.", res)
		c.router.Publish(events.EventProxiesTested, &events.ProxiesTestedPayload{
			Operational: res.Operational,
			Total:       res.Total,
		})
		c.notifier.Notify("Test Complete", "All proxies tested. "+res.String(), events.SeverityInfo)
	})
}

// CheckLeaks runs the simulated leak check
func (c *Controller) CheckLeaks() {
	c.log.Append("Checking for IP leaks...")
	c.after(c.delays.LeakCheck, func() {
		c.log.Append("No IP leaks detected")
		c.notifier.Notify("Security Check", "No IP leaks detected", events.SeverityInfo)
	})
}

// AddProxy registers a proxy from the add form; kind is tor, http or socks
// Failures are logged and notified as well as returned
func (c *Controller) AddProxy(kind, name, url string) error {
	if c.registry == nil {
		err := fmt.Errorf("%w: proxy registry", ErrMissingDependency)
		c.log.Appendf("Add proxy failed: %v", err)
		return err
	}

	k, err := proxies.ParseKind(kind)
	if err == nil {
		_, err = c.registry.Add(k, name, url)
	}
	if err != nil {
		c.log.Appendf("Add proxy failed: %v", err)
		c.notifier.Notify("Error", "Please provide a kind, proxy name and URL", events.SeverityError)
		return err
	}

	c.log.Appendf("Added new %s proxy: %s", k, strings.TrimSpace(name))
	c.notifier.Notify("Proxy Added",
		fmt.Sprintf("Added %s to %s proxies", strings.TrimSpace(name), strings.ToUpper(string(k))),
		events.SeverityInfo)
	return nil
}

// ClearAllLogs wipes the connection log and the rotation history after the clear delay
func (c *Controller) ClearAllLogs() {
	c.log.Append("Clearing all logs and history...")
	c.after(c.delays.ClearLogs, func() {
		c.log.Clear()
		if c.purger != nil {
			n, err := c.purger.Purge(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Warn("purge history failed", zap.Error(err))
			} else {
				c.logger.Info("history purged", zap.Int("rows", n))
			}
		}
		c.log.Append("All logs and history cleared")
		c.notifier.Notify("Privacy", "All logs and history cleared", events.SeverityInfo)
	})
}

// ToggleMute flips audio mute and returns the new state
func (c *Controller) ToggleMute() bool {
	if c.sound == nil {
		return true
	}
	muted := c.sound.ToggleMute()
	c.logger.Debug("audio", zap.Bool("muted", muted))
	return muted
}

// after runs fn once d has elapsed unless Close comes first
func (c *Controller) after(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer c.pending.Done()

		c.mu.Lock()
		_, live := c.timers[t]
		delete(c.timers, t)
		c.mu.Unlock()
		if !live {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				core.HandleCrash(r)
			}
		}()
		fn()
	})
	c.timers[t] = struct{}{}
}

// Wait blocks until pending delayed actions and in-flight rotations finish
func (c *Controller) Wait() {
	c.pending.Wait()
	c.sched.Wait()
}

// ViewState assembles the frame shown by render.View
func (c *Controller) ViewState(now time.Time) render.State {
	snap := c.sched.Snapshot()
	st := render.State{
		Now:             now,
		Active:          snap.Active(),
		IntervalSeconds: snap.IntervalSeconds,
		Remaining:       snap.Remaining(),
		Fraction:        snap.ElapsedFraction,
		LastRotation:    snap.LastRotation,
		Rotations:       c.rotator.Rotations(),
		Failures:        c.rotator.Failures(),
		Identity:        c.rotator.Current(),
		AnonymityScore:  int(c.score.Load()),
		Uptime:          now.Sub(c.started),
		Log:             c.log.Tail(constants.LogCapacity),
		Toasts:          c.toasts.Active(now),
		TerminalOpen:    c.terminalOpen.Load(),
	}
	if c.registry != nil {
		st.ProxiesActive = c.registry.Active()
		st.ProxiesTotal = c.registry.Total()
	}
	if c.sound != nil {
		st.Muted = c.sound.Muted()
	}
	return st
}

// Close cancels delayed actions, stops the scheduler and waits for in-flight work
// Safe to call more than once
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for t := range c.timers {
		if t.Stop() {
			c.pending.Done()
		}
	}
	c.timers = nil
	c.mu.Unlock()

	c.cancel()
	c.pending.Wait()
	c.sched.Close()
	c.logger.Debug("dashboard closed")
}

var (
	_ modes.Controller = (*Controller)(nil)
	_ modes.Target     = (*Controller)(nil)
)
