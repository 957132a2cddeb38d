package dashboard

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thaleshodan/proxange/engine"
	"github.com/thaleshodan/proxange/events"
	"github.com/thaleshodan/proxange/identity"
	"github.com/thaleshodan/proxange/proxies"
	"github.com/thaleshodan/proxange/scheduler"
)

type fakeSound struct {
	mu    sync.Mutex
	cues  []events.Severity
	ticks int
	muted bool
}

func (s *fakeSound) Cue(sev events.Severity) {
	s.mu.Lock()
	s.cues = append(s.cues, sev)
	s.mu.Unlock()
}

func (s *fakeSound) PlayTick() {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

func (s *fakeSound) ToggleMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = !s.muted
	return s.muted
}

func (s *fakeSound) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

type failingProbe struct{}

func (failingProbe) ProbeIdentity(context.Context) (identity.Identity, error) {
	return identity.Identity{}, &identity.ProbeError{Probe: "http", Err: errors.New("connection refused")}
}

type fakeRecorder struct {
	mu       sync.Mutex
	triggers []string
}

func (r *fakeRecorder) Record(_ context.Context, _ identity.Identity, trigger string) error {
	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	return nil
}

// eventLog collects routed events by type
type eventLog struct {
	mu  sync.Mutex
	evs []events.Event
}

func (l *eventLog) handler(types ...events.EventType) events.Handler {
	return events.HandlerFunc{Types: types, Fn: func(ev events.Event) {
		l.mu.Lock()
		l.evs = append(l.evs, ev)
		l.mu.Unlock()
	}}
}

func (l *eventLog) count(t events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.evs {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	ctl    *Controller
	router *events.Router
	clock  *engine.MockTimeProvider
	sound  *fakeSound
	seen   *eventLog
}

func newFixture(t *testing.T, mutate func(d *Deps)) *fixture {
	t.Helper()
	clock := engine.NewMockTimeProvider(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	router := events.NewRouter()
	sound := &fakeSound{}
	seen := &eventLog{}
	router.Register(seen.handler(
		events.EventRotated,
		events.EventRotationFailed,
		events.EventStateChanged,
		events.EventIntervalChanged,
		events.EventProxiesTested,
		events.EventNotification,
	))

	d := Deps{
		Probe:    identity.NewMockProbe(rand.New(rand.NewSource(1)), clock, "Local Tor"),
		Router:   router,
		Registry: proxies.NewRegistry(proxies.Defaults(), proxies.TesterFunc(func(context.Context, proxies.Proxy) bool { return true }), nil),
		Sound:    sound,
		Clock:    clock,
		Rand:     rand.New(rand.NewSource(2)),
		Delays:   &Delays{},
		SchedulerOptions: []scheduler.Option{
			scheduler.WithDispatch(func(fn func()) { fn() }),
			scheduler.WithTickerFactory(func(time.Duration) (<-chan time.Time, func()) {
				return make(chan time.Time), func() {}
			}),
		},
	}
	if mutate != nil {
		mutate(&d)
	}

	ctl, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(ctl.Close)
	return &fixture{ctl: ctl, router: router, clock: clock, sound: sound, seen: seen}
}

func (f *fixture) lines() []string {
	return f.ctl.Log().Lines()
}

func (f *fixture) hasLine(prefix string) bool {
	for _, l := range f.lines() {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func TestNew_RequiresDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no probe", Deps{Router: events.NewRouter()}},
		{"no router", Deps{Probe: identity.NewMockProbe(nil, nil, "")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.deps)
			if !errors.Is(err, ErrMissingDependency) {
				t.Errorf("err = %v, want ErrMissingDependency", err)
			}
		})
	}
}

func TestNew_BootLines(t *testing.T) {
	f := newFixture(t, nil)
	got := f.lines()
	if len(got) != len(bootLines) {
		t.Fatalf("lines = %q", got)
	}
	for i := range bootLines {
		if got[i] != bootLines[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], bootLines[i])
		}
	}
	if f.ctl.Scheduler().Snapshot().Active() {
		t.Error("dashboard should start idle")
	}
}

func TestToggle_ActivatesAndDeactivates(t *testing.T) {
	f := newFixture(t, nil)

	f.ctl.Toggle()
	lines := f.lines()
	n := len(lines)
	if !strings.HasPrefix(lines[n-2], "IP rotated to ") || lines[n-1] != "Automatic IP rotation activated" {
		t.Fatalf("tail = %q", lines[n-2:])
	}
	if !f.ctl.Scheduler().Snapshot().Active() {
		t.Fatal("scheduler should be active")
	}

	f.ctl.Toggle()
	lines = f.lines()
	if lines[len(lines)-1] != "Automatic IP rotation deactivated" {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
	if f.ctl.Scheduler().Armed() != 0 {
		t.Error("no countdown should remain armed")
	}

	f.router.DispatchAll()
	if got := f.seen.count(events.EventStateChanged); got != 2 {
		t.Errorf("state changes = %d, want 2", got)
	}
	if got := f.seen.count(events.EventRotated); got != 1 {
		t.Errorf("rotations = %d, want 1", got)
	}
}

func TestRotateNow_UpdatesIdentity(t *testing.T) {
	rec := &fakeRecorder{}
	f := newFixture(t, func(d *Deps) { d.History = rec })

	before := f.ctl.Rotator().Current()
	f.ctl.RotateNow()
	after := f.ctl.Rotator().Current()

	if after.ID == before.ID {
		t.Error("identity did not change")
	}
	if !f.hasLine("IP rotated to " + after.Address) {
		t.Errorf("log = %q", f.lines())
	}
	if f.ctl.Scheduler().Snapshot().Active() {
		t.Error("RotateNow must not activate auto-rotation")
	}
	if len(rec.triggers) != 1 || rec.triggers[0] != string(scheduler.TriggerManual) {
		t.Errorf("recorded = %v", rec.triggers)
	}
}

func TestRotation_FailureNotifies(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Probe = failingProbe{} })

	f.ctl.RotateNow()
	if !f.hasLine("Rotation failed: http probe: connection refused") {
		t.Errorf("log = %q", f.lines())
	}

	f.router.DispatchAll()
	st := f.ctl.ViewState(f.clock.Now())
	if len(st.Toasts) != 1 || st.Toasts[0].Severity != events.SeverityError {
		t.Errorf("toasts = %+v", st.Toasts)
	}
	if st.Failures != 1 {
		t.Errorf("failures = %d", st.Failures)
	}
	if len(f.sound.cues) != 1 || f.sound.cues[0] != events.SeverityError {
		t.Errorf("cues = %v", f.sound.cues)
	}
}

func TestAdjustInterval(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		delta int
		want  int
	}{
		{10, 70},
		{-10, 60},
		{1000, 300},
		{-1000, 10},
	}
	for _, tt := range tests {
		if got := f.ctl.AdjustInterval(tt.delta); got != tt.want {
			t.Errorf("AdjustInterval(%d) = %d, want %d", tt.delta, got, tt.want)
		}
	}
	if got := f.ctl.SetInterval(500); got != 300 {
		t.Errorf("SetInterval(500) = %d", got)
	}

	f.router.DispatchAll()
	if got := f.seen.count(events.EventIntervalChanged); got != 5 {
		t.Errorf("interval events = %d, want 5", got)
	}
	if f.sound.ticks != 5 {
		t.Errorf("ticks = %d, want 5", f.sound.ticks)
	}
}

func TestTerminal(t *testing.T) {
	f := newFixture(t, nil)

	f.ctl.OpenTerminal()
	f.ctl.OpenTerminal()
	if !f.ctl.TerminalOpen() {
		t.Fatal("terminal should be open")
	}
	activated := 0
	for _, l := range f.lines() {
		if l == "Terminal activated" {
			activated++
		}
	}
	if activated != 1 {
		t.Errorf("Terminal activated logged %d times", activated)
	}

	f.ctl.Execute("status")
	id := f.ctl.Rotator().Current()
	want := []string{
		"status",
		"Current IP: " + id.Address,
		"Location: Amsterdam, Netherlands",
		"Proxy: Local Tor",
		"Auto-rotation: Disabled",
	}
	lines := f.lines()
	tail := lines[len(lines)-len(want):]
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("status line %d = %q, want %q", i, tail[i], want[i])
		}
	}

	f.ctl.Execute("clear")
	if got := f.lines(); len(got) != 0 {
		t.Errorf("after clear: %q", got)
	}

	f.ctl.Execute("exit")
	if f.ctl.TerminalOpen() {
		t.Error("exit should close the terminal")
	}
}

func TestTestProxies(t *testing.T) {
	f := newFixture(t, nil)

	f.ctl.TestProxies()
	f.ctl.Wait()

	if !f.hasLine("Testing all proxy connections...") {
		t.Error("missing start line")
	}
	if !f.hasLine("All proxies tested. 5/5 operational.") {
		t.Errorf("log = %q", f.lines())
	}

	f.router.DispatchAll()
	if got := f.seen.count(events.EventProxiesTested); got != 1 {
		t.Errorf("proxies tested events = %d", got)
	}
	if got := f.seen.count(events.EventNotification); got != 2 {
		t.Errorf("notifications = %d, want 2", got)
	}
	if st := f.ctl.ViewState(f.clock.Now()); st.ProxiesActive != 5 || st.ProxiesTotal != 5 {
		t.Errorf("proxies = %d/%d", st.ProxiesActive, st.ProxiesTotal)
	}
}

func TestTestProxies_NoRegistry(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Registry = nil })
	f.ctl.TestProxies()
	if !f.hasLine("No proxies configured") {
		t.Errorf("log = %q", f.lines())
	}
}

func TestCheckLeaks(t *testing.T) {
	f := newFixture(t, nil)

	f.ctl.CheckLeaks()
	f.ctl.Wait()

	lines := f.lines()
	if lines[len(lines)-2] != "Checking for IP leaks..." || lines[len(lines)-1] != "No IP leaks detected" {
		t.Errorf("tail = %q", lines[len(lines)-2:])
	}

	f.router.DispatchAll()
	st := f.ctl.ViewState(f.clock.Now())
	if len(st.Toasts) != 1 || st.Toasts[0].Title != "Security Check" {
		t.Errorf("toasts = %+v", st.Toasts)
	}
}

func TestClose_CancelsDelayedActions(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Delays = &Delays{ProxyTest: time.Hour, LeakCheck: time.Hour}
	})

	f.ctl.TestProxies()
	f.ctl.CheckLeaks()

	done := make(chan struct{})
	go func() {
		f.ctl.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on pending timers")
	}

	if f.hasLine("All proxies tested.") || f.hasLine("No IP leaks detected") {
		t.Errorf("delayed action ran after Close: %q", f.lines())
	}

	f.ctl.CheckLeaks()
	f.ctl.Wait()
	if f.hasLine("No IP leaks detected") {
		t.Error("action scheduled after Close ran")
	}
	f.ctl.Close()
}

func TestViewState(t *testing.T) {
	f := newFixture(t, nil)

	f.clock.Advance(90 * time.Second)
	f.ctl.Toggle()
	st := f.ctl.ViewState(f.clock.Now())

	if st.AnonymityScore < minAnonymityScore || st.AnonymityScore > maxAnonymityScore {
		t.Errorf("score = %d", st.AnonymityScore)
	}
	if st.Uptime != 90*time.Second {
		t.Errorf("uptime = %v", st.Uptime)
	}
	if !st.Active || st.IntervalSeconds != 60 || st.Remaining != 60 || st.Rotations != 1 {
		t.Errorf("rotation fields = %+v", st)
	}
	if !st.LastRotation.Equal(f.clock.Now()) {
		t.Errorf("last rotation = %v", st.LastRotation)
	}
	if st.Identity.Address == "" {
		t.Error("identity missing")
	}

	if muted := f.ctl.ToggleMute(); !muted {
		t.Error("ToggleMute should report muted")
	}
	if st := f.ctl.ViewState(f.clock.Now()); !st.Muted {
		t.Error("view should show muted")
	}
}

func TestNotifier_WithoutSinks(t *testing.T) {
	n := NewNotifier(nil, nil, nil)
	n.Notify("IP Rotated", "New IP: 1.2.3.4", events.SeverityInfo)
}

func TestToggle_DefaultDispatchLogsRotationFirst(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.SchedulerOptions = []scheduler.Option{
			scheduler.WithTickerFactory(func(time.Duration) (<-chan time.Time, func()) {
				return make(chan time.Time), func() {}
			}),
		}
	})

	for i := 0; i < 100; i++ {
		f.ctl.Toggle()
		lines := f.lines()
		n := len(lines)
		if !strings.HasPrefix(lines[n-2], "IP rotated to ") || lines[n-1] != "Automatic IP rotation activated" {
			t.Fatalf("iteration %d: tail = %q", i, lines[n-2:])
		}
		f.ctl.Toggle()
		f.router.DispatchAll()
	}

	f.ctl.RotateNow()
	f.ctl.Execute("status")
	if want := "Current IP: " + f.ctl.Rotator().Current().Address; !f.hasLine(want) {
		t.Errorf("status did not report the rotated address %q: %q", want, f.lines())
	}
	if got := f.ctl.ViewState(f.clock.Now()).Rotations; got != 101 {
		t.Errorf("rotations = %d, want 101", got)
	}
}

func TestViewState_CountsOnlySuccessfulRotations(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Probe = failingProbe{} })

	f.ctl.RotateNow()
	f.ctl.RotateNow()

	st := f.ctl.ViewState(f.clock.Now())
	if st.Rotations != 0 || st.Failures != 2 {
		t.Errorf("rotations = %d, failures = %d, want 0 and 2", st.Rotations, st.Failures)
	}
	if got := f.ctl.Scheduler().Snapshot().Attempts; got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestAddProxy(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		proxy    string
		url      string
		wantErr  bool
		wantLine string
		wantNote string
	}{
		{"valid", "HTTP", "Office", "http://10.0.0.1:3128", false, "Added new http proxy: Office", "Proxy Added"},
		{"missing url", "socks", "Home", "", true, "Add proxy failed: ", "Error"},
		{"unknown kind", "ftp", "Mirror", "ftp://x", true, "Add proxy failed: ", "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			before := f.ctl.ViewState(f.clock.Now()).ProxiesTotal

			err := f.ctl.AddProxy(tt.kind, tt.proxy, tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AddProxy error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, proxies.ErrInvalidProxy) {
				t.Errorf("error = %v, want ErrInvalidProxy", err)
			}
			if !f.hasLine(tt.wantLine) {
				t.Errorf("log = %q, want line %q", f.lines(), tt.wantLine)
			}

			f.router.DispatchAll()
			st := f.ctl.ViewState(f.clock.Now())
			if len(st.Toasts) != 1 || st.Toasts[0].Title != tt.wantNote {
				t.Errorf("toasts = %+v, want %q", st.Toasts, tt.wantNote)
			}
			wantTotal := before
			if !tt.wantErr {
				wantTotal++
			}
			if st.ProxiesTotal != wantTotal {
				t.Errorf("total = %d, want %d", st.ProxiesTotal, wantTotal)
			}
		})
	}
}

func TestAddProxy_NoRegistry(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Registry = nil })
	if err := f.ctl.AddProxy("http", "Office", "http://10.0.0.1:3128"); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("error = %v, want ErrMissingDependency", err)
	}
}

// purgingRecorder is a history that can be wiped
type purgingRecorder struct {
	fakeRecorder
	purges int
}

func (r *purgingRecorder) Purge(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purges++
	n := len(r.triggers)
	r.triggers = nil
	return n, nil
}

func TestClearAllLogs(t *testing.T) {
	rec := &purgingRecorder{}
	f := newFixture(t, func(d *Deps) { d.History = rec })

	f.ctl.RotateNow()
	f.ctl.ClearAllLogs()
	f.ctl.Wait()

	if got := f.lines(); len(got) != 1 || got[0] != "All logs and history cleared" {
		t.Errorf("log = %q", got)
	}
	rec.mu.Lock()
	purges, left := rec.purges, len(rec.triggers)
	rec.mu.Unlock()
	if purges != 1 || left != 0 {
		t.Errorf("purges = %d, rows left = %d", purges, left)
	}

	f.router.DispatchAll()
	st := f.ctl.ViewState(f.clock.Now())
	found := false
	for _, toast := range st.Toasts {
		if toast.Title == "Privacy" {
			found = true
		}
	}
	if !found {
		t.Errorf("toasts = %+v, want Privacy", st.Toasts)
	}
}

func TestClearAllLogs_WaitsForDelay(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Delays = &Delays{ClearLogs: time.Hour}
	})

	f.ctl.ClearAllLogs()
	if last := f.lines()[len(f.lines())-1]; last != "Clearing all logs and history..." {
		t.Errorf("last line = %q", last)
	}
	f.ctl.Close()
	if f.hasLine("All logs and history cleared") || !f.hasLine("System ready") {
		t.Errorf("clear ran after Close: %q", f.lines())
	}
}
