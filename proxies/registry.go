package proxies

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentTests bounds parallel connectivity checks
const maxConcurrentTests = 4

// Tester checks whether a proxy is reachable
type Tester interface {
	Test(ctx context.Context, p Proxy) bool
}

// TesterFunc adapts a function to Tester
type TesterFunc func(ctx context.Context, p Proxy) bool

func (f TesterFunc) Test(ctx context.Context, p Proxy) bool { return f(ctx, p) }

// MockTester marks each proxy up with a fixed probability
type MockTester struct {
	mu     sync.Mutex
	rng    *rand.Rand
	upRate float64
}

// NewMockTester creates a tester; rng may be nil
func NewMockTester(rng *rand.Rand, upRate float64) *MockTester {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockTester{rng: rng, upRate: upRate}
}

func (m *MockTester) Test(ctx context.Context, _ Proxy) bool {
	if ctx.Err() != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.upRate
}

// TestResult summarizes a TestAll run
type TestResult struct {
	Operational int
	Total       int
}

func (r TestResult) String() string {
	return fmt.Sprintf("%d/%d operational", r.Operational, r.Total)
}

// Registry holds proxies in insertion order per kind, safe for concurrent use
type Registry struct {
	mu     sync.RWMutex
	byKind map[Kind][]Proxy
	tester Tester
	log    *zap.Logger
}

// NewRegistry creates a registry seeded with list
// Invalid entries are skipped and logged
func NewRegistry(list []Proxy, tester Tester, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		byKind: make(map[Kind][]Proxy),
		tester: tester,
		log:    log,
	}
	for _, p := range list {
		if err := r.add(p); err != nil {
			log.Warn("skipping proxy", zap.String("name", p.Name), zap.Error(err))
		}
	}
	return r
}

// Add validates and appends a new proxy, initially inactive
func (r *Registry) Add(kind Kind, name, url string) (Proxy, error) {
	p := Proxy{Kind: kind, Name: strings.TrimSpace(name), URL: strings.TrimSpace(url), Status: StatusInactive}
	if err := r.add(p); err != nil {
		return Proxy{}, err
	}
	return p, nil
}

func (r *Registry) add(p Proxy) error {
	if p.Name == "" || p.URL == "" {
		return fmt.Errorf("%w: name and url are required", ErrInvalidProxy)
	}
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = StatusInactive
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byKind[p.Kind] {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidProxy, p.Name)
		}
	}
	r.byKind[p.Kind] = append(r.byKind[p.Kind], p)
	return nil
}

// List returns a copy of the proxies of one kind
func (r *Registry) List(kind Kind) []Proxy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Proxy, len(r.byKind[kind]))
	copy(out, r.byKind[kind])
	return out
}

// All returns every proxy ordered by kind
func (r *Registry) All() []Proxy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Proxy
	for _, k := range Kinds {
		out = append(out, r.byKind[k]...)
	}
	return out
}

// Total returns the number of proxies
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.byKind {
		n += len(list)
	}
	return n
}

// Active returns the number of proxies that passed their last test
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.byKind {
		for _, p := range list {
			if p.Active() {
				n++
			}
		}
	}
	return n
}

// TestAll checks every proxy concurrently and stores the new statuses
func (r *Registry) TestAll(ctx context.Context) (TestResult, error) {
	snapshot := r.All()
	up := make([]bool, len(snapshot))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTests)
	for i, p := range snapshot {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			up[i] = r.tester.Test(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TestResult{}, fmt.Errorf("test proxies: %w", err)
	}

	res := TestResult{Total: len(snapshot)}
	status := make(map[string]Status, len(snapshot))
	for i, p := range snapshot {
		s := StatusInactive
		if up[i] {
			s = StatusActive
			res.Operational++
		}
		status[string(p.Kind)+"/"+p.Name] = s
	}

	r.mu.Lock()
	for kind, list := range r.byKind {
		for i := range list {
			if s, ok := status[string(kind)+"/"+list[i].Name]; ok {
				list[i].Status = s
			}
		}
	}
	r.mu.Unlock()

	r.log.Info("proxies tested", zap.Int("operational", res.Operational), zap.Int("total", res.Total))
	return res, nil
}
