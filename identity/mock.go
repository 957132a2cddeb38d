package identity

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thaleshodan/proxange/engine"
)

// exitNodes is the fixed pool of simulated exit locations
var exitNodes = []Location{
	{Country: "Netherlands", Region: "North Holland", City: "Amsterdam", Org: "Tor Exit Node", Timezone: "Europe/Amsterdam"},
	{Country: "Germany", Region: "Berlin", City: "Berlin", Org: "Tor Exit Node", Timezone: "Europe/Berlin"},
	{Country: "Sweden", Region: "Stockholm County", City: "Stockholm", Org: "Tor Exit Node", Timezone: "Europe/Stockholm"},
	{Country: "Switzerland", Region: "Zurich", City: "Zurich", Org: "Tor Exit Node", Timezone: "Europe/Zurich"},
	{Country: "Romania", Region: "Bucharest", City: "Bucharest", Org: "Tor Exit Node", Timezone: "Europe/Bucharest"},
}

// ExitLocations returns a copy of the simulated location pool
func ExitLocations() []Location {
	out := make([]Location, len(exitNodes))
	copy(out, exitNodes)
	return out
}

// Clock supplies probe timestamps
type Clock = engine.TimeProvider

// MockProbe fabricates identities without touching the network
type MockProbe struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock Clock
	proxy string
}

// NewMockProbe creates a mock probe; rng and clock may be nil
func NewMockProbe(rng *rand.Rand, clock Clock, proxy string) *MockProbe {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = engine.NewMonotonicTimeProvider()
	}
	return &MockProbe{
		rng:   rng,
		clock: clock,
		proxy: proxy,
	}
}

// ProbeIdentity returns a random address in a random pool location
func (p *MockProbe) ProbeIdentity(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, &ProbeError{Probe: "mock", Err: err}
	}

	p.mu.Lock()
	addr := fmt.Sprintf("%d.%d.%d.%d", p.rng.Intn(255), p.rng.Intn(255), p.rng.Intn(255), p.rng.Intn(255))
	loc := exitNodes[p.rng.Intn(len(exitNodes))]
	latency := time.Duration(p.rng.Float64() * 2 * float64(time.Second))
	p.mu.Unlock()

	return Identity{
		ID:        uuid.New(),
		Address:   addr,
		Proxy:     p.proxy,
		Location:  loc,
		Latency:   latency,
		Timestamp: p.clock.Now(),
	}, nil
}
