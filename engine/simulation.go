package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/core"
)

// Option configures a Simulation
type Option func(*simOptions)

type simOptions struct {
	rng          *rand.Rand
	linkDistance float64
	tickInterval time.Duration
	log          *zap.Logger
}

// WithRand makes entity generation reproducible
func WithRand(rng *rand.Rand) Option {
	return func(o *simOptions) { o.rng = rng }
}

// WithLinkDistance overrides the proximity threshold for edges
func WithLinkDistance(d float64) Option {
	return func(o *simOptions) {
		if d > 0 {
			o.linkDistance = d
		}
	}
}

// WithTickInterval overrides the loop period used by Start
func WithTickInterval(d time.Duration) Option {
	return func(o *simOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithLogger attaches a logger
func WithLogger(log *zap.Logger) Option {
	return func(o *simOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// Simulation is a running network map
// Entities are created once and never added or removed; Stop drops them
type Simulation struct {
	surface      Surface
	viewport     atomic.Pointer[Viewport]
	linkDistance float64
	tickInterval time.Duration
	log          *zap.Logger

	mu       sync.Mutex
	entities []Entity
	edges    []Edge

	ticks atomic.Uint64

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewSimulation creates the entity set without starting the tick loop
// Returns ErrSurfaceUnavailable if surface is nil or the viewport is not sized
func NewSimulation(surface Surface, width, height float64, count int, opts ...Option) (*Simulation, error) {
	o := simOptions{
		linkDistance: constants.LinkDistance,
		tickInterval: constants.AnimationTickInterval,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	vp := Viewport{Width: width, Height: height}
	if surface == nil || !vp.Valid() {
		return nil, ErrSurfaceUnavailable
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Simulation{
		surface:      surface,
		linkDistance: o.linkDistance,
		tickInterval: o.tickInterval,
		log:          o.log,
		entities:     spawnEntities(o.rng, vp, count),
	}
	s.viewport.Store(&vp)
	return s, nil
}

// Start creates the simulation and runs its tick loop until Stop or ctx cancellation
// On ErrSurfaceUnavailable nothing is started
func Start(ctx context.Context, surface Surface, width, height float64, count int, opts ...Option) (*Simulation, error) {
	s, err := NewSimulation(surface, width, height, count, opts...)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	core.Go(func() { s.run(loopCtx) })

	s.log.Debug("network map started",
		zap.Int("entities", count),
		zap.Float64("width", width),
		zap.Float64("height", height),
		zap.Duration("tick", s.tickInterval))
	return s, nil
}

// spawnEntities draws count entities uniformly over vp
func spawnEntities(rng *rand.Rand, vp Viewport, count int) []Entity {
	if count < 0 {
		count = 0
	}
	entities := make([]Entity, count)
	for i := range entities {
		entities[i] = Entity{
			Position: Vec2{X: rng.Float64() * vp.Width, Y: rng.Float64() * vp.Height},
			Velocity: Vec2{
				X: (rng.Float64() - 0.5) * 2 * constants.MaxEntitySpeed,
				Y: (rng.Float64() - 0.5) * 2 * constants.MaxEntitySpeed,
			},
			Radius: rng.Float64()*constants.EntityRadiusSpan + constants.MinEntityRadius,
			Linked: rng.Float64() < constants.LinkedProbability,
		}
	}
	return entities
}

// run is the single tick goroutine; a slow tick makes the ticker drop beats rather than overlap
func (s *Simulation) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances one step: edges, then per entity render, move and reflect
func (s *Simulation) Tick() {
	vp := *s.viewport.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entities) == 0 {
		return
	}

	s.edges = ComputeEdges(s.entities, s.linkDistance, s.edges[:0])

	s.surface.BeginFrame(vp)
	for _, edge := range s.edges {
		s.surface.DrawEdge(s.entities[edge.A].Position, s.entities[edge.B].Position, edge.Distance)
	}
	for i := range s.entities {
		s.surface.DrawEntity(s.entities[i])
		s.entities[i].Step(vp)
	}
	s.surface.EndFrame()

	s.ticks.Add(1)
}

// OnResize replaces the viewport; entities keep their positions
// Safe to call from any goroutine between or during ticks
func (s *Simulation) OnResize(width, height float64) {
	if s == nil {
		return
	}
	vp := Viewport{Width: width, Height: height}
	if !vp.Valid() {
		return
	}
	s.viewport.Store(&vp)
	s.log.Debug("network map resized", zap.Float64("width", width), zap.Float64("height", height))
}

// Stop cancels the tick loop, waits for an in-flight tick and drops the entities
// Safe on a nil Simulation and safe to call more than once
func (s *Simulation) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.mu.Lock()
		s.entities = nil
		s.edges = nil
		s.mu.Unlock()
		s.log.Debug("network map stopped", zap.Uint64("ticks", s.ticks.Load()))
	})
}

// Viewport returns the current bound pair
func (s *Simulation) Viewport() Viewport {
	return *s.viewport.Load()
}

// Entities returns a copy of the entity set
func (s *Simulation) Entities() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// Edges returns a copy of the edges computed by the last tick
func (s *Simulation) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Ticks returns the number of completed ticks
func (s *Simulation) Ticks() uint64 {
	return s.ticks.Load()
}
