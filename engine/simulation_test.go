package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thaleshodan/proxange/constants"
)

// recordingSurface counts draw calls and flags overlapping frames
type recordingSurface struct {
	mu        sync.Mutex
	frames    int
	edges     int
	entities  int
	inFrame   atomic.Bool
	overlap   atomic.Bool
	viewports []Viewport
}

func (r *recordingSurface) BeginFrame(vp Viewport) {
	if !r.inFrame.CompareAndSwap(false, true) {
		r.overlap.Store(true)
	}
	r.mu.Lock()
	r.viewports = append(r.viewports, vp)
	r.mu.Unlock()
}

func (r *recordingSurface) DrawEdge(a, b Vec2, distance float64) {
	r.mu.Lock()
	r.edges++
	r.mu.Unlock()
}

func (r *recordingSurface) DrawEntity(e Entity) {
	r.mu.Lock()
	r.entities++
	r.mu.Unlock()
}

func (r *recordingSurface) EndFrame() {
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
	r.inFrame.Store(false)
}

func (r *recordingSurface) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func newTestSimulation(t *testing.T, w, h float64, count int, seed int64) (*Simulation, *recordingSurface) {
	t.Helper()
	surface := &recordingSurface{}
	sim, err := NewSimulation(surface, w, h, count, WithRand(rand.New(rand.NewSource(seed))))
	if err != nil {
		t.Fatalf("NewSimulation failed: %v", err)
	}
	return sim, surface
}

func TestNewSimulation_EntityDistribution(t *testing.T) {
	sim, _ := newTestSimulation(t, 640, 480, 1000, 1)
	entities := sim.Entities()
	if len(entities) != 1000 {
		t.Fatalf("Expected 1000 entities, got %d", len(entities))
	}

	linked := 0
	for i, e := range entities {
		if e.Position.X < 0 || e.Position.X >= 640 || e.Position.Y < 0 || e.Position.Y >= 480 {
			t.Errorf("entity %d spawned outside viewport: %+v", i, e.Position)
		}
		if e.Radius < 1 || e.Radius >= 3 {
			t.Errorf("entity %d radius %v outside [1, 3)", i, e.Radius)
		}
		if e.Velocity.X < -0.25 || e.Velocity.X >= 0.25 || e.Velocity.Y < -0.25 || e.Velocity.Y >= 0.25 {
			t.Errorf("entity %d velocity %+v outside [-0.25, 0.25)", i, e.Velocity)
		}
		if e.Linked {
			linked++
		}
	}

	if linked < 600 || linked > 800 {
		t.Errorf("Expected roughly 70%% linked entities, got %d/1000", linked)
	}
}

func TestNewSimulation_SurfaceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		surface Surface
		w, h    float64
	}{
		{"nil surface", nil, 640, 480},
		{"zero width", &recordingSurface{}, 0, 480},
		{"zero height", &recordingSurface{}, 640, 0},
		{"negative size", &recordingSurface{}, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := Start(context.Background(), tt.surface, tt.w, tt.h, 30)
			if !errors.Is(err, ErrSurfaceUnavailable) {
				t.Fatalf("Expected ErrSurfaceUnavailable, got %v", err)
			}
			if sim != nil {
				t.Fatal("Expected nil simulation when surface is unavailable")
			}
			// Stop on the nil handle is a no-op
			sim.Stop()
		})
	}
}

func TestTick_EntitiesStayInViewport(t *testing.T) {
	const w, h = 200.0, 120.0
	sim, _ := newTestSimulation(t, w, h, 40, 7)
	vp := Viewport{Width: w, Height: h}

	for tick := 0; tick < 5000; tick++ {
		sim.Tick()
		for i, e := range sim.Entities() {
			if !vp.Contains(e.Position, constants.MaxEntitySpeed) {
				t.Fatalf("tick %d: entity %d escaped viewport: %+v", tick, i, e.Position)
			}
		}
	}
}

func TestTick_RenderOrder(t *testing.T) {
	sim, surface := newTestSimulation(t, 300, 300, 25, 3)

	sim.Tick()

	if surface.frameCount() != 1 {
		t.Fatalf("Expected 1 frame, got %d", surface.frameCount())
	}
	if surface.entities != 25 {
		t.Errorf("Expected 25 entity draws, got %d", surface.entities)
	}
	if surface.edges != len(sim.Edges()) {
		t.Errorf("Expected %d edge draws, got %d", len(sim.Edges()), surface.edges)
	}
	if sim.Ticks() != 1 {
		t.Errorf("Expected tick count 1, got %d", sim.Ticks())
	}
}

func TestComputeEdges_Symmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	entities := spawnEntities(rng, Viewport{Width: 400, Height: 300}, 40)

	type pair struct{ a, b Vec2 }
	key := func(p, q Vec2) pair {
		if p.X < q.X || (p.X == q.X && p.Y < q.Y) {
			return pair{p, q}
		}
		return pair{q, p}
	}

	forward := make(map[pair]bool)
	for _, e := range ComputeEdges(entities, constants.LinkDistance, nil) {
		if e.A >= e.B {
			t.Fatalf("edge not ordered: %+v", e)
		}
		forward[key(entities[e.A].Position, entities[e.B].Position)] = true
	}

	reversed := make([]Entity, len(entities))
	for i := range entities {
		reversed[len(entities)-1-i] = entities[i]
	}
	backward := make(map[pair]bool)
	for _, e := range ComputeEdges(reversed, constants.LinkDistance, nil) {
		backward[key(reversed[e.A].Position, reversed[e.B].Position)] = true
	}

	if len(forward) != len(backward) {
		t.Fatalf("edge count depends on order: %d vs %d", len(forward), len(backward))
	}
	for k := range forward {
		if !backward[k] {
			t.Errorf("edge %+v missing in reversed order", k)
		}
	}

	// Brute force check of the threshold
	for i := range entities {
		for j := range entities {
			if i == j {
				continue
			}
			want := entities[i].Position.Dist(entities[j].Position) < constants.LinkDistance
			if got := forward[key(entities[i].Position, entities[j].Position)]; got != want {
				t.Errorf("pair (%d,%d): edge=%v, want %v", i, j, got, want)
			}
		}
	}
}

func TestComputeEdges_Threshold(t *testing.T) {
	entities := []Entity{
		{Position: Vec2{X: 0, Y: 0}},
		{Position: Vec2{X: 99.9, Y: 0}},
		{Position: Vec2{X: 0, Y: 100}},
	}
	edges := ComputeEdges(entities, 100, nil)
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d: %+v", len(edges), edges)
	}
	if edges[0].A != 0 || edges[0].B != 1 {
		t.Errorf("Expected edge (0,1), got (%d,%d)", edges[0].A, edges[0].B)
	}
}

func TestEntityStep(t *testing.T) {
	vp := Viewport{Width: 100, Height: 50}
	tests := []struct {
		name    string
		entity  Entity
		wantPos Vec2
		wantVel Vec2
	}{
		{
			name:    "inside keeps velocity",
			entity:  Entity{Position: Vec2{X: 10, Y: 10}, Velocity: Vec2{X: 0.2, Y: -0.2}},
			wantPos: Vec2{X: 10.2, Y: 9.8},
			wantVel: Vec2{X: 0.2, Y: -0.2},
		},
		{
			name:    "crossing right edge flips x",
			entity:  Entity{Position: Vec2{X: 99.9, Y: 10}, Velocity: Vec2{X: 0.2, Y: 0.1}},
			wantPos: Vec2{X: 100.1, Y: 10.1},
			wantVel: Vec2{X: -0.2, Y: 0.1},
		},
		{
			name:    "crossing top edge flips y",
			entity:  Entity{Position: Vec2{X: 10, Y: 0.1}, Velocity: Vec2{X: 0.1, Y: -0.2}},
			wantPos: Vec2{X: 10.1, Y: -0.1},
			wantVel: Vec2{X: 0.1, Y: 0.2},
		},
		{
			name:    "outside after shrink moving inward keeps velocity",
			entity:  Entity{Position: Vec2{X: 150, Y: 10}, Velocity: Vec2{X: -0.2, Y: 0}},
			wantPos: Vec2{X: 149.8, Y: 10},
			wantVel: Vec2{X: -0.2, Y: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entity
			e.Step(vp)
			if !approx(e.Position.X, tt.wantPos.X) || !approx(e.Position.Y, tt.wantPos.Y) {
				t.Errorf("position = %+v, want %+v", e.Position, tt.wantPos)
			}
			if e.Velocity != tt.wantVel {
				t.Errorf("velocity = %+v, want %+v", e.Velocity, tt.wantVel)
			}
		})
	}
}

func TestOnResize_KeepsPositions(t *testing.T) {
	sim, _ := newTestSimulation(t, 400, 400, 10, 5)
	before := sim.Entities()

	sim.OnResize(100, 80)

	if vp := sim.Viewport(); vp.Width != 100 || vp.Height != 80 {
		t.Fatalf("viewport = %+v, want 100x80", vp)
	}
	after := sim.Entities()
	for i := range before {
		if before[i].Position != after[i].Position {
			t.Errorf("entity %d moved on resize: %+v -> %+v", i, before[i].Position, after[i].Position)
		}
	}

	// Invalid sizes are ignored
	sim.OnResize(0, 10)
	if vp := sim.Viewport(); vp.Width != 100 || vp.Height != 80 {
		t.Errorf("invalid resize applied: %+v", vp)
	}
}

func TestOnResize_ReturnsEntitiesAfterShrink(t *testing.T) {
	sim, _ := newTestSimulation(t, 800, 600, 2, 9)
	sim.entities = []Entity{
		{Position: Vec2{X: 750, Y: 500}, Velocity: Vec2{X: 0.2, Y: 0.2}},
		{Position: Vec2{X: 400, Y: 30}, Velocity: Vec2{X: -0.1, Y: 0.05}},
	}
	sim.OnResize(80, 60)

	vp := Viewport{Width: 80, Height: 60}
	for tick := 0; tick < 5000; tick++ {
		sim.Tick()
	}
	for i, e := range sim.Entities() {
		if !vp.Contains(e.Position, constants.MaxEntitySpeed) {
			t.Errorf("entity %d never returned after shrink: %+v", i, e.Position)
		}
	}
}

func TestStart_RunsAndStops(t *testing.T) {
	surface := &recordingSurface{}
	sim, err := Start(context.Background(), surface, 320, 240, 30,
		WithTickInterval(time.Millisecond),
		WithRand(rand.New(rand.NewSource(2))))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for surface.frameCount() < 5 {
		if time.Now().After(deadline) {
			t.Fatal("simulation did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	sim.Stop()
	frames := surface.frameCount()
	time.Sleep(20 * time.Millisecond)
	if surface.frameCount() != frames {
		t.Error("ticks continued after Stop")
	}
	if surface.overlap.Load() {
		t.Error("overlapping ticks detected")
	}
	if len(sim.Entities()) != 0 {
		t.Error("entities not released on Stop")
	}

	// Second Stop is a no-op
	sim.Stop()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	surface := &recordingSurface{}
	sim, err := Start(ctx, surface, 320, 240, 5, WithTickInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()
	// Stop still returns once the loop has exited on its own
	sim.Stop()
}

func TestResizeDuringTicks_NoTornViewport(t *testing.T) {
	surface := &recordingSurface{}
	sim, err := Start(context.Background(), surface, 100, 50, 20, WithTickInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				sim.OnResize(300, 150)
			} else {
				sim.OnResize(100, 50)
			}
		}
	}()
	wg.Wait()
	time.Sleep(10 * time.Millisecond)
	sim.Stop()

	surface.mu.Lock()
	defer surface.mu.Unlock()
	for _, vp := range surface.viewports {
		if vp != (Viewport{Width: 100, Height: 50}) && vp != (Viewport{Width: 300, Height: 150}) {
			t.Fatalf("tick observed torn viewport %+v", vp)
		}
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
