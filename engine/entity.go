package engine

import "math"

// Vec2 is a point or vector in simulation pixels
type Vec2 struct {
	X, Y float64
}

// Add returns v+o
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Dist returns the Euclidean distance between v and o
func (v Vec2) Dist(o Vec2) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Entity is one node of the network map
// Radius and Linked are fixed at creation and only affect rendering
type Entity struct {
	Position Vec2
	Velocity Vec2
	Radius   float64
	Linked   bool
}

// Step advances the entity by one velocity step and reflects it off the viewport
// An axis component flips only while the entity is outside and still moving outward,
// so an entity left outside by a shrink travels back instead of oscillating
func (e *Entity) Step(vp Viewport) {
	e.Position = e.Position.Add(e.Velocity)

	if (e.Position.X < 0 && e.Velocity.X < 0) || (e.Position.X > vp.Width && e.Velocity.X > 0) {
		e.Velocity.X = -e.Velocity.X
	}
	if (e.Position.Y < 0 && e.Velocity.Y < 0) || (e.Position.Y > vp.Height && e.Velocity.Y > 0) {
		e.Velocity.Y = -e.Velocity.Y
	}
}

// Edge links two entities closer than the link distance, A < B always
type Edge struct {
	A, B     int
	Distance float64
}

// ComputeEdges appends every unordered pair closer than threshold to dst
// O(n²), fine for the few dozen nodes on the map
func ComputeEdges(entities []Entity, threshold float64, dst []Edge) []Edge {
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			d := entities[i].Position.Dist(entities[j].Position)
			if d < threshold {
				dst = append(dst, Edge{A: i, B: j, Distance: d})
			}
		}
	}
	return dst
}
