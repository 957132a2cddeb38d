package engine

import "errors"

// ErrSurfaceUnavailable is returned by Start when the surface is missing or not sized yet
// It is not fatal: nothing was started and the caller may retry after the next resize
var ErrSurfaceUnavailable = errors.New("rendering surface unavailable")

// Viewport is the simulation bound pair, always replaced as a whole
type Viewport struct {
	Width  float64
	Height float64
}

// Valid reports whether both dimensions are positive
func (vp Viewport) Valid() bool {
	return vp.Width > 0 && vp.Height > 0
}

// Contains reports whether p lies inside the viewport widened by tolerance on every side
func (vp Viewport) Contains(p Vec2, tolerance float64) bool {
	return p.X >= -tolerance && p.X <= vp.Width+tolerance &&
		p.Y >= -tolerance && p.Y <= vp.Height+tolerance
}

// Surface receives one frame per tick
// BeginFrame and EndFrame bracket the draw calls of a single tick; all calls come from the tick goroutine
type Surface interface {
	BeginFrame(vp Viewport)
	DrawEdge(a, b Vec2, distance float64)
	DrawEntity(e Entity)
	EndFrame()
}
