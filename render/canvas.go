package render

import (
	"sync"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/engine"
)

// PixelViewport converts a cell region to simulation pixels
func PixelViewport(cols, rows int) engine.Viewport {
	return engine.Viewport{
		Width:  float64(cols * constants.CellWidthPx),
		Height: float64(rows * constants.CellHeightPx),
	}
}

// cellOf maps a pixel position to its cell
func cellOf(p engine.Vec2) (int, int) {
	return int(p.X) / constants.CellWidthPx, int(p.Y) / constants.CellHeightPx
}

// Canvas is the network map surface
// The tick goroutine draws into back; EndFrame swaps it with front under mu,
// so Blit always copies the last complete frame
type Canvas struct {
	linkDistance float64

	back *Buffer

	mu     sync.Mutex
	front  *Buffer
	frames uint64
}

// NewCanvas creates an empty canvas; edges fade out toward linkDistance
func NewCanvas(linkDistance float64) *Canvas {
	if linkDistance <= 0 {
		linkDistance = constants.LinkDistance
	}
	return &Canvas{
		linkDistance: linkDistance,
		back:         NewBuffer(0, 0),
		front:        NewBuffer(0, 0),
	}
}

// BeginFrame implements engine.Surface
func (c *Canvas) BeginFrame(vp engine.Viewport) {
	cols := int(vp.Width) / constants.CellWidthPx
	rows := int(vp.Height) / constants.CellHeightPx
	if w, h := c.back.Size(); w != cols || h != rows {
		c.back.Resize(cols, rows)
		return
	}
	c.back.Clear()
}

// DrawEdge implements engine.Surface with a Bresenham line in cell space
func (c *Canvas) DrawEdge(a, b engine.Vec2, distance float64) {
	x0, y0 := cellOf(a)
	x1, y1 := cellOf(b)
	fg := GetEdgeColor(distance, c.linkDistance)

	dx := x1 - x0
	dy := y1 - y0
	absDx, absDy := dx, dy
	if absDx < 0 {
		absDx = -absDx
	}
	if absDy < 0 {
		absDy = -absDy
	}
	stepX, stepY := 1, 1
	if dx < 0 {
		stepX = -1
	}
	if dy < 0 {
		stepY = -1
	}

	err := absDx - absDy
	x, y := x0, y0
	for {
		if c.back.Get(x, y).Rune == ' ' {
			c.back.SetRune(x, y, constants.GlyphEdge, fg)
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -absDy {
			err -= absDy
			x += stepX
		}
		if e2 < absDx {
			err += absDx
			y += stepY
		}
	}
}

// DrawEntity implements engine.Surface
func (c *Canvas) DrawEntity(e engine.Entity) {
	x, y := cellOf(e.Position)
	switch {
	case !e.Linked:
		c.back.SetRune(x, y, constants.GlyphIdle, RgbNodeIdle)
	case e.Radius >= constants.MinEntityRadius+constants.EntityRadiusSpan/2:
		c.back.SetRune(x, y, constants.GlyphLinkedLarge, RgbNodeLinked)
	default:
		c.back.SetRune(x, y, constants.GlyphLinkedSmall, RgbNodeLinked)
	}
}

// EndFrame implements engine.Surface
func (c *Canvas) EndFrame() {
	c.mu.Lock()
	c.back, c.front = c.front, c.back
	c.frames++
	c.mu.Unlock()
}

// Frames returns the number of completed frames
func (c *Canvas) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Blit copies the last frame into dst at x, y, clipped to w×h
// Only drawn cells are copied so dst keeps its background
func (c *Canvas) Blit(dst *Buffer, x, y, w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fw, fh := c.front.Size()
	for row := 0; row < fh && row < h; row++ {
		for col := 0; col < fw && col < w; col++ {
			cell := c.front.Get(col, row)
			if cell.Rune == ' ' || cell.Rune == 0 {
				continue
			}
			fg, _, _ := cell.Style.Decompose()
			dst.SetRune(x+col, y+row, cell.Rune, fg)
		}
	}
}

// Snapshot returns the runes of the last frame row by row, for tests and debugging
func (c *Canvas) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, h := c.front.Size()
	rows := make([]string, h)
	line := make([]rune, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			line[x] = c.front.Get(x, y).Rune
		}
		rows[y] = string(line)
	}
	return rows
}

var _ engine.Surface = (*Canvas)(nil)
