package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// wideTail marks the right half of a double-width rune; Flush skips it
const wideTail rune = -1

// Cell is one terminal cell
type Cell struct {
	Rune  rune
	Style tcell.Style
}

// Buffer is a cell grid composed off-screen and flushed to a tcell screen in one pass
type Buffer struct {
	cells  []Cell
	width  int
	height int
}

// NewBuffer creates a cleared buffer with the specified dimensions
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{}
	b.Resize(width, height)
	return b
}

// Resize adjusts buffer dimensions, reallocates only if capacity insufficient
func (b *Buffer) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	size := width * height
	if cap(b.cells) < size {
		b.cells = make([]Cell, size)
	} else {
		b.cells = b.cells[:size]
	}
	b.width = width
	b.height = height
	b.Clear()
}

// Clear resets all cells to blank using exponential copy
func (b *Buffer) Clear() {
	if len(b.cells) == 0 {
		return
	}
	b.cells[0] = Cell{Rune: ' ', Style: StyleDefault}
	for filled := 1; filled < len(b.cells); filled *= 2 {
		copy(b.cells[filled:], b.cells[:filled])
	}
}

// Size returns the buffer dimensions in cells
func (b *Buffer) Size() (int, int) {
	return b.width, b.height
}

func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Get returns the cell at x, y; out of bounds returns a zero cell
func (b *Buffer) Get(x, y int) Cell {
	if !b.inBounds(x, y) {
		return Cell{}
	}
	return b.cells[y*b.width+x]
}

// Set writes one cell
func (b *Buffer) Set(x, y int, r rune, style tcell.Style) {
	if !b.inBounds(x, y) {
		return
	}
	b.cells[y*b.width+x] = Cell{Rune: r, Style: style}
}

// SetRune replaces the rune and foreground while keeping the cell background
func (b *Buffer) SetRune(x, y int, r rune, fg tcell.Color) {
	if !b.inBounds(x, y) {
		return
	}
	dst := &b.cells[y*b.width+x]
	dst.Rune = r
	dst.Style = dst.Style.Foreground(fg)
}

// Fill paints a rectangle clipped to the buffer
func (b *Buffer) Fill(x, y, w, h int, r rune, style tcell.Style) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			b.Set(col, row, r, style)
		}
	}
}

// Text writes s starting at x, y and stops before maxWidth columns; maxWidth <= 0 means to the edge
// Returns the number of columns written
func (b *Buffer) Text(x, y int, s string, style tcell.Style, maxWidth int) int {
	if maxWidth <= 0 || x+maxWidth > b.width {
		maxWidth = b.width - x
	}
	col := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > maxWidth {
			break
		}
		b.Set(x+col, y, r, style)
		if w == 2 {
			b.Set(x+col+1, y, wideTail, style)
		}
		col += w
	}
	return col
}

// TextRight writes s so that it ends at column right (exclusive)
func (b *Buffer) TextRight(right, y int, s string, style tcell.Style) {
	b.Text(right-runewidth.StringWidth(s), y, s, style, 0)
}

// Truncate shortens s to width columns, marking the cut with an ellipsis
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// Box draws a single line frame with an optional title on the top edge
func (b *Buffer) Box(x, y, w, h int, title string, border, titleStyle tcell.Style) {
	if w < 2 || h < 2 {
		return
	}
	right, bottom := x+w-1, y+h-1
	for col := x + 1; col < right; col++ {
		b.Set(col, y, '─', border)
		b.Set(col, bottom, '─', border)
	}
	for row := y + 1; row < bottom; row++ {
		b.Set(x, row, '│', border)
		b.Set(right, row, '│', border)
	}
	b.Set(x, y, '┌', border)
	b.Set(right, y, '┐', border)
	b.Set(x, bottom, '└', border)
	b.Set(right, bottom, '┘', border)

	if title != "" && w > 4 {
		b.Text(x+2, y, Truncate(" "+title+" ", w-4), titleStyle, w-4)
	}
}

// Flush writes every cell to screen; the caller shows the screen
func (b *Buffer) Flush(screen tcell.Screen) {
	for y := 0; y < b.height; y++ {
		row := b.cells[y*b.width : (y+1)*b.width]
		for x, c := range row {
			if c.Rune == wideTail {
				continue
			}
			r := c.Rune
			if r == 0 {
				r = ' '
			}
			screen.SetContent(x, y, r, nil, c.Style)
		}
	}
}
