package render

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/events"
	"github.com/thaleshodan/proxange/identity"
)

// State is everything the dashboard shows for one frame
type State struct {
	Now time.Time

	Active          bool
	IntervalSeconds int
	Remaining       int
	// Fraction is the elapsed share of the interval in [0, 100]
	Fraction     float64
	LastRotation time.Time
	// Rotations counts successful rotations only
	Rotations    uint64
	Failures     uint64

	Identity       identity.Identity
	ProxiesActive  int
	ProxiesTotal   int
	AnonymityScore int
	Uptime         time.Duration
	Muted          bool

	Log    []string
	Toasts []Toast

	TerminalOpen bool
	// TerminalLine is the line being edited, in the terminal or the add-proxy prompt
	TerminalLine string
	PromptOpen   bool
}

// Rect is a cell region
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the region has no cells
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Inner returns the region inside a one-cell border
func (r Rect) Inner() Rect {
	return Rect{X: r.X + 1, Y: r.Y + 1, W: r.W - 2, H: r.H - 2}
}

// Layout is the placement of every card for a screen size
type Layout struct {
	Header   Rect
	Identity Rect
	Rotation Rect
	Stats    Rect
	Map      Rect
	Log      Rect
	Footer   Rect
}

const (
	leftColumnWidth = 44
	identityHeight  = 7
	rotationHeight  = 6
	statsHeight     = 5
	logHeight       = constants.LogPanelLines + 2
	minMapHeight    = 4
	minSplitWidth   = 72
)

// ComputeLayout places the cards on a w×h screen
// Below minSplitWidth the cards stack in one column and the map is hidden
func ComputeLayout(w, h int) Layout {
	l := Layout{
		Header: Rect{X: 0, Y: 0, W: w, H: 1},
		Footer: Rect{X: 0, Y: h - 1, W: w, H: 1},
	}
	bodyTop := 1
	bodyH := h - 2
	if bodyH <= 0 {
		return l
	}

	leftW := w
	if w >= minSplitWidth {
		leftW = min(leftColumnWidth, w/2)
	}

	y := bodyTop
	l.Identity = Rect{X: 0, Y: y, W: leftW, H: identityHeight}
	y += identityHeight
	l.Rotation = Rect{X: 0, Y: y, W: leftW, H: rotationHeight}
	y += rotationHeight
	l.Stats = Rect{X: 0, Y: y, W: leftW, H: statsHeight}

	if leftW == w {
		y += statsHeight
		l.Log = Rect{X: 0, Y: y, W: w, H: min(logHeight, bodyTop+bodyH-y)}
		return l
	}

	rightX := leftW
	rightW := w - leftW
	mapH := bodyH - logHeight
	if mapH < minMapHeight {
		l.Log = Rect{X: rightX, Y: bodyTop, W: rightW, H: bodyH}
		return l
	}
	l.Map = Rect{X: rightX, Y: bodyTop, W: rightW, H: mapH}
	l.Log = Rect{X: rightX, Y: bodyTop + mapH, W: rightW, H: logHeight}
	return l
}

// MapViewport is the simulation viewport for the map card on a w×h screen
func MapViewport(w, h int) (Rect, bool) {
	m := ComputeLayout(w, h).Map
	if m.Empty() {
		return Rect{}, false
	}
	inner := m.Inner()
	return inner, !inner.Empty()
}

// View draws the dashboard into a Buffer and flushes it to the screen
type View struct {
	buf    *Buffer
	canvas *Canvas
}

// NewView creates a view; canvas may be nil when the map is disabled
func NewView(canvas *Canvas) *View {
	return &View{buf: NewBuffer(0, 0), canvas: canvas}
}

// Buffer exposes the composed frame
func (v *View) Buffer() *Buffer {
	return v.buf
}

// Compose draws st into the internal buffer sized w×h
func (v *View) Compose(w, h int, st State) {
	if bw, bh := v.buf.Size(); bw != w || bh != h {
		v.buf.Resize(w, h)
	} else {
		v.buf.Clear()
	}
	if w <= 0 || h <= 0 {
		return
	}

	l := ComputeLayout(w, h)
	v.drawHeader(l.Header, st)
	v.drawIdentity(l.Identity, st)
	v.drawRotation(l.Rotation, st)
	v.drawStats(l.Stats, st)
	v.drawMap(l.Map)
	v.drawLog(l.Log, st.Log)
	v.drawFooter(l.Footer, st)
	v.drawToasts(w, st.Toasts)
	if st.TerminalOpen {
		v.drawTerminal(w, h, st)
	}
	if st.PromptOpen {
		v.drawPrompt(w, h, st)
	}
}

// Draw composes st at the screen size and shows it
func (v *View) Draw(screen tcell.Screen, st State) {
	w, h := screen.Size()
	v.Compose(w, h, st)
	v.buf.Flush(screen)
	screen.Show()
}

func (v *View) drawHeader(r Rect, st State) {
	if r.Empty() {
		return
	}
	v.buf.Fill(r.X, r.Y, r.W, 1, ' ', StyleDefault)
	v.buf.Text(r.X+1, r.Y, constants.AppName+" "+constants.AppVersion, StyleTitle, r.W-1)

	badge, bg := constants.BadgeIdle, RgbBadgeIdleBg
	if st.Active {
		badge, bg = constants.BadgeActive, RgbBadgeActiveBg
	}
	right := r.X + r.W - 1
	v.buf.TextRight(right, r.Y, badge, StyleDefault.Background(bg).Foreground(RgbBadgeText).Bold(true))
	if st.Muted {
		right -= runewidth.StringWidth(badge) + 1
		v.buf.TextRight(right, r.Y, "muted", StyleDim)
	}
}

func (v *View) card(r Rect, title string) (Rect, bool) {
	if r.Empty() || r.W < 4 || r.H < 3 {
		return Rect{}, false
	}
	v.buf.Box(r.X, r.Y, r.W, r.H, title, StyleBorder, StyleTitle)
	return r.Inner(), true
}

// row writes "label value" on line i of inner, clipped to the card
func (v *View) row(inner Rect, i int, label, value string, valueStyle tcell.Style) {
	if i >= inner.H {
		return
	}
	y := inner.Y + i
	n := v.buf.Text(inner.X+1, y, label, StyleDim, inner.W-1)
	v.buf.Text(inner.X+1+n, y, Truncate(value, inner.W-2-n), valueStyle, inner.W-1-n)
}

func (v *View) drawIdentity(r Rect, st State) {
	inner, ok := v.card(r, "IDENTITY")
	if !ok {
		return
	}
	id := st.Identity
	loc := id.Location.City
	if id.Location.Country != "" {
		loc = fmt.Sprintf("%s, %s", id.Location.City, id.Location.Country)
	}
	v.row(inner, 0, "IP:        ", id.Address, StyleAccent.Bold(true))
	v.row(inner, 1, "Location:  ", loc, StyleDefault)
	v.row(inner, 2, "Proxy:     ", id.Proxy, StyleDefault)
	v.row(inner, 3, "Latency:   ", fmt.Sprintf("%d ms", id.Latency.Milliseconds()), StyleDefault)
	v.row(inner, 4, "Anonymity: ", fmt.Sprintf("%d%%", st.AnonymityScore), StyleDefault)
}

func (v *View) drawRotation(r Rect, st State) {
	inner, ok := v.card(r, "ROTATION")
	if !ok {
		return
	}
	status, style := "Disabled", StyleDim
	if st.Active {
		status, style = "Enabled", StyleTitle
	}
	v.row(inner, 0, "Auto:      ", status, style)
	v.row(inner, 1, "Interval:  ", fmt.Sprintf("%ds", st.IntervalSeconds), StyleDefault)
	if inner.H > 2 {
		v.progressBar(inner.X+1, inner.Y+2, inner.W-2, st.Fraction/constants.ProgressFull)
	}
	next := "paused"
	if st.Active {
		next = fmt.Sprintf("in %ds", st.Remaining)
	}
	v.row(inner, 3, "Next:      ", next, StyleDefault)
}

// progressBar draws a width-cell bar filled to fraction with a gradient head color
func (v *View) progressBar(x, y, width int, fraction float64) {
	if width <= 0 {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))
	filled := int(math.Round(fraction * float64(width)))
	fill := StyleDefault.Foreground(GetProgressColor(fraction))
	for i := 0; i < width; i++ {
		if i < filled {
			v.buf.Set(x+i, y, constants.GlyphProgress, fill)
		} else {
			v.buf.Set(x+i, y, constants.GlyphProgressBg, StyleDim)
		}
	}
}

func (v *View) drawStats(r Rect, st State) {
	inner, ok := v.card(r, "STATS")
	if !ok {
		return
	}
	last := "never"
	if !st.LastRotation.IsZero() {
		last = humanize.RelTime(st.LastRotation, st.Now, "ago", "from now")
	}
	v.row(inner, 0, "Proxies:   ", fmt.Sprintf("%d/%d active", st.ProxiesActive, st.ProxiesTotal), StyleDefault)
	v.row(inner, 1, "Rotations: ", fmt.Sprintf("%s (last %s)", humanize.Comma(int64(st.Rotations)), last), StyleDefault)
	v.row(inner, 2, "Uptime:    ", FormatUptime(st.Uptime), StyleDefault)
}

// FormatUptime renders d as HH:MM:SS
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

func (v *View) drawMap(r Rect) {
	inner, ok := v.card(r, "NETWORK MAP")
	if !ok || v.canvas == nil {
		return
	}
	v.canvas.Blit(v.buf, inner.X, inner.Y, inner.W, inner.H)
}

func (v *View) drawLog(r Rect, lines []string) {
	inner, ok := v.card(r, "CONNECTION LOG")
	if !ok {
		return
	}
	if len(lines) > inner.H {
		lines = lines[len(lines)-inner.H:]
	}
	for i, line := range lines {
		v.buf.Text(inner.X+1, inner.Y+i, Truncate(constants.LogPrefix+line, inner.W-2), StyleDefault, inner.W-2)
	}
}

func (v *View) drawFooter(r Rect, st State) {
	if r.Empty() || r.Y <= 0 {
		return
	}
	mode := constants.ModeNormal
	switch {
	case st.PromptOpen:
		mode = constants.ModePrompt
	case st.TerminalOpen:
		mode = constants.ModeCommand
	}
	n := v.buf.Text(r.X, r.Y, mode, StyleDefault.Background(RgbBorder).Foreground(RgbText), r.W)
	v.buf.Text(r.X+n+1, r.Y, Truncate(constants.KeyHints, r.W-n-1), StyleDim, r.W-n-1)
}

func (v *View) drawToasts(w int, toasts []Toast) {
	const width = 36
	if w < width+2 {
		return
	}
	x := w - width - 1
	y := 1
	for i := len(toasts) - 1; i >= 0; i-- {
		t := toasts[i]
		bg := RgbToastInfo
		if t.Severity == events.SeverityError {
			bg = RgbToastError
		}
		style := StyleDefault.Background(bg)
		v.buf.Fill(x, y, width, 2, ' ', style)
		v.buf.Text(x+1, y, Truncate(t.Title, width-2), style.Bold(true), width-2)
		v.buf.Text(x+1, y+1, Truncate(t.Message, width-2), style, width-2)
		y += 3
	}
}

func (v *View) drawTerminal(w, h int, st State) {
	tw := min(w-4, 72)
	th := min(h-4, 14)
	if tw < 10 || th < 4 {
		return
	}
	x := (w - tw) / 2
	y := h - th - 2
	style := StyleDefault.Background(RgbTerminalBg)
	v.buf.Fill(x, y, tw, th, ' ', style)
	v.buf.Box(x, y, tw, th, "TERMINAL", style.Foreground(RgbBorder), style.Foreground(RgbTitle).Bold(true))

	inner := Rect{X: x + 1, Y: y + 1, W: tw - 2, H: th - 2}
	logRows := inner.H - 1
	lines := st.Log
	if len(lines) > logRows {
		lines = lines[len(lines)-logRows:]
	}
	for i, line := range lines {
		v.buf.Text(inner.X+1, inner.Y+i, Truncate(line, inner.W-2), style, inner.W-2)
	}

	v.inputLine(inner.X+1, inner.Y+inner.H-1, inner.W-2, st.TerminalLine, style)
}

func (v *View) drawPrompt(w, h int, st State) {
	pw := min(w-4, 64)
	const ph = 4
	if pw < 16 || h < ph+2 {
		return
	}
	x := (w - pw) / 2
	y := (h - ph) / 2
	style := StyleDefault.Background(RgbTerminalBg)
	v.buf.Fill(x, y, pw, ph, ' ', style)
	v.buf.Box(x, y, pw, ph, "ADD PROXY", style.Foreground(RgbBorder), style.Foreground(RgbTitle).Bold(true))

	v.buf.Text(x+2, y+1, Truncate(constants.AddProxyHint, pw-4), style.Foreground(RgbDim), pw-4)
	v.inputLine(x+2, y+2, pw-4, st.TerminalLine, style)
}

// inputLine draws the prompt glyph, the tail of input that fits and a cursor
func (v *View) inputLine(x, y, width int, input string, style tcell.Style) {
	n := v.buf.Text(x, y, constants.TerminalPrompt, style.Foreground(RgbPrompt), width)
	avail := width - 1 - n
	if avail <= 0 {
		return
	}
	// keep the end of a long line visible
	for runewidth.StringWidth(input) > avail {
		_, size := utf8.DecodeRuneInString(input)
		input = input[size:]
	}
	m := v.buf.Text(x+n, y, input, style, avail)
	v.buf.Set(x+n+m, y, '_', style.Foreground(RgbPrompt).Blink(true))
}
