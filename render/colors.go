package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Palette, dark terminal theme
var (
	RgbBackground = tcell.NewRGBColor(10, 14, 12)
	RgbText       = tcell.NewRGBColor(200, 210, 205)
	RgbDim        = tcell.NewRGBColor(110, 120, 115)
	RgbBorder     = tcell.NewRGBColor(40, 90, 60)
	RgbTitle      = tcell.NewRGBColor(80, 250, 123)
	RgbAccent     = tcell.NewRGBColor(139, 233, 253)

	RgbNodeLinked = tcell.NewRGBColor(80, 250, 123)
	RgbNodeIdle   = tcell.NewRGBColor(120, 120, 120)

	RgbBadgeActiveBg = tcell.NewRGBColor(80, 250, 123)
	RgbBadgeIdleBg   = tcell.NewRGBColor(90, 90, 90)
	RgbBadgeText     = tcell.NewRGBColor(0, 0, 0)

	RgbToastInfo  = tcell.NewRGBColor(30, 60, 45)
	RgbToastError = tcell.NewRGBColor(110, 25, 25)

	RgbTerminalBg = tcell.NewRGBColor(5, 8, 6)
	RgbPrompt     = tcell.NewRGBColor(80, 250, 123)
)

// Gradient endpoints
var (
	progressStart = colorful.Color{R: 0.16, G: 0.63, B: 0.31}
	progressEnd   = colorful.Color{R: 0.98, G: 0.75, B: 0.18}
	edgeNear      = colorful.Color{R: 0.16, G: 0.63, B: 0.31}
	edgeFar       = colorful.Color{R: 0.08, G: 0.27, B: 0.16}
)

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// GetProgressColor returns the progress bar color at fraction in [0, 1]
// The bar shifts from green to amber as the next rotation approaches
func GetProgressColor(fraction float64) tcell.Color {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return toTcell(progressStart.BlendLab(progressEnd, fraction))
}

// GetEdgeColor fades an edge toward the background as distance approaches the link threshold
func GetEdgeColor(distance, threshold float64) tcell.Color {
	if threshold <= 0 || distance <= 0 {
		return toTcell(edgeNear)
	}
	t := distance / threshold
	if t > 1 {
		t = 1
	}
	return toTcell(edgeNear.BlendRgb(edgeFar, t))
}

// Base styles
var (
	StyleDefault = tcell.StyleDefault.Background(RgbBackground).Foreground(RgbText)
	StyleDim     = StyleDefault.Foreground(RgbDim)
	StyleBorder  = StyleDefault.Foreground(RgbBorder)
	StyleTitle   = StyleDefault.Foreground(RgbTitle).Bold(true)
	StyleAccent  = StyleDefault.Foreground(RgbAccent)
)
