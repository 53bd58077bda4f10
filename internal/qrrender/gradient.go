package qrrender

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Default brand colours used by the colored renderer.
var (
	DefaultFrom   = color.RGBA{0x04, 0x99, 0xE9, 0xFF} // #0499E9
	DefaultTo     = color.RGBA{0xF4, 0x28, 0x28, 0xFF} // #F42828
	DefaultFinder = DefaultFrom
)

// Gradient is a two-colour linear ramp. ColorAt(0) is From, ColorAt(1) is To.
type Gradient struct {
	From color.RGBA
	To   color.RGBA
}

// DefaultGradient returns the blue to red sweep.
func DefaultGradient() Gradient {
	return Gradient{From: DefaultFrom, To: DefaultTo}
}

// ColorAt interpolates each channel independently. t is clamped to [0,1].
func (g Gradient) ColorAt(t float64) color.RGBA {
	t = clamp01(t)
	return color.RGBA{
		R: lerpChannel(g.From.R, g.To.R, t),
		G: lerpChannel(g.From.G, g.To.G, t),
		B: lerpChannel(g.From.B, g.To.B, t),
		A: 255,
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	v := math.Round(float64(a) + (float64(b)-float64(a))*t)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// ParseHexColor parses "#RRGGBB", "RRGGBB" or the short "#RGB" form into an
// opaque colour.
func ParseHexColor(s string) (color.RGBA, error) {
	v := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(v) == 3 {
		v = string([]byte{v[0], v[0], v[1], v[1], v[2], v[2]})
	}
	if len(v) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, nil
}

// hexColor formats c as "#RRGGBB" for SVG fill attributes.
func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
