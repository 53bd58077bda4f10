package qrrender

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Style holds the colours of the colored renderer.
type Style struct {
	Gradient Gradient
	Finder   color.RGBA
}

// DefaultStyle returns the brand gradient with finder patterns in the start
// colour.
func DefaultStyle() Style {
	return Style{Gradient: DefaultGradient(), Finder: DefaultFinder}
}

// moduleColor picks the fill of a dark module. The gradient follows the
// column only; rows do not influence it.
func (s Style) moduleColor(x, y, n int) color.RGBA {
	if IsFinderModule(x, y, n) {
		return s.Finder
	}
	if n <= 1 {
		return s.Gradient.ColorAt(0)
	}
	return s.Gradient.ColorAt(float64(x) / float64(n-1))
}

// geometry is the pixel layout of a symbol on its working canvas.
type geometry struct {
	n        int // modules per side, without margin
	margin   int // quiet-zone modules on each side
	modulePx int
	canvasPx int
}

func newGeometry(n, sizePx, margin int) geometry {
	total := n + 2*margin
	modulePx := (sizePx + total - 1) / total
	if modulePx < 1 {
		modulePx = 1
	}
	return geometry{n: n, margin: margin, modulePx: modulePx, canvasPx: total * modulePx}
}

// origin returns the top-left pixel of module (x, y).
func (g geometry) origin(x, y int) (int, int) {
	return (x + g.margin) * g.modulePx, (y + g.margin) * g.modulePx
}

// coloredSVG writes the symbol as an SVG document of canvasPx square. Dark
// modules are merged into vertical runs and every fill colour becomes a single
// path, so the rasterizer makes one pass per colour rather than per module.
func coloredSVG(m Matrix, g geometry, style Style) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		g.canvasPx, g.canvasPx, g.canvasPx, g.canvasPx)
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="#FFFFFF"/>`, g.canvasPx, g.canvasPx)

	for _, f := range collectFills(m, g, style) {
		fmt.Fprintf(&sb, `<path fill="%s" d="%s"/>`, hexColor(f.color), f.d.String())
	}
	sb.WriteString(`</svg>`)
	return []byte(sb.String())
}

type fill struct {
	color color.RGBA
	d     strings.Builder
}

// collectFills groups runs of same-coloured dark modules by colour, in order
// of first appearance.
func collectFills(m Matrix, g geometry, style Style) []*fill {
	var fills []*fill
	byColor := make(map[color.RGBA]*fill)
	add := func(c color.RGBA, x, y0, y1 int) {
		f, ok := byColor[c]
		if !ok {
			f = &fill{color: c}
			byColor[c] = f
			fills = append(fills, f)
		}
		px, py := g.origin(x, y0)
		h := (y1 - y0) * g.modulePx
		fmt.Fprintf(&f.d, "M%d %dh%dv%dh-%dz", px, py, g.modulePx, h, g.modulePx)
	}

	for x := 0; x < g.n; x++ {
		runStart := -1
		var runColor color.RGBA
		for y := 0; y <= g.n; y++ {
			dark := y < g.n && m.IsDark(x, y)
			var c color.RGBA
			if dark {
				c = style.moduleColor(x, y, g.n)
			}
			if runStart >= 0 && (!dark || c != runColor) {
				add(runColor, x, runStart, y)
				runStart = -1
			}
			if dark && runStart < 0 {
				runStart, runColor = y, c
			}
		}
	}
	return fills
}

// rasterizeSVG draws an SVG document onto a size×size RGBA canvas.
func rasterizeSVG(doc []byte, size int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1)
	return canvas, nil
}

// RasterizeColored renders m with gradient-coloured modules and returns PNG
// bytes of exactly sizePx square.
//
// The symbol is rasterized at one pixel per module and then scaled by
// nearest-neighbour. Every output pixel lands on the same module as it would
// on a full canvas of ceil(sizePx/total) pixels per module.
func RasterizeColored(m Matrix, sizePx, margin int, style Style) ([]byte, error) {
	if err := checkGeometry(m, sizePx, margin); err != nil {
		return nil, err
	}
	n := m.Size()
	unit := newGeometry(n, n+2*margin, margin)
	canvas, err := rasterizeSVG(coloredSVG(m, unit, style), unit.canvasPx)
	if err != nil {
		return nil, err
	}
	return encodePNG(resampleExact(canvas, sizePx))
}

func checkGeometry(m Matrix, sizePx, margin int) error {
	if sizePx <= 0 {
		return ErrInvalidSize
	}
	if margin < 0 {
		return ErrInvalidMargin
	}
	if m == nil || m.Size() < 1 {
		return fmt.Errorf("%w: empty matrix", ErrRenderFailed)
	}
	return nil
}
