package qrrender

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
)

// Logo geometry, relative to the QR side.
const (
	logoFraction  = 0.30
	plateScale    = 1.35
	plateRounding = 0.18
)

// maxLogoPixels bounds the decoded logo area.
const maxLogoPixels = 4096 * 4096

// LogoLayout is the pixel placement of the plate and the logo box.
type LogoLayout struct {
	QRSize    int
	LogoMax   int
	PlateSize int
	Radius    int
	PlateLeft int
	PlateTop  int
	LogoLeft  int
	LogoTop   int
}

// PlateRect returns the plate footprint.
func (l LogoLayout) PlateRect() image.Rectangle {
	return image.Rect(l.PlateLeft, l.PlateTop, l.PlateLeft+l.PlateSize, l.PlateTop+l.PlateSize)
}

// LogoRect returns the logo bounding box.
func (l LogoLayout) LogoRect() image.Rectangle {
	return image.Rect(l.LogoLeft, l.LogoTop, l.LogoLeft+l.LogoMax, l.LogoTop+l.LogoMax)
}

// NewLogoLayout computes plate and logo placement for a qrSize square raster.
func NewLogoLayout(qrSize int) LogoLayout {
	logoMax := int(math.Round(float64(qrSize) * logoFraction))
	plate := int(math.Round(float64(logoMax) * plateScale))
	center := qrSize / 2
	return LogoLayout{
		QRSize:    qrSize,
		LogoMax:   logoMax,
		PlateSize: plate,
		Radius:    int(math.Round(float64(plate) * plateRounding)),
		PlateLeft: center - plate/2,
		PlateTop:  center - plate/2,
		LogoLeft:  center - logoMax/2,
		LogoTop:   center - logoMax/2,
	}
}

// ApplyLogo draws a rounded white plate and the logo centred on base. The
// overlay is best effort: base is returned unchanged when logo is empty or
// either image cannot be decoded.
func ApplyLogo(base, logo []byte) []byte {
	if len(logo) == 0 {
		return base
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(logo))
	if err != nil {
		logging.Debug("Logo skipped", "reason", "decode", "error", err)
		return base
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxLogoPixels {
		logging.Debug("Logo skipped", "reason", "dimensions", "width", cfg.Width, "height", cfg.Height)
		return base
	}
	logoImg, format, err := image.Decode(bytes.NewReader(logo))
	if err != nil {
		logging.Debug("Logo skipped", "reason", "decode", "error", err)
		return base
	}
	qrImg, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		logging.Warn("Logo skipped", "reason", "base decode", "error", err)
		return base
	}

	b := qrImg.Bounds()
	size := b.Dx()
	if b.Dy() < size {
		size = b.Dy()
	}
	layout := NewLogoLayout(size)
	if layout.LogoMax < 1 {
		return base
	}

	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), qrImg, b.Min, draw.Src)

	drawPlate(canvas, layout)
	drawLogo(canvas, logoImg, layout)

	out, err := encodePNG(canvas)
	if err != nil {
		logging.Warn("Logo skipped", "reason", "encode", "error", err)
		return base
	}
	logging.Debug("Logo applied", "format", format, "plate", layout.PlateSize, "logo", layout.LogoMax)
	return out
}

// drawPlate fills the rounded backing square in opaque white.
func drawPlate(canvas *image.RGBA, l LogoLayout) {
	dc := gg.NewContextForRGBA(canvas)
	dc.SetColor(color.White)
	dc.DrawRoundedRectangle(float64(l.PlateLeft), float64(l.PlateTop),
		float64(l.PlateSize), float64(l.PlateSize), float64(l.Radius))
	dc.Fill()
}

// drawLogo scales logo to fit the logo box without cropping and composites it
// over the plate. Unused space in the box stays transparent.
func drawLogo(canvas *image.RGBA, logo image.Image, l LogoLayout) {
	lb := logo.Bounds()
	w, h := fitWithin(lb.Dx(), lb.Dy(), l.LogoMax)
	x := l.LogoLeft + (l.LogoMax-w)/2
	y := l.LogoTop + (l.LogoMax-h)/2
	xdraw.CatmullRom.Scale(canvas, image.Rect(x, y, x+w, y+h), logo, lb, xdraw.Over, nil)
}
