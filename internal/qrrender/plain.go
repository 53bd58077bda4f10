package qrrender

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/yeqown/go-qrcode/writer/standard"
)

// RasterizePlain renders m as black modules on white and returns PNG bytes of
// exactly sizePx square. Margin follows the same convention as the colored
// renderer.
//
// Symbols from YeqownEncoder are drawn by the yeqown standard writer at one
// pixel per module; other matrices are drawn directly. Both are then scaled
// with nearest-neighbour, which gives the same pixels as drawing at the
// ceiling module size and downsampling.
func RasterizePlain(m Matrix, sizePx, margin int) ([]byte, error) {
	if err := checkGeometry(m, sizePx, margin); err != nil {
		return nil, err
	}

	var canvas image.Image
	if sym, ok := m.(yeqownSymbol); ok {
		img, err := sym.drawPlain(margin)
		if err != nil {
			return nil, fmt.Errorf("%w: plain writer: %w", ErrRenderFailed, err)
		}
		canvas = img
	} else {
		canvas = drawPlain(m, margin)
	}
	return encodePNG(resampleExact(canvas, sizePx))
}

// drawPlain paints m at one pixel per module with margin light modules around.
func drawPlain(m Matrix, margin int) *image.Gray {
	n := m.Size()
	total := n + 2*margin
	canvas := image.NewGray(image.Rect(0, 0, total, total))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xff
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if m.IsDark(x, y) {
				canvas.SetGray(x+margin, y+margin, color.Gray{})
			}
		}
	}
	return canvas
}

func (s yeqownSymbol) drawPlain(margin int) (image.Image, error) {
	var buf bytes.Buffer
	w := standard.NewWithWriter(bufferCloser{&buf},
		standard.WithQRWidth(1),
		standard.WithBorderWidth(margin),
		standard.WithBgColor(color.White),
		standard.WithFgColor(color.Black),
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
	)
	if err := s.qrc.Save(w); err != nil {
		return nil, err
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() != s.Size()+2*margin || b.Dy() != b.Dx() {
		return nil, fmt.Errorf("writer produced %dx%d for %d modules", b.Dx(), b.Dy(), s.Size())
	}
	return img, nil
}

// bufferCloser lets the standard writer encode into memory.
type bufferCloser struct{ *bytes.Buffer }

func (bufferCloser) Close() error { return nil }
