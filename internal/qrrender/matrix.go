package qrrender

import (
	"fmt"

	skip2 "github.com/skip2/go-qrcode"
	"github.com/yeqown/go-qrcode/v2"
)

// Matrix is a square grid of QR modules. Size excludes any quiet zone.
type Matrix interface {
	Size() int
	IsDark(x, y int) bool
}

// Bitmap is a Matrix backed by rows of booleans, indexed [y][x].
type Bitmap [][]bool

// Size returns the side of the bitmap.
func (b Bitmap) Size() int { return len(b) }

// IsDark reports whether the module at column x, row y is set. Coordinates
// outside the grid are light.
func (b Bitmap) IsDark(x, y int) bool {
	if y < 0 || y >= len(b) || x < 0 || x >= len(b[y]) {
		return false
	}
	return b[y][x]
}

// Encoder turns text into a module matrix at the highest error-correction
// level, so a centred logo stays within the recoverable area.
type Encoder interface {
	Encode(text string) (Matrix, error)
}

// Encoder names accepted by NewEncoder.
const (
	EncoderYeqown = "yeqown"
	EncoderSkip2  = "skip2"
)

// NewEncoder returns the encoder registered under name.
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "", EncoderYeqown:
		return YeqownEncoder{}, nil
	case EncoderSkip2:
		return Skip2Encoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
}

// YeqownEncoder encodes with github.com/yeqown/go-qrcode.
type YeqownEncoder struct{}

// Encode implements Encoder.
func (YeqownEncoder) Encode(text string) (Matrix, error) {
	qrc, err := qrcode.NewWith(text, qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionHighest))
	if err != nil {
		return nil, err
	}
	w := &bitmapWriter{}
	if err := qrc.Save(w); err != nil {
		return nil, err
	}
	return yeqownSymbol{Bitmap: w.bitmap, qrc: qrc}, nil
}

// yeqownSymbol keeps the encoded QRCode next to its bitmap so the plain
// rasterizer can hand it to the yeqown image writer.
type yeqownSymbol struct {
	Bitmap
	qrc *qrcode.QRCode
}

// bitmapWriter captures the encoder's matrix instead of drawing it.
type bitmapWriter struct {
	bitmap Bitmap
}

func (w *bitmapWriter) Write(mat qrcode.Matrix) error {
	rows, cols := mat.Height(), mat.Width()
	if rows != cols || rows == 0 {
		return fmt.Errorf("unexpected matrix shape %dx%d", cols, rows)
	}
	bm := make(Bitmap, rows)
	for i := range bm {
		bm[i] = make([]bool, cols)
	}
	mat.Iterate(qrcode.IterDirection_ROW, func(x, y int, v qrcode.QRValue) {
		bm[y][x] = v.IsSet()
	})
	w.bitmap = bm
	return nil
}

func (w *bitmapWriter) Close() error { return nil }

// Skip2Encoder encodes with github.com/skip2/go-qrcode.
type Skip2Encoder struct{}

// Encode implements Encoder.
func (Skip2Encoder) Encode(text string) (Matrix, error) {
	qr, err := skip2.New(text, skip2.Highest)
	if err != nil {
		return nil, err
	}
	qr.DisableBorder = true
	return Bitmap(qr.Bitmap()), nil
}
