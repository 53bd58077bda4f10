package qrrender

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// darkBitmap returns an n×n matrix with every module set.
func darkBitmap(n int) Bitmap {
	bm := make(Bitmap, n)
	for y := range bm {
		bm[y] = make([]bool, n)
		for x := range bm[y] {
			bm[y][x] = true
		}
	}
	return bm
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func pixel(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

// colorNear reports whether got is opaque and within 2 of want per channel.
func colorNear(want color.RGBA, got color.NRGBA) bool {
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -2 && d <= 2
	}
	return near(want.R, got.R) && near(want.G, got.G) && near(want.B, got.B) && got.A == 255
}

func assertColorNear(t *testing.T, want color.RGBA, got color.NRGBA, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, colorNear(want, got), append([]any{"want %v got %v", want, got}, msgAndArgs...)...)
}

// moduleCentre returns the output pixel at the centre of module (x, y) for a
// 21-module symbol with margin 2 rendered at 1024px.
func moduleCentre(x, y int) (int, int) {
	g := newGeometry(21, 1024, 2)
	px, py := g.origin(x, y)
	return px + g.modulePx/2, py + g.modulePx/2
}

func TestNewGeometry(t *testing.T) {
	g := newGeometry(21, 1024, 2)
	assert.Equal(t, 41, g.modulePx)
	assert.Equal(t, 1025, g.canvasPx)

	g = newGeometry(177, 64, 4)
	assert.Equal(t, 1, g.modulePx)
	assert.Equal(t, 185, g.canvasPx)
}

func TestRasterizersExactSize(t *testing.T) {
	for _, n := range []int{1, 21, 25, 33} {
		for _, margin := range []int{0, 2, 4} {
			for _, size := range []int{1, 7, 64, 100, 257, 1024} {
				m := darkBitmap(n)

				colored, err := RasterizeColored(m, size, margin, DefaultStyle())
				require.NoError(t, err)
				b := decodePNG(t, colored).Bounds()
				assert.Equal(t, size, b.Dx(), "colored n=%d margin=%d size=%d", n, margin, size)
				assert.Equal(t, size, b.Dy(), "colored n=%d margin=%d size=%d", n, margin, size)

				plain, err := RasterizePlain(m, size, margin)
				require.NoError(t, err)
				b = decodePNG(t, plain).Bounds()
				assert.Equal(t, size, b.Dx(), "plain n=%d margin=%d size=%d", n, margin, size)
				assert.Equal(t, size, b.Dy(), "plain n=%d margin=%d size=%d", n, margin, size)
			}
		}
	}
}

func TestRasterizeRejectsBadGeometry(t *testing.T) {
	m := darkBitmap(21)

	_, err := RasterizeColored(m, 0, 2, DefaultStyle())
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = RasterizePlain(m, -5, 2)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = RasterizeColored(m, 100, -1, DefaultStyle())
	assert.ErrorIs(t, err, ErrInvalidMargin)
	_, err = RasterizePlain(m, 100, -1)
	assert.ErrorIs(t, err, ErrInvalidMargin)

	_, err = RasterizePlain(Bitmap{}, 100, 2)
	assert.ErrorIs(t, err, ErrRenderFailed)
}

func TestRasterizeColoredPalette(t *testing.T) {
	data, err := RasterizeColored(darkBitmap(21), 1024, 2, DefaultStyle())
	require.NoError(t, err)
	img := decodePNG(t, data)

	// Quiet zone stays white.
	assertColorNear(t, color.RGBA{255, 255, 255, 255}, pixel(img, 10, 10))

	for _, mod := range [][2]int{{0, 0}, {3, 3}, {20, 0}, {16, 4}, {0, 20}, {5, 15}} {
		x, y := moduleCentre(mod[0], mod[1])
		assertColorNear(t, DefaultFinder, pixel(img, x, y), "finder module %v", mod)
	}

	x, y := moduleCentre(0, 10)
	assertColorNear(t, DefaultFrom, pixel(img, x, y), "left column")
	x, y = moduleCentre(20, 10)
	assertColorNear(t, DefaultTo, pixel(img, x, y), "right column")
	x, y = moduleCentre(10, 10)
	assertColorNear(t, DefaultGradient().ColorAt(0.5), pixel(img, x, y), "middle column")

	// Bottom-right corner is not a finder zone and takes the gradient end.
	x, y = moduleCentre(20, 20)
	assertColorNear(t, DefaultTo, pixel(img, x, y), "bottom-right")
}

func TestRasterizeColoredGradientIgnoresRow(t *testing.T) {
	data, err := RasterizeColored(darkBitmap(21), 1024, 2, DefaultStyle())
	require.NoError(t, err)
	img := decodePNG(t, data)

	x, y1 := moduleCentre(10, 8)
	_, y2 := moduleCentre(10, 18)
	assert.Equal(t, pixel(img, x, y1), pixel(img, x, y2))
}

func TestRasterizeColoredCustomStyle(t *testing.T) {
	style := Style{
		Gradient: Gradient{From: color.RGBA{0, 0, 0, 255}, To: color.RGBA{0, 0, 0, 255}},
		Finder:   color.RGBA{0, 128, 0, 255},
	}
	data, err := RasterizeColored(darkBitmap(21), 1024, 2, style)
	require.NoError(t, err)
	img := decodePNG(t, data)

	x, y := moduleCentre(3, 3)
	assertColorNear(t, style.Finder, pixel(img, x, y))
	x, y = moduleCentre(10, 10)
	assertColorNear(t, style.Gradient.From, pixel(img, x, y))
}

func TestRasterizePlainColours(t *testing.T) {
	m := Bitmap{
		{true, false},
		{false, true},
	}
	data, err := RasterizePlain(m, 400, 1)
	require.NoError(t, err)
	img := decodePNG(t, data)

	// 4 modules across, 100px each.
	black := color.RGBA{0, 0, 0, 255}
	white := color.RGBA{255, 255, 255, 255}
	assertColorNear(t, white, pixel(img, 50, 50), "margin")
	assertColorNear(t, black, pixel(img, 150, 150), "dark (0,0)")
	assertColorNear(t, white, pixel(img, 250, 150), "light (1,0)")
	assertColorNear(t, black, pixel(img, 250, 250), "dark (1,1)")
}

func TestRasterizeDeterministic(t *testing.T) {
	m := darkBitmap(25)
	a, err := RasterizeColored(m, 512, 2, DefaultStyle())
	require.NoError(t, err)
	b, err := RasterizeColored(m, 512, 2, DefaultStyle())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestNewLogoLayout(t *testing.T) {
	l := NewLogoLayout(1024)
	assert.Equal(t, 307, l.LogoMax)
	assert.Equal(t, 414, l.PlateSize)
	assert.Equal(t, 75, l.Radius)
	assert.Equal(t, 305, l.PlateLeft)
	assert.Equal(t, 305, l.PlateTop)
	assert.Equal(t, 359, l.LogoLeft)
	assert.Equal(t, image.Rect(305, 305, 719, 719), l.PlateRect())
	assert.Equal(t, image.Rect(359, 359, 666, 666), l.LogoRect())

	for _, size := range []int{64, 100, 257, 512, 999, 2048} {
		l := NewLogoLayout(size)
		plate, logo := l.PlateRect(), l.LogoRect()
		assert.Less(t, plate.Min.X, logo.Min.X, "size %d", size)
		assert.Less(t, plate.Min.Y, logo.Min.Y, "size %d", size)
		assert.Greater(t, plate.Max.X, logo.Max.X, "size %d", size)
		assert.Greater(t, plate.Max.Y, logo.Max.Y, "size %d", size)
		for _, r := range []image.Rectangle{plate, logo} {
			mid := r.Min.X + r.Dx()/2
			assert.InDelta(t, size/2, mid, 1, "size %d", size)
		}
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{200, 200, 307, 307, 307},
		{400, 200, 300, 300, 150},
		{100, 400, 200, 50, 200},
		{1000, 1, 100, 100, 1},
		{0, 10, 50, 50, 50},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w, "%dx%d in %d", tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantH, h, "%dx%d in %d", tt.w, tt.h, tt.max)
	}
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestApplyLogoPlateAndLogo(t *testing.T) {
	base, err := RasterizePlain(darkBitmap(21), 1024, 2)
	require.NoError(t, err)
	red := color.RGBA{255, 0, 0, 255}

	out := ApplyLogo(base, solidPNG(t, 200, 200, red))
	require.NotEqual(t, base, out)
	img := decodePNG(t, out)
	assert.Equal(t, image.Rect(0, 0, 1024, 1024), img.Bounds())

	black := color.RGBA{0, 0, 0, 255}
	white := color.RGBA{255, 255, 255, 255}
	assertColorNear(t, red, pixel(img, 512, 512), "logo centre")
	assertColorNear(t, red, pixel(img, 365, 512), "logo left edge")
	assertColorNear(t, white, pixel(img, 330, 512), "plate border")
	assertColorNear(t, white, pixel(img, 512, 700), "plate border below logo")
	assertColorNear(t, black, pixel(img, 290, 512), "outside plate")
	// The rounded corner leaves the plate's square corner untouched.
	assertColorNear(t, black, pixel(img, 306, 306), "rounded corner")
}

func TestApplyLogoKeepsAspectRatio(t *testing.T) {
	base, err := RasterizePlain(darkBitmap(21), 1024, 2)
	require.NoError(t, err)
	blue := color.RGBA{0, 0, 255, 255}

	// 400×100 fits as 307×76, vertically centred in the 307px box.
	img := decodePNG(t, ApplyLogo(base, solidPNG(t, 400, 100, blue)))
	assertColorNear(t, blue, pixel(img, 512, 512))
	assertColorNear(t, blue, pixel(img, 362, 512))
	assertColorNear(t, color.RGBA{255, 255, 255, 255}, pixel(img, 512, 400), "box above logo stays plate white")
}

func TestApplyLogoAcceptsJPEG(t *testing.T) {
	base, err := RasterizePlain(darkBitmap(21), 256, 2)
	require.NoError(t, err)

	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	out := ApplyLogo(base, buf.Bytes())
	assert.NotEqual(t, base, out)
}

func TestApplyLogoBestEffort(t *testing.T) {
	base, err := RasterizeColored(darkBitmap(21), 512, 2, DefaultStyle())
	require.NoError(t, err)

	assert.Equal(t, base, ApplyLogo(base, nil))
	assert.Equal(t, base, ApplyLogo(base, []byte{}))
	assert.Equal(t, base, ApplyLogo(base, []byte("not an image")))
	assert.Equal(t, base, ApplyLogo(base, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}))

	logo := solidPNG(t, 10, 10, color.Black)
	assert.Equal(t, []byte("garbage"), ApplyLogo([]byte("garbage"), logo))
}

// checkerboard is an n×n matrix with alternating modules, the worst case for
// merging runs.
type checkerboard int

func (c checkerboard) Size() int            { return int(c) }
func (c checkerboard) IsDark(x, y int) bool { return (x+y)%2 == 0 }

// cellCentre returns the output pixel at the centre of cell k when total
// cells are scaled onto size pixels.
func cellCentre(k, total, size int) int {
	return (2*k + 1) * size / (2 * total)
}

func TestRasterizeColoredLargeSymbol(t *testing.T) {
	const n, margin, size = 177, 4, 1024
	m := checkerboard(n)
	style := DefaultStyle()

	start := time.Now()
	data, err := RasterizeColored(m, size, margin, style)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, 5*time.Second)

	img := decodePNG(t, data)
	require.Equal(t, image.Rect(0, 0, size, size), img.Bounds())

	total := n + 2*margin
	white := color.RGBA{255, 255, 255, 255}
	assertColorNear(t, white, pixel(img, cellCentre(0, total, size), cellCentre(0, total, size)), "quiet zone")

	wrong := 0
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			want := white
			if m.IsDark(x, y) {
				want = style.moduleColor(x, y, n)
			}
			got := pixel(img, cellCentre(x+margin, total, size), cellCentre(y+margin, total, size))
			if !colorNear(want, got) {
				wrong++
			}
		}
	}
	assert.Zero(t, wrong, "modules with the wrong colour")
}

func BenchmarkRasterizeColored(b *testing.B) {
	m := checkerboard(177)
	for i := 0; i < b.N; i++ {
		if _, err := RasterizeColored(m, 1024, 4, DefaultStyle()); err != nil {
			b.Fatal(err)
		}
	}
}

func TestRasterizePlainYeqownWriter(t *testing.T) {
	m, err := YeqownEncoder{}.Encode("https://example.com/r/cq8b1s2v0000")
	require.NoError(t, err)
	sym, ok := m.(yeqownSymbol)
	require.True(t, ok, "yeqown encoder keeps its QRCode")

	const margin, modulePx = 2, 10
	n := m.Size()
	size := (n + 2*margin) * modulePx
	data, err := RasterizePlain(m, size, margin)
	require.NoError(t, err)
	img := decodePNG(t, data)
	require.Equal(t, image.Rect(0, 0, size, size), img.Bounds())

	wrong := 0
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			want := color.NRGBA{255, 255, 255, 255}
			if m.IsDark(x, y) {
				want = color.NRGBA{0, 0, 0, 255}
			}
			if pixel(img, (x+margin)*modulePx+modulePx/2, (y+margin)*modulePx+modulePx/2) != want {
				wrong++
			}
		}
	}
	assert.Zero(t, wrong, "modules with the wrong colour")

	// The bare bitmap takes the direct path and must match pixel for pixel.
	direct, err := RasterizePlain(sym.Bitmap, 1024, margin)
	require.NoError(t, err)
	viaWriter, err := RasterizePlain(m, 1024, margin)
	require.NoError(t, err)
	a, b := decodePNG(t, direct), decodePNG(t, viaWriter)
	diff := 0
	for y := 0; y < 1024; y++ {
		for x := 0; x < 1024; x++ {
			if pixel(a, x, y) != pixel(b, x, y) {
				diff++
			}
		}
	}
	assert.Zero(t, diff, "pixels differing between writer and direct paths")
}

func TestApplyLogoSkipsOversizedLogo(t *testing.T) {
	base, err := RasterizePlain(darkBitmap(21), 256, 2)
	require.NoError(t, err)

	// Rewrite the IHDR of a tiny PNG to claim 20000×20000 pixels.
	logo := solidPNG(t, 8, 8, color.Black)
	binary.BigEndian.PutUint32(logo[16:], 20000)
	binary.BigEndian.PutUint32(logo[20:], 20000)
	binary.BigEndian.PutUint32(logo[29:], crc32.ChecksumIEEE(logo[12:29]))
	cfg, _, err := image.DecodeConfig(bytes.NewReader(logo))
	require.NoError(t, err)
	require.Equal(t, 20000, cfg.Width)

	assert.Equal(t, base, ApplyLogo(base, logo))
	assert.NotEqual(t, base, ApplyLogo(base, solidPNG(t, 8, 8, color.Black)))
}
