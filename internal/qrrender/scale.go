package qrrender

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// resampleExact scales src to size×size with nearest-neighbour sampling so
// module edges stay sharp. src is returned as-is when it already fits.
func resampleExact(src image.Image, size int) image.Image {
	b := src.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return src
	}
	var dst draw.Image
	switch src.(type) {
	case *image.Gray:
		dst = image.NewGray(image.Rect(0, 0, size, size))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, size, size))
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// fitWithin returns the largest w×h box with the aspect ratio of srcW×srcH
// that fits inside max×max. Sides never drop below one pixel.
func fitWithin(srcW, srcH, max int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return max, max
	}
	w, h := max, max
	if srcW > srcH {
		h = srcH * max / srcW
	} else if srcH > srcW {
		w = srcW * max / srcH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
