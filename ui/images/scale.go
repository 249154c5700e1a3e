package images

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes an image to PNG bytes for a Tk photo. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed))
	return buf.Bytes()
}

// ResizeForDisplay stretches src to exactly w x h. Aspect ratio is not kept;
// clicks on the surface are rescaled per axis.
func ResizeForDisplay(src image.Image, w, h int) image.Image {
	if src == nil {
		return nil
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	return imaging.Resize(src, w, h, imaging.Linear)
}

// Placeholder returns a blank frame shown before the first image loads.
func Placeholder(w, h int) image.Image {
	return imaging.New(w, h, image.Black)
}
