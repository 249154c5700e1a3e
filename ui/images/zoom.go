package images

import (
	"image"

	"github.com/disintegration/imaging"
)

// ZoomRect returns the size x size window centred on c, shifted (not shrunk)
// to stay inside bounds where possible. Its size is at least 1x1.
func ZoomRect(bounds image.Rectangle, c image.Point, size int) image.Rectangle {
	if size < 1 {
		size = 1
	}
	w, h := min(size, bounds.Dx()), min(size, bounds.Dy())
	x0 := min(max(c.X-size/2, bounds.Min.X), bounds.Max.X-w)
	y0 := min(max(c.Y-size/2, bounds.Min.Y), bounds.Max.Y-h)
	return image.Rect(x0, y0, x0+max(w, 1), y0+max(h, 1))
}

// ZoomAround crops the window around c in source pixels and magnifies it to
// out x out with nearest-neighbour sampling, so mask edges stay crisp.
func ZoomAround(src image.Image, c image.Point, size, out int) image.Image {
	if src == nil {
		return nil
	}
	r := ZoomRect(src.Bounds(), c, size)
	return imaging.Resize(imaging.Crop(src, r), out, out, imaging.NearestNeighbor)
}
