package mask

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// ErrShapeMismatch is returned when two masks (or a mask and an image) disagree on dimensions.
var ErrShapeMismatch = errors.New("mask shape mismatch")

// Mask is a boolean grid laid out row-major. The zero value is an empty 0x0 mask.
type Mask struct {
	W, H int
	Bits []bool
}

// New returns an all-false mask of the given size. Negative sizes are treated as zero.
func New(w, h int) *Mask {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Mask{W: w, H: h, Bits: make([]bool, w*h)}
}

// FromImage thresholds img: any pixel whose luminance is above zero becomes true.
// The result is always anchored at (0,0) regardless of img.Bounds().Min.
func FromImage(img image.Image) *Mask {
	if img == nil {
		return New(0, 0)
	}
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			m.Bits[y*m.W+x] = g.Y > 0
		}
	}
	return m
}

// Bounds returns the rectangle covered by the mask.
func (m *Mask) Bounds() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, m.W, m.H)
}

// SameShape reports whether both masks have identical dimensions.
func (m *Mask) SameShape(o *Mask) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.W == o.W && m.H == o.H
}

// At reports the cell at (x, y); out-of-range reads are false.
func (m *Mask) At(x, y int) bool {
	if m == nil || x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Bits[y*m.W+x]
}

// Set writes the cell at (x, y); out-of-range writes are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if m == nil || x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Bits[y*m.W+x] = v
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	out := &Mask{W: m.W, H: m.H, Bits: make([]bool, len(m.Bits))}
	copy(out.Bits, m.Bits)
	return out
}

// Equal reports shape and cell equality.
func (m *Mask) Equal(o *Mask) bool {
	if !m.SameShape(o) {
		return false
	}
	if m == nil {
		return true
	}
	for i, v := range m.Bits {
		if o.Bits[i] != v {
			return false
		}
	}
	return true
}

// OrInto sets every cell of m that is true in src. Both masks must share a shape.
func (m *Mask) OrInto(src *Mask) error {
	if !m.SameShape(src) {
		return ErrShapeMismatch
	}
	for i, v := range src.Bits {
		if v {
			m.Bits[i] = true
		}
	}
	return nil
}

// Union ORs all masks into a fresh w x h grid. Masks with a different shape are rejected.
func Union(w, h int, masks ...*Mask) (*Mask, error) {
	out := New(w, h)
	for _, src := range masks {
		if err := out.OrInto(src); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Area counts true cells.
func (m *Mask) Area() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, v := range m.Bits {
		if v {
			n++
		}
	}
	return n
}

// BBox returns the tightest rectangle containing every true cell. An empty mask
// yields the zero rectangle, i.e. (0,0,0,0) in x/y/w/h form.
func (m *Mask) BBox() image.Rectangle {
	if m == nil {
		return image.Rectangle{}
	}
	minX, minY := m.W, m.H
	maxX, maxY := -1, -1
	for y := 0; y < m.H; y++ {
		row := m.Bits[y*m.W : (y+1)*m.W]
		for x, v := range row {
			if !v {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Gray renders the mask as a single-channel image: true -> 255, false -> 0.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(m.Bounds())
	if m == nil {
		return img
	}
	for i, v := range m.Bits {
		if v {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// Overlay copies base and paints every true cell of m with c. The mask is
// addressed relative to base.Bounds().Min.
func Overlay(base image.Image, m *Mask, c color.Color) *image.RGBA {
	if base == nil {
		return nil
	}
	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), base, b.Min, draw.Src)
	if m == nil {
		return dst
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	for y := 0; y < m.H && y < b.Dy(); y++ {
		for x := 0; x < m.W && x < b.Dx(); x++ {
			if m.Bits[y*m.W+x] {
				dst.SetRGBA(x, y, rgba)
			}
		}
	}
	return dst
}
