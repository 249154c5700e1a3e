package view

import (
	"image"

	"github.com/soocke/maskbot-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ImageView shows the working image on a fixed-size surface next to a
// magnified view of the latest click.
type ImageView interface {
	ShowImage(img image.Image)
	ShowZoom(img image.Image)
	Size() (w, h int)
}

type imageView struct {
	imageLabel *LabelWidget
	zoomLabel  *LabelWidget
	w, h       int
	zoomSize   int
	prevImage  *Img // disposed before the next photo replaces it
	prevZoom   *Img
}

// NewImageView grids the image surface at row, spanning columns 0-3, and the
// zoom box at column 4. onClick receives surface coordinates.
func NewImageView(row, w, h, zoomSize int, onClick func(x, y int)) ImageView {
	v := &imageView{w: w, h: h, zoomSize: zoomSize}
	v.prevImage = NewPhoto(Data(images.EncodePNG(images.Placeholder(w, h))))
	v.prevZoom = NewPhoto(Data(images.EncodePNG(images.Placeholder(zoomSize, zoomSize))))
	v.imageLabel = Label(Image(v.prevImage), Borderwidth(1), Relief("sunken"), Cursor("crosshair"))
	v.zoomLabel = Label(Image(v.prevZoom), Borderwidth(1), Relief("sunken"))
	Grid(v.imageLabel, Row(row), Column(0), Columnspan(4), Sticky("nw"), Padx("0.4m"), Pady("0.4m"))
	Grid(v.zoomLabel, Row(row), Column(4), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	if onClick != nil {
		Bind(v.imageLabel, "<Button-1>", Command(func(e *Event) {
			onClick(e.X, e.Y)
		}))
	}
	return v
}

func (v *imageView) Size() (int, int) { return v.w, v.h }

// ShowImage stretches img to the surface size.
func (v *imageView) ShowImage(img image.Image) {
	if v.imageLabel == nil || img == nil {
		return
	}
	v.prevImage = replacePhoto(v.imageLabel, v.prevImage, images.ResizeForDisplay(img, v.w, v.h))
}

// ShowZoom shows img in the zoom box, or a blank box for nil.
func (v *imageView) ShowZoom(img image.Image) {
	if v.zoomLabel == nil {
		return
	}
	if img == nil {
		img = images.Placeholder(v.zoomSize, v.zoomSize)
	}
	v.prevZoom = replacePhoto(v.zoomLabel, v.prevZoom, img)
}

func replacePhoto(l *LabelWidget, prev *Img, img image.Image) *Img {
	if prev != nil {
		prev.Delete()
	}
	next := NewPhoto(Data(images.EncodePNG(img)))
	l.Configure(Image(next))
	return next
}
