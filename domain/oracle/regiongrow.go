package oracle

import (
	"context"
	"image"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/soocke/maskbot-go/domain/mask"
)

// RegionGrow is a local oracle: it floods 4-connected pixels whose CIE Lab
// distance to the clicked pixel stays within Threshold. Score is how tight the
// region is, 1 - mean distance / Threshold.
type RegionGrow struct {
	Threshold float64
	MaxPixels int

	mu     sync.Mutex
	w, h   int
	colors []colorful.Color
	opaque []bool
}

// NewRegionGrow returns a region-growing oracle. maxPixels <= 0 means unbounded.
func NewRegionGrow(threshold float64, maxPixels int) *RegionGrow {
	if threshold <= 0 {
		threshold = 0.1
	}
	return &RegionGrow{Threshold: threshold, MaxPixels: maxPixels}
}

// Prime converts img once so queries only compare colours.
func (g *RegionGrow) Prime(ctx context.Context, img image.Image) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	colors := make([]colorful.Color, w*h)
	opaque := make([]bool, w*h)
	for y := 0; y < h; y++ {
		if y%64 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for x := 0; x < w; x++ {
			c, ok := colorful.MakeColor(img.At(b.Min.X+x, b.Min.Y+y))
			colors[y*w+x] = c
			opaque[y*w+x] = ok
		}
	}
	g.mu.Lock()
	g.w, g.h, g.colors, g.opaque = w, h, colors, opaque
	g.mu.Unlock()
	return nil
}

// Query grows the region around pt.
func (g *RegionGrow) Query(ctx context.Context, pt image.Point) (*mask.Mask, float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.colors == nil {
		return nil, 0, ErrNotPrimed
	}
	if pt.X < 0 || pt.Y < 0 || pt.X >= g.w || pt.Y >= g.h {
		return nil, 0, errors.Errorf("point %v outside %dx%d", pt, g.w, g.h)
	}
	out := mask.New(g.w, g.h)
	seedIdx := pt.Y*g.w + pt.X
	seed := g.colors[seedIdx]
	out.Bits[seedIdx] = true
	stack := []int{seedIdx}
	var sum float64
	n := 1
	for len(stack) > 0 {
		if n%4096 == 0 && ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%g.w, i/g.w
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
				continue
			}
			j := ny*g.w + nx
			if out.Bits[j] || g.opaque[j] != g.opaque[seedIdx] {
				continue
			}
			dist := seed.DistanceLab(g.colors[j])
			if dist > g.Threshold {
				continue
			}
			if g.MaxPixels > 0 && n >= g.MaxPixels {
				stack = stack[:0]
				break
			}
			out.Bits[j] = true
			sum += dist
			n++
			stack = append(stack, j)
		}
	}
	score := 1 - (sum/float64(n))/g.Threshold
	return out, score, nil
}
