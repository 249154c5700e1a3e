package annotate

import (
	"github.com/samber/lo"

	"github.com/soocke/maskbot-go/domain/mask"
)

// Accumulator collects the per-click masks of the active image.
// Not safe for concurrent use.
type Accumulator struct {
	w, h    int
	entries []Entry
}

// NewAccumulator returns an empty accumulator for a w x h image.
func NewAccumulator(w, h int) *Accumulator { return &Accumulator{w: w, h: h} }

// Reset drops all entries and adopts the shape of the next image.
func (a *Accumulator) Reset(w, h int) {
	a.w, a.h = w, h
	a.entries = a.entries[:0]
}

// Append adds an entry. The entry mask must match the active image shape.
func (a *Accumulator) Append(e Entry) error {
	if e.Mask == nil || e.Mask.W != a.w || e.Mask.H != a.h {
		return mask.ErrShapeMismatch
	}
	a.entries = append(a.entries, e)
	return nil
}

// Len returns the number of entries.
func (a *Accumulator) Len() int { return len(a.entries) }

// Entries returns a copy of the entries in click order.
func (a *Accumulator) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Combined returns the OR of every entry mask, or an all-false grid when
// empty. An entry whose shape no longer matches also yields the empty grid
// so that a mismatched mask is never saved.
func (a *Accumulator) Combined() *mask.Mask {
	masks := lo.Map(a.entries, func(e Entry, _ int) *mask.Mask { return e.Mask })
	out, err := mask.Union(a.w, a.h, masks...)
	if err != nil {
		return mask.New(a.w, a.h)
	}
	return out
}
