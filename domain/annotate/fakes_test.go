package annotate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/maskbot-go/domain/mask"
)

type fakeSource struct {
	names []string
	w, h  int
	fail  map[int]int
	loads []int
}

func newFakeSource(w, h int, names ...string) *fakeSource {
	return &fakeSource{names: names, w: w, h: h, fail: map[int]int{}}
}

func (s *fakeSource) Len() int          { return len(s.names) }
func (s *fakeSource) Name(i int) string { return s.names[i] }
func (s *fakeSource) Load(i int) (image.Image, error) {
	s.loads = append(s.loads, i)
	if s.fail[i] > 0 {
		s.fail[i]--
		return nil, errors.New("corrupt file")
	}
	return image.NewRGBA(image.Rect(0, 0, s.w, s.h)), nil
}

type answer struct {
	m     *mask.Mask
	score float64
	err   error
}

type fakeOracle struct {
	primed   int
	primeErr error
	answers  []answer
	queries  []image.Point
}

func (o *fakeOracle) Prime(_ context.Context, _ image.Image) error {
	o.primed++
	return o.primeErr
}

func (o *fakeOracle) Query(_ context.Context, pt image.Point) (*mask.Mask, float64, error) {
	o.queries = append(o.queries, pt)
	if len(o.answers) == 0 {
		return nil, 0, errors.New("no scripted answer")
	}
	a := o.answers[0]
	o.answers = o.answers[1:]
	return a.m, a.score, a.err
}

type fakeDisplay struct {
	shown    int
	statuses []string
	levels   []slog.Level
}

func (d *fakeDisplay) Show(image.Image) { d.shown++ }
func (d *fakeDisplay) Status(level slog.Level, msg string) {
	d.levels = append(d.levels, level)
	d.statuses = append(d.statuses, msg)
}

func (d *fakeDisplay) last() string {
	if len(d.statuses) == 0 {
		return ""
	}
	return d.statuses[len(d.statuses)-1]
}

type fakeSink struct {
	order    []string
	masks    map[string]*mask.Mask
	rows     [][]Metadata
	failMask error
	failMeta error
}

func newFakeSink() *fakeSink { return &fakeSink{masks: map[string]*mask.Mask{}} }

func (s *fakeSink) WriteMask(path string, m *mask.Mask) error {
	if s.failMask != nil {
		return s.failMask
	}
	s.order = append(s.order, path)
	s.masks[path] = m.Clone()
	return nil
}

func (s *fakeSink) WriteMetadata(rows []Metadata) error {
	if s.failMeta != nil {
		return s.failMeta
	}
	s.rows = append(s.rows, rows)
	return nil
}

// deferredExecutor holds queries until run is called, like a worker goroutine would.
type deferredExecutor struct{ held []func() Action }

func (d *deferredExecutor) Execute(fn func() Action) Action {
	d.held = append(d.held, fn)
	return nil
}

func (d *deferredExecutor) run() []Action {
	out := make([]Action, 0, len(d.held))
	for _, fn := range d.held {
		out = append(out, fn())
	}
	d.held = nil
	return out
}

func cells(w, h int, pts ...image.Point) *mask.Mask {
	m := mask.New(w, h)
	for _, p := range pts {
		m.Set(p.X, p.Y, true)
	}
	return m
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("img%d.png", i+1)
	}
	return out
}
