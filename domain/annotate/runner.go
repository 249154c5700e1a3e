package annotate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/soocke/maskbot-go/domain/mask"
)

// QueryExecutor decides where oracle queries run. Execute either runs fn and
// returns its action, or schedules it elsewhere and returns nil; scheduled
// results must later be passed to Runner.Dispatch on the owning goroutine.
type QueryExecutor interface {
	Execute(fn func() Action) Action
}

// InlineExecutor runs queries on the dispatching goroutine.
type InlineExecutor struct{}

func (InlineExecutor) Execute(fn func() Action) Action { return fn() }

// RunnerOptions tune a Runner. Zero values are usable.
type RunnerOptions struct {
	OracleTimeout time.Duration
	OverlayColor  color.Color
	Executor      QueryExecutor
	OnExit        func()
}

// Runner executes the machine's effects against the real collaborators and
// feeds their results back in. Dispatch must be called from one goroutine.
type Runner struct {
	machine *Machine
	source  ImageSource
	oracle  Oracle
	display Display
	sink    Sink
	logger  *slog.Logger
	exec    QueryExecutor
	timeout time.Duration
	overlay color.Color
	onExit  func()
	current image.Image
}

// NewRunner wires a machine to its collaborators.
func NewRunner(m *Machine, src ImageSource, oracle Oracle, display Display, sink Sink, logger *slog.Logger, opts RunnerOptions) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		machine: m,
		source:  src,
		oracle:  oracle,
		display: display,
		sink:    sink,
		logger:  logger.With("session", m.ID()),
		exec:    opts.Executor,
		timeout: opts.OracleTimeout,
		overlay: opts.OverlayColor,
		onExit:  opts.OnExit,
	}
	if r.exec == nil {
		r.exec = InlineExecutor{}
	}
	if r.overlay == nil {
		r.overlay = color.RGBA{R: 255, A: 255}
	}
	return r
}

func (r *Runner) Machine() *Machine { return r.machine }

// Dispatch applies a and every action its effects produce. It returns the
// rejection of a itself, otherwise the first surfaced load or save failure.
// Recovered oracle failures are reported through the display only.
func (r *Runner) Dispatch(ctx context.Context, a Action) error {
	queue := []Action{a}
	var rejection, surfaced error
	for step := 0; len(queue) > 0; step++ {
		act := queue[0]
		queue = queue[1:]
		prev := r.machine.State()
		effects, err := r.machine.Apply(act)
		if err != nil {
			r.logger.Debug("action not applied", "action", fmt.Sprintf("%T", act), "state", prev.String(), "error", err)
			if step == 0 {
				rejection = err
			}
			continue
		}
		switch res := act.(type) {
		case ImageLoadFailed:
			surfaced = firstErr(surfaced, res.Err)
		case Saved:
			surfaced = firstErr(surfaced, res.Err)
		}
		for _, eff := range effects {
			if next := r.execute(ctx, eff); next != nil {
				queue = append(queue, next)
			}
		}
	}
	if rejection != nil {
		return rejection
	}
	return surfaced
}

func firstErr(cur, next error) error {
	if cur != nil {
		return cur
	}
	return next
}

func (r *Runner) execute(ctx context.Context, eff Effect) Action {
	switch e := eff.(type) {
	case LoadImage:
		return r.load(ctx, e.Index)
	case QueryOracle:
		return r.exec.Execute(func() Action { return r.query(ctx, e) })
	case Render:
		r.render(e.Overlay)
	case Notify:
		r.logger.Log(ctx, e.Level, e.Message, "image", r.machine.CurrentImage(), "state", r.machine.State().String())
		if r.display != nil {
			r.display.Status(e.Level, e.Message)
		}
	case Persist:
		return Saved{Err: r.persist()}
	case Exit:
		if r.onExit != nil {
			r.onExit()
		}
	}
	return nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Runner) load(ctx context.Context, i int) Action {
	name := r.source.Name(i)
	started := time.Now()
	img, err := r.source.Load(i)
	if err != nil {
		r.current = nil
		return ImageLoadFailed{Index: i, Err: &ImageReadError{Image: name, Err: err}}
	}
	r.current = img
	r.render(nil)
	pctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.oracle.Prime(pctx, img); err != nil {
		return ImageLoadFailed{Index: i, Err: &OracleError{Op: "prime", Err: err}}
	}
	b := img.Bounds()
	r.logger.Info("image ready", "image", name, "index", i, "width", b.Dx(), "height", b.Dy(), "elapsed", time.Since(started))
	return ImageLoaded{Index: i, Width: b.Dx(), Height: b.Dy()}
}

func (r *Runner) query(ctx context.Context, q QueryOracle) (act Action) {
	defer func() {
		if p := recover(); p != nil {
			act = OracleFailed{Index: q.Index, Point: q.Point, Err: &OracleError{Op: "query", Err: fmt.Errorf("panic: %v", p)}}
		}
	}()
	qctx, cancel := r.withTimeout(ctx)
	defer cancel()
	m, score, err := r.oracle.Query(qctx, q.Point)
	if err == nil && m == nil {
		err = errors.New("empty answer")
	}
	if err != nil {
		return OracleFailed{Index: q.Index, Point: q.Point, Err: &OracleError{Op: "query", Err: err}}
	}
	return MaskProduced{Index: q.Index, Entry: Entry{Mask: m, X: q.Point.X, Y: q.Point.Y, Score: score}}
}

func (r *Runner) render(overlay *mask.Mask) {
	if r.display == nil || r.current == nil {
		return
	}
	if overlay == nil {
		r.display.Show(r.current)
		return
	}
	r.display.Show(mask.Overlay(r.current, overlay, r.overlay))
}

// persist writes pending masks in enqueue order, then the full metadata table.
func (r *Runner) persist() error {
	q := r.machine.Queue()
	written, err := q.Drain(func(rec QueuedMask) error {
		if err := r.sink.WriteMask(rec.Path, rec.Mask); err != nil {
			var pe *PersistenceError
			if errors.As(err, &pe) {
				return err
			}
			return &PersistenceError{Path: rec.Path, Err: err}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("mask write failed", "written", written, "pending", q.Pending(), "error", err)
		return err
	}
	rows := q.AllMetadata()
	if err := r.sink.WriteMetadata(rows); err != nil {
		r.logger.Error("metadata write failed", "rows", len(rows), "error", err)
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return err
		}
		return &PersistenceError{Path: "metadata", Err: err}
	}
	r.logger.Info("session saved", "masks", written, "rows", len(rows))
	return nil
}
