package presenter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/ui/images"
	"github.com/soocke/maskbot-go/ui/model"
)

// AnnotationView describes the UI surface updated by the presenter.
type AnnotationView interface {
	ShowImage(img image.Image)
	ShowZoom(img image.Image)
	SetStatus(level slog.Level, msg string)
}

// Dispatcher is the part of annotate.Runner the presenter drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, a annotate.Action) error
	Machine() *annotate.Machine
}

const (
	zoomWindow = 64
	zoomOut    = 192
)

type queryTask struct {
	run     func() annotate.Action
	started time.Time
}

type queryResult struct {
	action  annotate.Action
	elapsed time.Duration
}

// AnnotationPresenter turns button presses and clicks into session actions.
// It is the session's Display and QueryExecutor: oracle queries run on a
// worker goroutine and their results are dispatched on the next Tick, so the
// Tk thread never blocks on the oracle.
type AnnotationPresenter struct {
	ctx     context.Context
	view    AnnotationView
	queries *model.QueryModel
	logger  *slog.Logger
	runner  Dispatcher

	workerOnce sync.Once
	closeOnce  sync.Once
	workCh     chan queryTask
	resultCh   chan queryResult
}

// NewAnnotationPresenter constructs the presenter. Bind must be called before use.
func NewAnnotationPresenter(ctx context.Context, view AnnotationView, queries *model.QueryModel, logger *slog.Logger) *AnnotationPresenter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AnnotationPresenter{
		ctx:      ctx,
		view:     view,
		queries:  queries,
		logger:   logger,
		workCh:   make(chan queryTask, 1),
		resultCh: make(chan queryResult, 1),
	}
}

// Bind attaches the runner that owns the session.
func (p *AnnotationPresenter) Bind(r Dispatcher) { p.runner = r }

// Show implements annotate.Display.
func (p *AnnotationPresenter) Show(img image.Image) {
	if p == nil || p.view == nil {
		return
	}
	p.view.ShowImage(img)
	p.view.ShowZoom(p.zoom(img))
}

// zoom magnifies the area around the latest click, or returns nil when the
// image has no clicks yet.
func (p *AnnotationPresenter) zoom(img image.Image) image.Image {
	if p.runner == nil || img == nil {
		return nil
	}
	entries := p.runner.Machine().Accumulator().Entries()
	if len(entries) == 0 {
		return nil
	}
	last := entries[len(entries)-1]
	return images.ZoomAround(img, image.Pt(last.X, last.Y), zoomWindow, zoomOut)
}

// Status implements annotate.Display.
func (p *AnnotationPresenter) Status(level slog.Level, msg string) {
	if p == nil || p.view == nil {
		return
	}
	p.view.SetStatus(level, msg)
}

// Execute implements annotate.QueryExecutor by handing run to the worker.
func (p *AnnotationPresenter) Execute(run func() annotate.Action) annotate.Action {
	p.ensureWorker()
	select {
	case p.workCh <- queryTask{run: run, started: time.Now()}:
		return nil
	default:
		// the session allows one query in flight, so this only happens on misuse
		if p.logger != nil {
			p.logger.Warn("query worker busy, running inline")
		}
		return run()
	}
}

func (p *AnnotationPresenter) ensureWorker() {
	p.workerOnce.Do(func() {
		go p.runWorker()
	})
}

func (p *AnnotationPresenter) runWorker() {
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("query worker panic", "panic", fmt.Sprint(r))
		}
	}()
	for task := range p.workCh {
		act := task.run()
		p.resultCh <- queryResult{action: act, elapsed: time.Since(task.started)}
	}
}

// Tick dispatches finished queries. Call from the UI thread.
func (p *AnnotationPresenter) Tick(now time.Time) {
	if p == nil || p.runner == nil {
		return
	}
	for {
		select {
		case res := <-p.resultCh:
			_, failed := res.action.(annotate.OracleFailed)
			p.queries.Observe(res.elapsed, !failed)
			p.dispatch(res.action)
		default:
			return
		}
	}
}

// Close stops the worker. Pending results are dropped.
func (p *AnnotationPresenter) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.workCh) })
}

func (p *AnnotationPresenter) Start()    { p.dispatch(annotate.Start{}) }
func (p *AnnotationPresenter) Add()      { p.dispatch(annotate.Add{}) }
func (p *AnnotationPresenter) Retry()    { p.dispatch(annotate.Retry{}) }
func (p *AnnotationPresenter) Next()     { p.dispatch(annotate.Finalize{}) }
func (p *AnnotationPresenter) Skip()     { p.dispatch(annotate.Skip{}) }
func (p *AnnotationPresenter) SaveExit() { p.dispatch(annotate.Save{}) }

// Click forwards a press on the w x h display surface.
func (p *AnnotationPresenter) Click(x, y, w, h int) {
	p.dispatch(annotate.Click{X: x, Y: y, DisplayW: w, DisplayH: h})
}

func (p *AnnotationPresenter) dispatch(a annotate.Action) {
	if p == nil || p.runner == nil {
		return
	}
	err := p.runner.Dispatch(p.ctx, a)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, annotate.ErrBusy):
		p.Status(slog.LevelWarn, "Still waiting for the previous mask...")
	case errors.Is(err, annotate.ErrOutOfBounds):
		p.Status(slog.LevelWarn, "Click inside the image.")
	case errors.Is(err, annotate.ErrRejected):
		p.Status(slog.LevelWarn, rejectionHint(p.runner.Machine().State()))
	}
	if p.logger != nil {
		p.logger.Debug("dispatch", "action", fmt.Sprintf("%T", a), "error", err)
	}
}

func rejectionHint(s annotate.SessionState) string {
	switch s {
	case annotate.StateIdle:
		return "Session has not started."
	case annotate.StateLoading:
		return "Image is still loading."
	case annotate.StateDone:
		return "All images done. Click 'Save All & Exit'"
	case annotate.StateClosed:
		return "Session is closed."
	default:
		return "Not available right now."
	}
}
