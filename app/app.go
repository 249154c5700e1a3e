package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/soocke/maskbot-go/config"
	"github.com/soocke/maskbot-go/domain/persist"
	"github.com/soocke/maskbot-go/ui/presenter"
	"github.com/soocke/maskbot-go/ui/theme"
	"github.com/soocke/maskbot-go/ui/view"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	tick     = 100 * time.Millisecond
	zoomSize = 192
)

// App owns the Tk window and the annotation session behind it.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	c       *Container
	out     io.Writer
	afterID string
	saved   bool
	closed  bool
}

// NewApp opens the image directory and outputs and prepares the window.
// Tk widgets are created by Run.
func NewApp(ctx context.Context, title string, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, out: os.Stdout}
	c, err := BuildContainer(ctx, cfg, logger, a.onSaved)
	if err != nil {
		return nil, err
	}
	a.c = c
	a.logger = c.Logger

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", cfg.DisplayWidth+zoomSize+40, cfg.DisplayHeight+140))
	return a, nil
}

// Run builds the window, starts the session and blocks until the window closes.
func (a *App) Run() error {
	theme.InitStyles()
	p := a.c.AnnotationPresenter
	a.c.RootView.Build(a.cfg.DisplayWidth, a.cfg.DisplayHeight, zoomSize, view.Handlers{
		Add:      p.Add,
		Retry:    p.Retry,
		Next:     p.Next,
		Skip:     p.Skip,
		SaveExit: p.SaveExit,
		Click:    p.Click,
	})
	a.c.Loop = presenter.NewLoop(a.c.SessionPresenter, a.c.StatePresenter, p, a.scheduleUpdate)

	a.logger.Info("session started", "images", a.c.Images.Len(), "dir", a.cfg.ImageDir, "oracle", a.cfg.Oracle.Kind)
	p.Start()
	a.scheduleUpdate()

	App.Wait()
	if !a.saved {
		a.logger.Warn("window closed without saving", "queued", a.c.Machine.Queue().Pending())
	}
	return a.c.Close()
}

// Container exposes the wired components.
func (a *App) Container() *Container { return a.c }

func (a *App) scheduleUpdate() {
	if a.closed {
		return
	}
	// TclAfter keeps the callback on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() {
		if !a.closed {
			a.c.Loop.Tick()
		}
	})
}

// onSaved prints the summary and closes the window after a successful save.
func (a *App) onSaved() {
	a.saved = true
	rows := a.c.Machine.Queue().AllMetadata()
	persist.WriteSummary(a.out, rows, a.c.Sink.Stats())
	a.exitHandler()
}

func (a *App) exitHandler() {
	if a.closed {
		return
	}
	a.closed = true
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
		a.afterID = ""
	}
	Destroy(App)
}
