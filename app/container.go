package app

import (
	"context"
	"image/color"
	"log/slog"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/soocke/maskbot-go/config"
	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/domain/dataset"
	"github.com/soocke/maskbot-go/domain/oracle"
	"github.com/soocke/maskbot-go/domain/persist"
	"github.com/soocke/maskbot-go/ui/model"
	"github.com/soocke/maskbot-go/ui/presenter"
	"github.com/soocke/maskbot-go/ui/view"
)

// Container assembles the session, its collaborators, models, presenters and the root view.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Images  *dataset.Dir
	Oracle  annotate.Oracle
	Sink    *persist.Sink
	Machine *annotate.Machine
	Runner  *annotate.Runner

	Session *model.SessionModel
	Queries *model.QueryModel

	RootView *view.RootView

	AnnotationPresenter *presenter.AnnotationPresenter
	StatePresenter      *presenter.StatePresenter
	SessionPresenter    *presenter.SessionPresenter
	Loop                *presenter.Loop

	closers []func() error
}

// BuildContainer opens the image directory and the outputs and wires the
// session. onExit runs once the session has been saved. Nothing touches Tk
// until the root view is built.
func BuildContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, onExit func()) (*Container, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Container{Config: cfg, Logger: logger}
	imgs, err := dataset.Open(cfg.ImageDir, cfg.Extensions, cfg.ImageCacheSize, logger)
	if err != nil {
		return nil, err
	}
	if imgs.Len() == 0 {
		return nil, errors.Errorf("no images with extensions %v in %s", cfg.Extensions, cfg.ImageDir)
	}
	c.Images = imgs

	c.Machine = annotate.NewMachine(imgs.Names(), annotate.Layout{MaskDir: cfg.MaskDir, MaskExt: cfg.MaskExt})
	logger = logger.With("session", c.Machine.ID())
	c.Logger = logger

	orc, closeOracle, err := NewOracle(cfg, c.Machine.ID(), logger)
	if err != nil {
		return nil, err
	}
	c.Oracle = orc
	if closeOracle != nil {
		c.closers = append(c.closers, closeOracle)
	}

	var store *persist.Store
	if cfg.MetadataSQLitePath != "" {
		store, err = persist.OpenStore(cfg.MetadataSQLitePath, c.Machine.ID())
		if err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	c.Sink = persist.NewSink(persist.Options{
		Compression: cfg.PNGCompression,
		CSVPath:     cfg.MetadataPath,
		Store:       store,
		Logger:      logger,
	})
	c.closers = append(c.closers, c.Sink.Close)

	overlay, err := OverlayColor(cfg.OverlayColor)
	if err != nil {
		logger.Warn("bad overlay colour, using red", "value", cfg.OverlayColor, "error", err)
	}

	c.Session = model.NewSessionModel()
	c.Queries = model.NewQueryModel()
	c.RootView = view.NewRootView(logger)
	c.AnnotationPresenter = presenter.NewAnnotationPresenter(ctx, c.RootView, c.Queries, logger)
	c.closers = append(c.closers, func() error { c.AnnotationPresenter.Close(); return nil })

	c.Runner = annotate.NewRunner(c.Machine, imgs, orc, c.AnnotationPresenter, c.Sink, logger, annotate.RunnerOptions{
		OracleTimeout: time.Duration(cfg.Oracle.TimeoutSeconds * float64(time.Second)),
		OverlayColor:  overlay,
		Executor:      c.AnnotationPresenter,
		OnExit:        onExit,
	})
	c.AnnotationPresenter.Bind(c.Runner)

	c.StatePresenter = presenter.NewStatePresenter(c.Machine, c.RootView)
	c.Machine.AddListener(c.StatePresenter.OnState)
	c.Machine.AddListener(func(prev, next annotate.SessionState) {
		logger.Debug("state", "from", prev.String(), "to", next.String())
	})
	c.SessionPresenter = presenter.NewSessionPresenter(c.Session, c.Queries, c.Machine, c.RootView)
	return c, nil
}

// NewOracle builds the configured oracle. The returned closer may be nil.
func NewOracle(cfg *config.Config, session string, logger *slog.Logger) (annotate.Oracle, func() error, error) {
	switch cfg.Oracle.Kind {
	case config.OracleRemote:
		r := oracle.NewRemote(cfg.Oracle.URL, cfg.Oracle.Token, session, logger)
		return r, r.Close, nil
	case config.OracleRegionGrow:
		return oracle.NewRegionGrow(cfg.RegionGrow.Threshold, cfg.RegionGrow.MaxPixels), nil, nil
	default:
		return nil, nil, errors.Errorf("unknown oracle kind %q", cfg.Oracle.Kind)
	}
}

// OverlayColor parses a #rrggbb colour. Invalid input yields red and an error.
func OverlayColor(hex string) (color.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{R: 255, A: 255}, errors.Wrap(err, "overlay colour")
	}
	return c, nil
}

// Close releases the oracle connection, the metadata store and the query worker.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i]())
	}
	c.closers = nil
	return err
}
