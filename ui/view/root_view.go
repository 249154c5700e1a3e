package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/maskbot-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Handlers are the user actions wired from the root view.
type Handlers struct {
	Add      func()
	Retry    func()
	Next     func()
	Skip     func()
	SaveExit func()
	Click    func(x, y, w, h int)
}

// RootView composes the annotation window. It implements the view contracts
// of the annotation, state and session presenters.
type RootView struct {
	logger *slog.Logger

	Session SessionStats
	Images  ImageView

	StateLabel    *LabelWidget
	ProgressLabel *LabelWidget
	StatusLabel   *LabelWidget
}

func NewRootView(logger *slog.Logger) *RootView {
	return &RootView{logger: logger}
}

// Build constructs the layout for a w x h display surface.
func (rv *RootView) Build(w, h, zoomSize int, hs Handlers) {
	if rv == nil {
		return
	}
	top := Frame()
	Grid(top, Row(0), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	rv.StateLabel = TLabel(Txt("State: idle"), Style(theme.StyleStateLabel))
	Grid(rv.StateLabel, In(top), Row(0), Column(0), Sticky("w"), Padx("0.2m"))
	rv.ProgressLabel = Label(Txt(""), Anchor("w"))
	Grid(rv.ProgressLabel, In(top), Row(0), Column(1), Sticky("we"), Padx("0.4m"))
	rv.Session = NewSessionStats(top, 0, 2)

	rv.Images = NewImageView(1, w, h, zoomSize, func(x, y int) {
		if hs.Click != nil {
			hs.Click(x, y, w, h)
		}
	})

	btnFrame := Frame()
	Grid(btnFrame, Row(2), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	buttons := []struct {
		text  string
		style string
		fn    func()
	}{
		{"Add Mask", theme.StylePrimaryButton, hs.Add},
		{"Retry", "", hs.Retry},
		{"Next Image", theme.StylePrimaryButton, hs.Next},
		{"Skip Image", "", hs.Skip},
		{"Save All & Exit", theme.StyleDangerButton, hs.SaveExit},
	}
	for i, b := range buttons {
		fn := b.fn
		if fn == nil {
			fn = func() {}
		}
		opts := []Opt{Txt(b.text), Command(fn)}
		if b.style != "" {
			opts = append(opts, Style(b.style))
		}
		Grid(TButton(opts...), In(btnFrame), Row(0), Column(i), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	}

	rv.StatusLabel = TLabel(Txt("Ready"), Style(theme.StyleStatusInfo), Anchor("w"))
	Grid(rv.StatusLabel, Row(3), Column(0), Columnspan(5), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	if hs.Next != nil {
		Bind(App, "<Return>", Command(hs.Next))
	}
	if hs.Skip != nil {
		Bind(App, "<Key-s>", Command(hs.Skip))
	}
}

// SurfaceSize returns the display surface dimensions.
func (rv *RootView) SurfaceSize() (int, int) {
	if rv == nil || rv.Images == nil {
		return 0, 0
	}
	return rv.Images.Size()
}

func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

func (rv *RootView) SetProgress(text string) {
	if rv != nil && rv.ProgressLabel != nil {
		rv.ProgressLabel.Configure(Txt(text))
	}
}

// SetStatus shows msg colored by level.
func (rv *RootView) SetStatus(level slog.Level, msg string) {
	if rv == nil || rv.StatusLabel == nil {
		return
	}
	rv.StatusLabel.Configure(Txt(msg), Style(theme.StatusStyle(level)))
}

func (rv *RootView) ShowImage(img image.Image) {
	if rv != nil && rv.Images != nil {
		rv.Images.ShowImage(img)
	}
}

func (rv *RootView) ShowZoom(img image.Image) {
	if rv != nil && rv.Images != nil {
		rv.Images.ShowZoom(img)
	}
}

func (rv *RootView) SetSession(image, total time.Duration, perMinute float64) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(image, total, perMinute)
}

func (rv *RootView) SetOracle(queries, failed int, last, mean time.Duration) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetOracle(queries, failed, last, mean)
}
