package annotate

import (
	"context"
	"image"
	"log/slog"

	"github.com/soocke/maskbot-go/domain/mask"
)

// SessionState enumerates the states of an annotation session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateLoading
	StateAnnotating
	StateDone
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateAnnotating:
		return "annotating"
	case StateDone:
		return "done"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateListener is called on each state transition.
type StateListener func(prev, next SessionState)

// Entry is one click's contribution to the current image.
type Entry struct {
	Mask  *mask.Mask
	X, Y  int
	Score float64
}

// QueuedMask is a combined mask waiting to be written at session end.
type QueuedMask struct {
	Path string
	Mask *mask.Mask
}

// Metadata describes one finalized image. BBox uses image.Rectangle; its x/y/w/h
// form is (Min.X, Min.Y, Dx, Dy).
type Metadata struct {
	Image  string
	Mask   string
	ClickX []int
	ClickY []int
	Area   int
	BBox   image.Rectangle
	Score  float64
}

// Oracle is the point-prompted segmentation backend. Prime must succeed before
// Query is called for that image.
type Oracle interface {
	Prime(ctx context.Context, img image.Image) error
	Query(ctx context.Context, pt image.Point) (*mask.Mask, float64, error)
}

// ImageSource is the ordered, immutable list of images for a session.
type ImageSource interface {
	Len() int
	Name(i int) string
	Load(i int) (image.Image, error)
}

// Display shows frames and status text to the annotator.
type Display interface {
	Show(img image.Image)
	Status(level slog.Level, msg string)
}

// Sink persists queued masks and the metadata table.
type Sink interface {
	WriteMask(path string, m *mask.Mask) error
	WriteMetadata(rows []Metadata) error
}

// Action is a user action or the result of an effect fed back into the machine.
type Action interface{ action() }

type (
	// Start loads the first image.
	Start struct{}
	// Click is a press on the display surface in display coordinates.
	Click struct{ X, Y, DisplayW, DisplayH int }
	// Add acknowledges the masks collected so far; it never changes state.
	Add struct{}
	// Retry discards the current image's clicks and reloads it.
	Retry struct{}
	// Finalize commits the current image and advances ("next image").
	Finalize struct{}
	// Skip advances without committing.
	Skip struct{}
	// Save drains the queue to the sink and closes the session.
	Save struct{}

	// ImageLoaded reports that image Index was read, shown raw and primed.
	ImageLoaded struct{ Index, Width, Height int }
	// ImageLoadFailed reports a read or prime failure for image Index.
	ImageLoadFailed struct {
		Index int
		Err   error
	}
	// MaskProduced carries an oracle answer for image Index.
	MaskProduced struct {
		Index int
		Entry Entry
	}
	// OracleFailed reports that the oracle produced nothing usable.
	OracleFailed struct {
		Index int
		Point image.Point
		Err   error
	}
	// Saved reports the outcome of a Persist effect.
	Saved struct{ Err error }
)

func (Start) action()           {}
func (Click) action()           {}
func (Add) action()             {}
func (Retry) action()           {}
func (Finalize) action()        {}
func (Skip) action()            {}
func (Save) action()            {}
func (ImageLoaded) action()     {}
func (ImageLoadFailed) action() {}
func (MaskProduced) action()    {}
func (OracleFailed) action()    {}
func (Saved) action()           {}

// Effect is a side effect requested by the machine and executed by the Runner.
type Effect interface{ effect() }

type (
	// LoadImage reads image Index, renders it raw and primes the oracle.
	LoadImage struct{ Index int }
	// QueryOracle asks for a mask at a source-pixel point of image Index.
	QueryOracle struct {
		Index int
		Point image.Point
	}
	// Render shows the current image; a nil Overlay renders it raw.
	Render struct{ Overlay *mask.Mask }
	// Notify surfaces a status message.
	Notify struct {
		Level   slog.Level
		Message string
	}
	// Persist drains the queue into the sink.
	Persist struct{}
	// Exit ends the program after a successful save.
	Exit struct{}
)

func (LoadImage) effect()   {}
func (QueryOracle) effect() {}
func (Render) effect()      {}
func (Notify) effect()      {}
func (Persist) effect()     {}
func (Exit) effect()        {}
