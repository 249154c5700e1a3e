package annotate

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/google/uuid"
)

// Layout decides where finalized masks are written.
type Layout struct {
	MaskDir string
	MaskExt string
}

// Machine is the session state machine. Apply mutates only the machine's own
// state and returns the effects a Runner must execute; it performs no I/O, so
// it can be driven directly in tests.
type Machine struct {
	id        string
	state     SessionState
	index     int
	images    []string
	layout    Layout
	acc       *Accumulator
	queue     *Queue
	width     int
	height    int
	pending   bool
	loadErr   error
	listeners []StateListener
}

// NewMachine constructs an idle machine over the ordered image names.
func NewMachine(images []string, layout Layout) *Machine {
	names := make([]string, len(images))
	copy(names, images)
	return &Machine{
		id:     uuid.NewString(),
		state:  StateIdle,
		images: names,
		layout: layout,
		acc:    NewAccumulator(0, 0),
		queue:  NewQueue(),
	}
}

// AddListener registers a transition listener.
func (m *Machine) AddListener(l StateListener) { m.listeners = append(m.listeners, l) }

func (m *Machine) ID() string                { return m.id }
func (m *Machine) State() SessionState       { return m.state }
func (m *Machine) Index() int                { return m.index }
func (m *Machine) Total() int                { return len(m.images) }
func (m *Machine) Queue() *Queue             { return m.queue }
func (m *Machine) Accumulator() *Accumulator { return m.acc }
func (m *Machine) Pending() bool             { return m.pending }
func (m *Machine) LoadErr() error            { return m.loadErr }

// ImageSize returns the native size of the active image.
func (m *Machine) ImageSize() (int, int) { return m.width, m.height }

// CurrentImage returns the active image name, or "" outside the image range.
func (m *Machine) CurrentImage() string {
	if m.index < 0 || m.index >= len(m.images) {
		return ""
	}
	return m.images[m.index]
}

// Apply advances the machine by one action.
func (m *Machine) Apply(a Action) ([]Effect, error) {
	switch act := a.(type) {
	case Start:
		if m.state != StateIdle {
			return nil, rejected(m.state, "start")
		}
		return m.load(0), nil
	case ImageLoaded:
		return m.onImageLoaded(act)
	case ImageLoadFailed:
		if m.state != StateLoading || act.Index != m.index {
			return nil, ErrStale
		}
		m.loadErr = act.Err
		return []Effect{notify(slog.LevelError, "Cannot load %s: %v (Retry or Skip)", m.CurrentImage(), act.Err)}, nil
	case Click:
		return m.onClick(act)
	case MaskProduced:
		return m.onMaskProduced(act)
	case OracleFailed:
		if m.state != StateAnnotating || !m.pending || act.Index != m.index {
			return nil, ErrStale
		}
		m.pending = false
		if errors.Is(act.Err, ErrOracleReset) {
			return []Effect{notify(slog.LevelWarn, "No mask for click (%d, %d): %v. Retry to reconnect", act.Point.X, act.Point.Y, act.Err)}, nil
		}
		return []Effect{notify(slog.LevelWarn, "No mask for click (%d, %d): %v", act.Point.X, act.Point.Y, act.Err)}, nil
	case Add:
		if m.state != StateAnnotating {
			return nil, rejected(m.state, "add")
		}
		return []Effect{notify(slog.LevelInfo, "Added mask (%d so far). Click again or go to next image.", m.acc.Len())}, nil
	case Retry:
		if !m.canAbandon() {
			return nil, rejected(m.state, "retry")
		}
		if m.pending {
			return nil, ErrBusy
		}
		return append([]Effect{notify(slog.LevelInfo, "Retrying %s", m.CurrentImage())}, m.load(m.index)...), nil
	case Skip:
		if !m.canAbandon() {
			return nil, rejected(m.state, "skip")
		}
		if m.pending {
			return nil, ErrBusy
		}
		return append([]Effect{notify(slog.LevelInfo, "Skipped %s", m.CurrentImage())}, m.load(m.index+1)...), nil
	case Finalize:
		return m.onFinalize()
	case Save:
		if m.state == StateClosed {
			return nil, rejected(m.state, "save")
		}
		return []Effect{Persist{}}, nil
	case Saved:
		if m.state == StateClosed {
			return nil, ErrStale
		}
		if act.Err != nil {
			return []Effect{notify(slog.LevelError, "Save failed: %v", act.Err)}, nil
		}
		m.transition(StateClosed)
		return []Effect{notify(slog.LevelInfo, "Saved %d masks and metadata", m.queue.Enqueued()), Exit{}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %T", ErrRejected, a)
	}
}

// canAbandon reports whether the current image may be retried or skipped: while
// annotating, or after its load failed.
func (m *Machine) canAbandon() bool {
	return m.state == StateAnnotating || (m.state == StateLoading && m.loadErr != nil)
}

// load resets per-image state and enters Loading(i), or Done past the last image.
func (m *Machine) load(i int) []Effect {
	if i > m.index {
		m.index = i
	}
	m.acc.Reset(0, 0)
	m.width, m.height = 0, 0
	m.pending = false
	m.loadErr = nil
	if m.index >= len(m.images) {
		m.index = len(m.images)
		if m.state == StateDone {
			return nil
		}
		m.transition(StateDone)
		return []Effect{notify(slog.LevelInfo, "All images done. Click 'Save All & Exit'")}
	}
	m.transition(StateLoading)
	return []Effect{LoadImage{Index: m.index}}
}

func (m *Machine) onImageLoaded(act ImageLoaded) ([]Effect, error) {
	if m.state != StateLoading || act.Index != m.index {
		return nil, ErrStale
	}
	m.width, m.height = act.Width, act.Height
	m.acc.Reset(act.Width, act.Height)
	m.loadErr = nil
	m.transition(StateAnnotating)
	return []Effect{Render{}, notify(slog.LevelInfo, "Image: %s (%d/%d)", m.CurrentImage(), m.index+1, len(m.images))}, nil
}

func (m *Machine) onClick(act Click) ([]Effect, error) {
	if m.state != StateAnnotating {
		return nil, rejected(m.state, "click")
	}
	if m.pending {
		return nil, ErrBusy
	}
	if act.DisplayW <= 0 || act.DisplayH <= 0 ||
		act.X < 0 || act.Y < 0 || act.X >= act.DisplayW || act.Y >= act.DisplayH {
		return nil, ErrOutOfBounds
	}
	// floor(display * native / displaySize); operands are non-negative
	x := act.X * m.width / act.DisplayW
	y := act.Y * m.height / act.DisplayH
	m.pending = true
	return []Effect{QueryOracle{Index: m.index, Point: image.Pt(x, y)}}, nil
}

func (m *Machine) onMaskProduced(act MaskProduced) ([]Effect, error) {
	if m.state != StateAnnotating || !m.pending || act.Index != m.index {
		return nil, ErrStale
	}
	m.pending = false
	e := act.Entry
	if math.IsNaN(e.Score) {
		return []Effect{notify(slog.LevelWarn, "Oracle returned an invalid score for (%d, %d)", e.X, e.Y)}, nil
	}
	e.Score = math.Max(0, math.Min(1, e.Score))
	if err := m.acc.Append(e); err != nil {
		return []Effect{notify(slog.LevelWarn, "Oracle mask for (%d, %d) does not match %dx%d: %v", e.X, e.Y, m.width, m.height, err)}, nil
	}
	return []Effect{
		Render{Overlay: m.acc.Combined()},
		notify(slog.LevelInfo, "Mask %d at (%d, %d), score %.3f", m.acc.Len(), e.X, e.Y, e.Score),
	}, nil
}

func (m *Machine) onFinalize() ([]Effect, error) {
	if m.state != StateAnnotating {
		return nil, rejected(m.state, "finalize")
	}
	if m.pending {
		return nil, ErrBusy
	}
	name := m.CurrentImage()
	if m.acc.Len() == 0 {
		return append([]Effect{notify(slog.LevelWarn, "No masks for %s, skipping to next", name)}, m.load(m.index+1)...), nil
	}
	rec, meta, err := Summarize(name, m.layout.MaskDir, m.layout.MaskExt, m.width, m.height, m.acc.Entries())
	if err != nil {
		return nil, err
	}
	m.queue.Enqueue(rec, meta)
	return append([]Effect{notify(slog.LevelInfo, "Queued mask for %s", name)}, m.load(m.index+1)...), nil
}

func (m *Machine) transition(next SessionState) {
	prev := m.state
	if prev == next {
		return
	}
	m.state = next
	for _, l := range m.listeners {
		l(prev, next)
	}
}

func notify(level slog.Level, format string, args ...any) Notify {
	return Notify{Level: level, Message: fmt.Sprintf(format, args...)}
}
