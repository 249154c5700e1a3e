package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/soocke/maskbot-go/domain/annotate"
)

// SessionSource provides the session state the label presenters read.
type SessionSource interface {
	State() annotate.SessionState
	Index() int
	Total() int
	Pending() bool
	CurrentImage() string
	Queue() *annotate.Queue
	Accumulator() *annotate.Accumulator
}

// StateView sets the state and progress labels in the view.
type StateView interface {
	SetStateLabel(string)
	SetProgress(string)
}

// StatePresenter receives machine transitions and progress, and updates the view.
type StatePresenter struct {
	src      SessionSource
	view     StateView
	latest   annotate.SessionState // last reflected state
	pending  []annotate.SessionState
	progress string
}

func NewStatePresenter(src SessionSource, view StateView) *StatePresenter {
	return &StatePresenter{src: src, view: view, latest: annotate.StateIdle}
}

// OnState queues a transitioned state from the machine listener.
//
// The latest queued state will be reflected on the next Tick.
func (p *StatePresenter) OnState(_, next annotate.SessionState) {
	if p == nil {
		return
	}
	p.pending = append(p.pending, next)
}

// Tick processes queued states and refreshes the progress line when it changed.
func (p *StatePresenter) Tick(now time.Time) {
	if p == nil || p.src == nil || p.view == nil {
		return
	}
	if len(p.pending) > 0 {
		last := p.pending[len(p.pending)-1]
		p.pending = p.pending[:0]
		if last != p.latest {
			p.latest = last
			p.view.SetStateLabel("State: " + last.String())
		}
	}
	if text := Progress(p.src); text != p.progress {
		p.progress = text
		p.view.SetProgress(text)
	}
}

// Progress formats the one-line session summary.
func Progress(src SessionSource) string {
	var b strings.Builder
	total := src.Total()
	pos := min(src.Index()+1, total)
	fmt.Fprintf(&b, "Image %d/%d", pos, total)
	if name := src.CurrentImage(); name != "" {
		fmt.Fprintf(&b, " (%s)", name)
	}
	fmt.Fprintf(&b, " | masks %d | queued %d", src.Accumulator().Len(), src.Queue().Enqueued())
	if src.Pending() {
		b.WriteString(" | querying")
	}
	return b.String()
}
