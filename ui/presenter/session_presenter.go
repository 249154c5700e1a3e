package presenter

import (
	"time"

	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/ui/model"
)

// SessionView displays formatted per-image and total durations and the
// oracle round-trip statistics.
type SessionView interface {
	SetSession(image, total time.Duration, perMinute float64)
	SetOracle(queries, failed int, last, mean time.Duration)
}

// SessionPresenter formats annotating time and oracle statistics from the
// models to the view.
type SessionPresenter struct {
	sess    *model.SessionModel
	queries *model.QueryModel
	src     SessionSource
	view    SessionView
}

// NewSessionPresenter returns a new SessionPresenter. queries may be nil.
func NewSessionPresenter(sess *model.SessionModel, queries *model.QueryModel, src SessionSource, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, queries: queries, src: src, view: view}
}

// Tick advances the session model and pushes values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.src == nil || p.view == nil {
		return
	}
	p.sess.OnTick(p.src.State() == annotate.StateAnnotating, p.src.Index(), now)
	img, total := p.sess.Values()
	p.view.SetSession(img, total, p.sess.ImagesPerMinute(p.src.Index()))
	if p.queries != nil {
		n, failed := p.queries.Counts()
		p.view.SetOracle(n, failed, p.queries.Last(), p.queries.Mean())
	}
}
