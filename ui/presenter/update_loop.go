package presenter

import "time"

// Loop aggregates feature presenters and drives periodic updates.
//
// It calls Tick on the sub-presenters and invokes a scheduler callback.
// The zero value is usable (methods are nil-safe).
type Loop struct {
	Session  *SessionPresenter
	State    *StatePresenter
	Annotate *AnnotationPresenter
	Schedule func()
}

func NewLoop(sess *SessionPresenter, state *StatePresenter, annotate *AnnotationPresenter, schedule func()) *Loop {
	return &Loop{Session: sess, State: state, Annotate: annotate, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	// Results first, so the labels below already reflect them.
	if l.Annotate != nil {
		l.Annotate.Tick(now)
	}
	if l.State != nil {
		l.State.Tick(now)
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
