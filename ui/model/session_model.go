package model

import (
	"time"
)

// SessionModel tracks time spent on the current image and the accumulated
// annotating time of the session. It is decoupled from the UI; presenters
// should poll Values() and update views. The zero value is ready to use.
type SessionModel struct {
	active      bool
	index       int
	imageStart  time.Time
	current     time.Duration
	accumulated time.Duration
}

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{index: -1} }

// OnTick updates the model from the annotating flag, the active image index
// and the current timestamp. Moving to another image restarts the per-image clock.
func (m *SessionModel) OnTick(annotating bool, index int, now time.Time) {
	if m == nil {
		return
	}
	if m.active && (!annotating || index != m.index) {
		m.current = now.Sub(m.imageStart)
		m.accumulated += m.current
		m.active = false
	}
	if !annotating {
		return
	}
	if !m.active {
		m.active = true
		m.imageStart = now
		m.index = index
	}
	m.current = now.Sub(m.imageStart)
}

// Values returns the current image duration and the total annotating time.
// The total includes the ongoing image when active.
func (m *SessionModel) Values() (image, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	image = m.current
	total = m.accumulated
	if m.active {
		total += image
	}
	return
}

// ImagesPerMinute returns throughput over the accumulated time, or 0 before a minute of data.
func (m *SessionModel) ImagesPerMinute(finished int) float64 {
	_, total := m.Values()
	if total < time.Minute || finished <= 0 {
		return 0
	}
	return float64(finished) / total.Minutes()
}
