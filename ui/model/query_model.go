package model

import "time"

// QueryModel keeps oracle round-trip statistics for the status bar.
// No synchronization needed: updates occur on the UI thread tick.
type QueryModel struct {
	count  int
	failed int
	last   time.Duration
	total  time.Duration
}

func NewQueryModel() *QueryModel { return &QueryModel{} }

// Observe records one finished query.
func (m *QueryModel) Observe(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.count++
	if !ok {
		m.failed++
	}
	m.last = d
	m.total += d
}

// Last returns the latest round-trip time.
func (m *QueryModel) Last() time.Duration {
	if m == nil {
		return 0
	}
	return m.last
}

// Mean returns the mean round-trip time, or 0 before any query.
func (m *QueryModel) Mean() time.Duration {
	if m == nil || m.count == 0 {
		return 0
	}
	return m.total / time.Duration(m.count)
}

// Counts returns total and failed queries.
func (m *QueryModel) Counts() (total, failed int) {
	if m == nil {
		return 0, 0
	}
	return m.count, m.failed
}
