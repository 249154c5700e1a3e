package annotate

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// started returns a machine annotating image 0 of n, each w x h.
func started(t *testing.T, n, w, h int) *Machine {
	t.Helper()
	m := NewMachine(names(n), Layout{MaskDir: "out"})
	eff, err := m.Apply(Start{})
	require.NoError(t, err)
	require.Equal(t, []Effect{LoadImage{Index: 0}}, eff)
	_, err = m.Apply(ImageLoaded{Index: 0, Width: w, Height: h})
	require.NoError(t, err)
	require.Equal(t, StateAnnotating, m.State())
	return m
}

func loadNext(t *testing.T, m *Machine, w, h int) {
	t.Helper()
	require.Equal(t, StateLoading, m.State())
	_, err := m.Apply(ImageLoaded{Index: m.Index(), Width: w, Height: h})
	require.NoError(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "annotating", StateAnnotating.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}

func TestStartOnlyFromIdle(t *testing.T) {
	m := started(t, 2, 4, 4)
	_, err := m.Apply(Start{})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, m.Index())
}

func TestStartWithNoImagesGoesToDone(t *testing.T) {
	m := NewMachine(nil, Layout{})
	eff, err := m.Apply(Start{})
	require.NoError(t, err)
	assert.Equal(t, StateDone, m.State())
	require.Len(t, eff, 1)
	assert.Contains(t, eff[0].(Notify).Message, "All images done")
}

func TestClickRejectedOutsideAnnotating(t *testing.T) {
	m := NewMachine(names(1), Layout{})
	_, err := m.Apply(Click{X: 1, Y: 1, DisplayW: 800, DisplayH: 600})
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, m.Pending())

	_, err = m.Apply(Start{})
	require.NoError(t, err)
	_, err = m.Apply(Click{X: 1, Y: 1, DisplayW: 800, DisplayH: 600})
	assert.ErrorIs(t, err, ErrRejected, "loading")
}

func TestClickRescalesToNativePixels(t *testing.T) {
	m := started(t, 1, 1600, 1200)
	eff, err := m.Apply(Click{X: 399, Y: 301, DisplayW: 800, DisplayH: 600})
	require.NoError(t, err)
	require.Equal(t, []Effect{QueryOracle{Index: 0, Point: image.Pt(798, 602)}}, eff)
	assert.True(t, m.Pending())
}

func TestClickRescaleFloors(t *testing.T) {
	m := started(t, 1, 10, 10)
	eff, err := m.Apply(Click{X: 799, Y: 599, DisplayW: 800, DisplayH: 600})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(9, 9), eff[0].(QueryOracle).Point)
}

func TestClickOutOfBounds(t *testing.T) {
	m := started(t, 1, 10, 10)
	for _, c := range []Click{
		{X: -1, Y: 0, DisplayW: 800, DisplayH: 600},
		{X: 0, Y: 600, DisplayW: 800, DisplayH: 600},
		{X: 800, Y: 0, DisplayW: 800, DisplayH: 600},
		{X: 0, Y: 0, DisplayW: 0, DisplayH: 600},
	} {
		_, err := m.Apply(c)
		assert.ErrorIs(t, err, ErrOutOfBounds, "%+v", c)
	}
	assert.False(t, m.Pending())
}

func TestBusyWhileQueryInFlight(t *testing.T) {
	m := started(t, 2, 4, 4)
	_, err := m.Apply(Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4})
	require.NoError(t, err)

	for _, a := range []Action{Click{X: 1, Y: 1, DisplayW: 4, DisplayH: 4}, Finalize{}, Skip{}, Retry{}} {
		_, err := m.Apply(a)
		assert.ErrorIs(t, err, ErrBusy, "%T", a)
	}
	assert.Equal(t, 0, m.Index())

	_, err = m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(4, 4, image.Pt(0, 0)), Score: 0.5}})
	require.NoError(t, err)
	assert.False(t, m.Pending())
	assert.Equal(t, 1, m.Accumulator().Len())
}

func TestMaskProducedRendersCombined(t *testing.T) {
	m := started(t, 1, 4, 4)
	_, err := m.Apply(Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4})
	require.NoError(t, err)
	eff, err := m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(4, 4, image.Pt(0, 0), image.Pt(1, 0)), X: 0, Y: 0, Score: 0.4}})
	require.NoError(t, err)
	require.NotEmpty(t, eff)
	r, ok := eff[0].(Render)
	require.True(t, ok)
	assert.Equal(t, 2, r.Overlay.Area())
}

func TestMaskProducedValidation(t *testing.T) {
	m := started(t, 1, 4, 4)

	_, err := m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(4, 4)}})
	assert.ErrorIs(t, err, ErrStale, "no query in flight")

	click := Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4}
	_, err = m.Apply(click)
	require.NoError(t, err)
	eff, err := m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(3, 4), Score: 0.9}})
	require.NoError(t, err)
	assert.IsType(t, Notify{}, eff[0])
	assert.Equal(t, 0, m.Accumulator().Len(), "wrong shape is dropped")
	assert.False(t, m.Pending())

	_, err = m.Apply(click)
	require.NoError(t, err)
	_, err = m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(4, 4, image.Pt(1, 1)), Score: 1.7}})
	require.NoError(t, err)
	require.Equal(t, 1, m.Accumulator().Len())
	assert.Equal(t, 1.0, m.Accumulator().Entries()[0].Score)
}

func TestOracleFailedDropsClick(t *testing.T) {
	m := started(t, 1, 4, 4)
	_, err := m.Apply(Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4})
	require.NoError(t, err)
	eff, err := m.Apply(OracleFailed{Index: 0, Err: errors.New("timeout")})
	require.NoError(t, err)
	assert.Contains(t, eff[0].(Notify).Message, "timeout")
	assert.False(t, m.Pending())
	assert.Equal(t, StateAnnotating, m.State())
	assert.Equal(t, 0, m.Accumulator().Len())
}

func TestOracleResetSuggestsRetry(t *testing.T) {
	m := started(t, 1, 4, 4)
	_, err := m.Apply(Click{X: 1, Y: 1, DisplayW: 4, DisplayH: 4})
	require.NoError(t, err)
	lost := fmt.Errorf("query: connection reset: %w", ErrOracleReset)
	eff, err := m.Apply(OracleFailed{Index: 0, Point: image.Pt(1, 1), Err: lost})
	require.NoError(t, err)
	require.Len(t, eff, 1)
	assert.Contains(t, eff[0].(Notify).Message, "Retry to reconnect")

	// Ordinary failures keep the plain message.
	_, err = m.Apply(Click{X: 1, Y: 1, DisplayW: 4, DisplayH: 4})
	require.NoError(t, err)
	eff, err = m.Apply(OracleFailed{Index: 0, Err: errors.New("timeout")})
	require.NoError(t, err)
	assert.NotContains(t, eff[0].(Notify).Message, "Retry")
}

func TestAddIsAcknowledgementOnly(t *testing.T) {
	m := started(t, 2, 4, 4)
	eff, err := m.Apply(Add{})
	require.NoError(t, err)
	require.Len(t, eff, 1)
	assert.Contains(t, eff[0].(Notify).Message, "Click again or go to next image")
	assert.Equal(t, StateAnnotating, m.State())
	assert.Equal(t, 0, m.Index())
}

func TestRetryDiscardsEntries(t *testing.T) {
	m := started(t, 2, 4, 4)
	_, err := m.Apply(Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4})
	require.NoError(t, err)
	_, err = m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(4, 4, image.Pt(0, 0)), Score: 0.9}})
	require.NoError(t, err)

	eff, err := m.Apply(Retry{})
	require.NoError(t, err)
	assert.Contains(t, eff, Effect(LoadImage{Index: 0}))
	assert.Equal(t, StateLoading, m.State())
	assert.Equal(t, 0, m.Accumulator().Len())
	assert.Equal(t, 0, m.Index())

	loadNext(t, m, 4, 4)
	assert.Equal(t, StateAnnotating, m.State())
	assert.Equal(t, 0, m.Queue().Pending())
}

func TestFinalizeWithoutEntriesEqualsSkip(t *testing.T) {
	a := started(t, 3, 4, 4)
	b := started(t, 3, 4, 4)

	_, err := a.Apply(Finalize{})
	require.NoError(t, err)
	_, err = b.Apply(Skip{})
	require.NoError(t, err)

	assert.Equal(t, b.State(), a.State())
	assert.Equal(t, b.Index(), a.Index())
	assert.Equal(t, 0, a.Queue().Enqueued())
	assert.Equal(t, 0, b.Queue().Enqueued())
}

func TestFinalizeQueuesCombinedMask(t *testing.T) {
	m := started(t, 2, 4, 4)
	for _, p := range []image.Point{{1, 1}, {2, 3}} {
		_, err := m.Apply(Click{X: p.X, Y: p.Y, DisplayW: 4, DisplayH: 4})
		require.NoError(t, err)
		_, err = m.Apply(MaskProduced{Index: 0, Entry: Entry{Mask: cells(4, 4, p), X: p.X, Y: p.Y, Score: 0.5}})
		require.NoError(t, err)
	}
	eff, err := m.Apply(Finalize{})
	require.NoError(t, err)
	assert.Contains(t, eff, Effect(LoadImage{Index: 1}))

	require.Equal(t, 1, m.Queue().Pending())
	rows := m.Queue().AllMetadata()
	require.Len(t, rows, 1)
	assert.Equal(t, "img1.png", rows[0].Image)
	assert.Equal(t, "img1_mask.png", rows[0].Mask)
	assert.Equal(t, []int{1, 2}, rows[0].ClickX)
	assert.Equal(t, []int{1, 3}, rows[0].ClickY)
	assert.Equal(t, 2, rows[0].Area)
	assert.Equal(t, image.Rect(1, 1, 3, 4), rows[0].BBox)
	assert.Equal(t, 0, m.Accumulator().Len())
}

func TestDoneIsTerminalUntilSave(t *testing.T) {
	m := started(t, 1, 4, 4)
	_, err := m.Apply(Skip{})
	require.NoError(t, err)
	require.Equal(t, StateDone, m.State())
	require.Equal(t, 1, m.Index())

	for _, a := range []Action{Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4}, Finalize{}, Skip{}, Retry{}, Add{}, Start{}} {
		_, err := m.Apply(a)
		assert.ErrorIs(t, err, ErrRejected, "%T", a)
	}
	assert.Equal(t, StateDone, m.State())
	assert.Equal(t, 1, m.Index())
}

func TestSaveTransitions(t *testing.T) {
	m := started(t, 1, 4, 4)
	eff, err := m.Apply(Save{})
	require.NoError(t, err)
	assert.Equal(t, []Effect{Persist{}}, eff)

	eff, err = m.Apply(Saved{Err: errors.New("disk full")})
	require.NoError(t, err)
	assert.Contains(t, eff[0].(Notify).Message, "disk full")
	assert.Equal(t, StateAnnotating, m.State())

	eff, err = m.Apply(Saved{})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, m.State())
	assert.Contains(t, eff, Effect(Exit{}))

	_, err = m.Apply(Save{})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestLoadFailureStaysLoading(t *testing.T) {
	m := NewMachine(names(2), Layout{})
	_, err := m.Apply(Start{})
	require.NoError(t, err)

	_, err = m.Apply(Retry{})
	assert.ErrorIs(t, err, ErrRejected, "retry before the load settles")

	_, err = m.Apply(ImageLoadFailed{Index: 0, Err: errors.New("bad header")})
	require.NoError(t, err)
	assert.Equal(t, StateLoading, m.State())
	assert.Error(t, m.LoadErr())

	_, err = m.Apply(Click{X: 0, Y: 0, DisplayW: 4, DisplayH: 4})
	assert.ErrorIs(t, err, ErrRejected)

	eff, err := m.Apply(Skip{})
	require.NoError(t, err)
	assert.Contains(t, eff, Effect(LoadImage{Index: 1}))
	assert.NoError(t, m.LoadErr())
}

func TestStaleImageResults(t *testing.T) {
	m := started(t, 3, 4, 4)
	_, err := m.Apply(ImageLoaded{Index: 0, Width: 4, Height: 4})
	assert.ErrorIs(t, err, ErrStale)
	_, err = m.Apply(ImageLoadFailed{Index: 2, Err: errors.New("x")})
	assert.ErrorIs(t, err, ErrStale)
	_, err = m.Apply(OracleFailed{Index: 0})
	assert.ErrorIs(t, err, ErrStale)
}

func TestIndexNeverDecreases(t *testing.T) {
	m := NewMachine(names(4), Layout{})
	last := m.Index()
	check := func() {
		assert.GreaterOrEqual(t, m.Index(), last)
		last = m.Index()
	}
	script := []Action{
		Start{}, ImageLoaded{Index: 0, Width: 2, Height: 2}, Retry{}, ImageLoaded{Index: 0, Width: 2, Height: 2},
		Skip{}, ImageLoaded{Index: 1, Width: 2, Height: 2}, Finalize{}, Retry{}, ImageLoaded{Index: 2, Width: 2, Height: 2},
		Skip{}, ImageLoadFailed{Index: 3, Err: errors.New("x")}, Retry{}, ImageLoaded{Index: 3, Width: 2, Height: 2},
		Finalize{}, Skip{}, Retry{},
	}
	for _, a := range script {
		_, _ = m.Apply(a)
		check()
	}
	assert.Equal(t, StateDone, m.State())
	assert.Equal(t, 4, m.Index())
}

func TestListenersSeeTransitions(t *testing.T) {
	m := NewMachine(names(1), Layout{})
	var seen []string
	m.AddListener(func(prev, next SessionState) { seen = append(seen, prev.String()+">"+next.String()) })

	_, _ = m.Apply(Start{})
	_, _ = m.Apply(ImageLoaded{Index: 0, Width: 2, Height: 2})
	_, _ = m.Apply(Finalize{})
	_, _ = m.Apply(Saved{})

	assert.Equal(t, []string{"idle>loading", "loading>annotating", "annotating>done", "done>closed"}, seen)
}
