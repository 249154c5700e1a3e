package annotate

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected marks an action that is not valid in the current state.
	ErrRejected = errors.New("action rejected")
	// ErrBusy marks an action refused while an oracle query is in flight.
	ErrBusy = errors.New("oracle query in flight")
	// ErrOutOfBounds marks a click outside the displayed image.
	ErrOutOfBounds = errors.New("click outside image")
	// ErrStale marks a result for an image that is no longer active.
	ErrStale = errors.New("stale result")
	// ErrOracleReset marks an oracle that lost the primed image. Retry loads
	// and primes it again.
	ErrOracleReset = errors.New("oracle lost the primed image")
)

// OracleError wraps a failed or unusable oracle answer. It is always recovered:
// the click that caused it is dropped.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string { return fmt.Sprintf("oracle %s: %v", e.Op, e.Err) }
func (e *OracleError) Unwrap() error { return e.Err }

// ImageReadError wraps an unreadable source image.
type ImageReadError struct {
	Image string
	Err   error
}

func (e *ImageReadError) Error() string { return fmt.Sprintf("read image %s: %v", e.Image, e.Err) }
func (e *ImageReadError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed write to a mask file or metadata store.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Path, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func rejected(state SessionState, what string) error {
	return fmt.Errorf("%w: %s in state %s", ErrRejected, what, state)
}
