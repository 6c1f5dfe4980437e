package limiter

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStoreUnavailable matches (via errors.Is) any *StoreError.
	ErrStoreUnavailable = errors.New("limiter: store unavailable")

	// ErrWaitTimeout matches (via errors.Is) any *WaitTimeoutError.
	ErrWaitTimeout = errors.New("limiter: wait timeout")

	// ErrInvalidLimit is returned when a Limit cannot be enforced as given
	// (negative Max, or a Window shorter than one second).
	ErrInvalidLimit = errors.New("limiter: invalid limit")
)

// StoreError reports that the atomic procedure could not be evaluated at all:
// the store was unreachable or the script failed. It is never produced for a
// normal "not allowed" decision, and the Waiter does not retry it.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("limiter: store unavailable: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// WaitTimeoutError reports that a Waiter's wait budget was spent without a
// slot being granted. Last is the most recent Decision observed, kept for
// diagnostics (its DecaysAt tells when capacity frees up).
type WaitTimeoutError struct {
	Last    Decision
	Elapsed time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("limiter: no slot granted within %s (next window at %s)",
		e.Elapsed, e.Last.DecaysAt.Format(time.RFC3339))
}

func (e *WaitTimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

func (l Limit) validate() error {
	if l.Max < 0 {
		return fmt.Errorf("%w: max must be non-negative, got %d", ErrInvalidLimit, l.Max)
	}
	if l.Window < time.Second {
		return fmt.Errorf("%w: window must be at least 1s, got %s", ErrInvalidLimit, l.Window)
	}
	return nil
}
