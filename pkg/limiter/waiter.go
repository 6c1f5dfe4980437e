package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMax is the per-window budget a Waiter enforces unless
	// configured otherwise.
	DefaultMax = 1
	// DefaultWindow is the window length a Waiter uses unless configured.
	DefaultWindow = 60 * time.Second
	// DefaultWaitTimeout bounds how long Acquire blocks for a slot.
	DefaultWaitTimeout = 3 * time.Second
	// DefaultPollInterval is the pause between acquisition attempts.
	DefaultPollInterval = 750 * time.Millisecond
)

// errSlotBusy drives the retry loop; it never escapes Acquire.
var errSlotBusy = errors.New("limiter: slot busy")

// Waiter wraps a RateLimiter with blocking-retry semantics: it re-attempts a
// rejected acquisition on a fixed poll interval until a slot is granted or
// the wait budget is spent. Every attempt resamples the clock and performs a
// fresh atomic call; nothing is held between attempts, so any number of
// goroutines may share one Waiter. Among concurrent waiters there is no
// fairness ordering — a freed slot goes to whichever attempt wins the race.
type Waiter struct {
	limiter      RateLimiter
	limit        Limit
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithMax sets the per-window budget (default DefaultMax).
func WithMax(max int64) WaiterOption {
	return func(w *Waiter) { w.limit.Max = max }
}

// WithWindow sets the window length (default DefaultWindow).
func WithWindow(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.limit.Window = d }
}

// WithWaitTimeout sets how long Acquire may block waiting for a slot
// (default DefaultWaitTimeout). Zero or negative means a single attempt
// with no waiting.
func WithWaitTimeout(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.waitTimeout = d }
}

// WithPollInterval sets the pause between attempts (default
// DefaultPollInterval). Only used when the wait timeout is positive.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.pollInterval = d }
}

// NewWaiter returns a configured Waiter. The returned value is immutable;
// options do not affect it after construction.
func NewWaiter(l RateLimiter, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		limiter:      l,
		limit:        Limit{Max: DefaultMax, Window: DefaultWindow},
		waitTimeout:  DefaultWaitTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Acquire blocks until a slot is granted for id, the wait budget is spent,
// or the underlying store fails. On success the Decision has Allowed true.
// With a non-positive wait timeout a rejected single attempt returns the
// Decision with Allowed false and a nil error; with a positive timeout the
// failure is a *WaitTimeoutError carrying the last Decision. Store failures
// abort immediately, never consumed by the retry loop.
func (w *Waiter) Acquire(ctx context.Context, id Identity) (Decision, error) {
	if w.waitTimeout <= 0 {
		return w.limiter.Allow(ctx, id, w.limit)
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, w.waitTimeout)
	defer cancel()

	var last Decision
	b := backoff.WithContext(backoff.NewConstantBackOff(w.pollInterval), waitCtx)
	op := func() error {
		// The wait budget governs the pauses, not the in-flight call: once
		// issued, an atomic attempt runs to completion under the caller's
		// context and the backend's own per-call timeout.
		dec, err := w.limiter.Allow(ctx, id, w.limit)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = dec
		if !dec.Allowed {
			return errSlotBusy
		}
		return nil
	}

	err := backoff.Retry(op, b)
	var storeErr *StoreError
	switch {
	case err == nil:
		return last, nil
	case errors.As(err, &storeErr):
		return last, err
	case ctx.Err() != nil:
		// The caller's own context ended, not our wait budget.
		return last, ctx.Err()
	case errors.Is(err, errSlotBusy), errors.Is(err, context.DeadlineExceeded):
		return last, &WaitTimeoutError{Last: last, Elapsed: time.Since(start)}
	default:
		return last, err
	}
}

// GrantedFunc runs after a successful acquisition; its error becomes Do's
// error verbatim.
type GrantedFunc func(ctx context.Context, dec Decision) error

// ExhaustedFunc runs when no slot was granted, receiving the last observed
// Decision. When supplied it fully owns the "not allowed" outcome: its error
// (or nil) becomes Do's error verbatim and no *WaitTimeoutError is produced.
type ExhaustedFunc func(ctx context.Context, dec Decision) error

// Do acquires a slot and dispatches to the matching continuation. The
// boolean reports whether the slot was granted. Store failures bypass the
// exhausted continuation and surface directly.
func (w *Waiter) Do(ctx context.Context, id Identity, granted GrantedFunc, exhausted ExhaustedFunc) (bool, error) {
	dec, err := w.Acquire(ctx, id)

	var waitErr *WaitTimeoutError
	switch {
	case err == nil && dec.Allowed:
		if granted == nil {
			return true, nil
		}
		return true, granted(ctx, dec)
	case err == nil:
		// Single attempt (wait timeout <= 0), rejected.
		if exhausted != nil {
			return false, exhausted(ctx, dec)
		}
		return false, nil
	case errors.As(err, &waitErr):
		if exhausted != nil {
			return false, exhausted(ctx, waitErr.Last)
		}
		return false, err
	default:
		return false, err
	}
}
