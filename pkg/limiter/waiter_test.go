package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLimiter replays a fixed sequence of outcomes; the last entry
// repeats once the sequence is spent.
type scriptedLimiter struct {
	mu      sync.Mutex
	outcome []scriptedOutcome
	calls   int
}

type scriptedOutcome struct {
	dec Decision
	err error
}

func alwaysDeny() *scriptedLimiter {
	return &scriptedLimiter{outcome: []scriptedOutcome{
		{dec: Decision{Allowed: false, DecaysAt: time.Now().Add(time.Minute)}},
	}}
}

func denyThenAllow(denials int) *scriptedLimiter {
	decaysAt := time.Now().Add(time.Minute)
	s := &scriptedLimiter{}
	for i := 0; i < denials; i++ {
		s.outcome = append(s.outcome, scriptedOutcome{dec: Decision{Allowed: false, DecaysAt: decaysAt}})
	}
	s.outcome = append(s.outcome, scriptedOutcome{dec: Decision{Allowed: true, Remaining: 1, DecaysAt: decaysAt}})
	return s
}

func (s *scriptedLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.outcome) {
		i = len(s.outcome) - 1
	}
	s.calls++
	return s.outcome[i].dec, s.outcome[i].err
}

func (s *scriptedLimiter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestWaiter_Defaults(t *testing.T) {
	w := NewWaiter(NewMemoryLimiter())
	assert.Equal(t, int64(DefaultMax), w.limit.Max)
	assert.Equal(t, DefaultWindow, w.limit.Window)
	assert.Equal(t, DefaultWaitTimeout, w.waitTimeout)
	assert.Equal(t, DefaultPollInterval, w.pollInterval)
}

func TestWaiter_SingleAttemptNoWait(t *testing.T) {
	s := denyThenAllow(5)
	w := NewWaiter(s, WithWaitTimeout(0))
	id := Identity{Namespace: "w", Key: "k"}

	dec, err := w.Acquire(context.Background(), id)
	require.NoError(t, err, "a rejected single attempt is a result, not an error")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 1, s.callCount(), "no retries without a wait budget")

	granted, err := w.Do(context.Background(), id, nil, nil)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestWaiter_GrantsAfterRetries(t *testing.T) {
	s := denyThenAllow(2)
	w := NewWaiter(s,
		WithWaitTimeout(time.Second),
		WithPollInterval(5*time.Millisecond),
	)

	dec, err := w.Acquire(context.Background(), Identity{Namespace: "w", Key: "k"})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 3, s.callCount(), "each cycle performs a fresh attempt")
}

func TestWaiter_Timeout(t *testing.T) {
	s := alwaysDeny()
	w := NewWaiter(s,
		WithWaitTimeout(60*time.Millisecond),
		WithPollInterval(10*time.Millisecond),
	)

	dec, err := w.Acquire(context.Background(), Identity{Namespace: "w", Key: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.False(t, dec.Allowed)

	var waitErr *WaitTimeoutError
	require.ErrorAs(t, err, &waitErr)
	assert.False(t, waitErr.Last.Allowed, "the last observed outcome rides along")
	assert.False(t, waitErr.Last.DecaysAt.IsZero())
	assert.GreaterOrEqual(t, waitErr.Elapsed, 60*time.Millisecond)
	assert.GreaterOrEqual(t, s.callCount(), 2)
}

func TestWaiter_StoreErrorNotRetried(t *testing.T) {
	s := &scriptedLimiter{outcome: []scriptedOutcome{
		{err: &StoreError{Err: errors.New("connection refused")}},
	}}
	w := NewWaiter(s,
		WithWaitTimeout(time.Second),
		WithPollInterval(time.Millisecond),
	)

	exhaustedCalled := false
	granted, err := w.Do(context.Background(), Identity{Namespace: "w", Key: "k"},
		nil,
		func(ctx context.Context, dec Decision) error {
			exhaustedCalled = true
			return nil
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, granted)
	assert.Equal(t, 1, s.callCount(), "infrastructure failures are not retried")
	assert.False(t, exhaustedCalled, "store failures bypass the exhausted continuation")
}

func TestWaiter_DoContinuations(t *testing.T) {
	id := Identity{Namespace: "w", Key: "k"}

	t.Run("GrantedResult", func(t *testing.T) {
		sentinel := errors.New("delivery failed")
		w := NewWaiter(denyThenAllow(0), WithWaitTimeout(time.Second), WithPollInterval(time.Millisecond))

		granted, err := w.Do(context.Background(), id,
			func(ctx context.Context, dec Decision) error { return sentinel },
			nil)
		assert.True(t, granted)
		assert.ErrorIs(t, err, sentinel, "the continuation's result is the overall result")
	})

	t.Run("ExhaustedOwnsTheOutcome", func(t *testing.T) {
		sentinel := errors.New("dropped")
		w := NewWaiter(alwaysDeny(),
			WithWaitTimeout(20*time.Millisecond), WithPollInterval(5*time.Millisecond))

		var last Decision
		granted, err := w.Do(context.Background(), id,
			nil,
			func(ctx context.Context, dec Decision) error {
				last = dec
				return sentinel
			})
		assert.False(t, granted)
		assert.ErrorIs(t, err, sentinel)
		assert.False(t, errors.Is(err, ErrWaitTimeout), "the continuation replaces the timeout error")
		assert.False(t, last.DecaysAt.IsZero(), "the continuation receives the last outcome")
	})

	t.Run("ExhaustedMaySwallow", func(t *testing.T) {
		w := NewWaiter(alwaysDeny(),
			WithWaitTimeout(20*time.Millisecond), WithPollInterval(5*time.Millisecond))

		granted, err := w.Do(context.Background(), id,
			nil,
			func(ctx context.Context, dec Decision) error { return nil })
		assert.False(t, granted)
		assert.NoError(t, err)
	})
}

func TestWaiter_CallerCancellation(t *testing.T) {
	w := NewWaiter(alwaysDeny(),
		WithWaitTimeout(time.Minute),
		WithPollInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := w.Acquire(ctx, Identity{Namespace: "w", Key: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrWaitTimeout), "caller cancellation is not a limiter timeout")
}

func TestWaiter_RolloverDuringWait(t *testing.T) {
	clk := newFakeClock(testEpoch)
	m := NewMemoryLimiter(WithClock(clk.Now))
	id := Identity{Namespace: "w", Key: "k"}

	w := NewWaiter(m,
		WithMax(1),
		WithWindow(10*time.Second),
		WithWaitTimeout(2*time.Second),
		WithPollInterval(10*time.Millisecond),
	)

	// Consume the only slot of the current window.
	dec, err := w.Acquire(context.Background(), id)
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	// Free capacity mid-wait by rolling the window over.
	go func() {
		time.Sleep(50 * time.Millisecond)
		clk.Advance(11 * time.Second)
	}()

	dec, err = w.Acquire(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, dec.Allowed, "a slot freed before the deadline is eventually granted")
	assert.True(t, dec.DecaysAt.After(testEpoch.Add(10*time.Second)))
}
