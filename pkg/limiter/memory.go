package limiter

import (
	"context"
	"sync"
	"time"
)

type windowState struct {
	start     int64 // unix seconds, window open
	end       int64 // unix seconds, window close (inclusive)
	count     int64
	expiresAt int64 // start + 2*window, mirrors the Redis record TTL
}

// MemoryLimiter is an in-process fixed-window limiter.
//
// It applies the same window semantics as RedisLimiter but keeps state in a
// mutex-guarded map, so its budget is local to the process. Use it in tests,
// local development, and single-instance deployments; use RedisLimiter when
// the budget must hold across replicas.
//
// Of the constructor options only WithClock applies; the store-related ones
// (prefix, timeout, recorder) are ignored.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowState
	now     func() time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter with empty state.
func NewMemoryLimiter(opts ...Option) *MemoryLimiter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryLimiter{
		windows: make(map[string]*windowState),
		now:     cfg.now,
	}
}

// Allow performs one acquisition attempt for the given identity. Each call
// has a fixed cost of 1.
func (m *MemoryLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	if err := limit.validate(); err != nil {
		return Decision{}, err
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now()
	now := float64(t.UnixMicro()) / 1e6
	nowFloor := t.Unix()
	windowSize := int64(limit.Window / time.Second)
	key := id.String()

	st, exists := m.windows[key]
	if exists && now >= float64(st.start) && now <= float64(st.end) {
		st.count++
		remaining := limit.Max - st.count
		if remaining < 0 {
			remaining = 0
		}
		return Decision{
			Allowed:   st.count <= limit.Max,
			Remaining: remaining,
			DecaysAt:  time.Unix(st.end, 0),
		}, nil
	}

	// No record, or a lapsed window: open a fresh one. The opening call is
	// admitted unconditionally, even when Max is 0.
	st = &windowState{
		start:     nowFloor,
		end:       nowFloor + windowSize,
		count:     1,
		expiresAt: nowFloor + 2*windowSize,
	}
	m.windows[key] = st

	remaining := limit.Max - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		DecaysAt:  time.Unix(st.end, 0),
	}, nil
}

// Cleanup evicts entries whose retention period has lapsed.
func (m *MemoryLimiter) Cleanup() {
	nowFloor := m.now().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, st := range m.windows {
		if st.expiresAt <= nowFloor {
			delete(m.windows, k)
		}
	}
}

// StartJanitor runs Cleanup on a ticker until the context is cancelled. It
// stands in for the key expiry Redis provides natively; without it a
// long-lived process accumulates one entry per idle identity.
func (m *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}
