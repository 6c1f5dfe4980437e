package limiter

import (
	"context"
	"time"
)

type Namespace string

// Limit defines a fixed-window policy: at most Max acquisitions per Window.
//
// Window is truncated to whole seconds and must be at least one second; the
// stored window boundaries are integer seconds.
type Limit struct {
	Max    int64
	Window time.Duration
}

// Decision is the outcome of a single acquisition attempt.
type Decision struct {
	// Allowed reports whether this acquisition fits in the current window.
	Allowed bool
	// Remaining is the capacity left in the current window, floored at zero.
	Remaining int64
	// DecaysAt is the end of the current window. At any time after it a
	// fresh window (with full capacity) is guaranteed to be available.
	DecaysAt time.Time
}

// Identity defines "what" is being rate-limited, split into a logical
// grouping (Namespace) and the identifier within it (Key).
type Identity struct {
	Namespace Namespace
	Key       string
}

func (id Identity) String() string {
	return string(id.Namespace) + ":" + id.Key
}

type RateLimiter interface {
	Allow(ctx context.Context, id Identity, limit Limit) (Decision, error)
}
