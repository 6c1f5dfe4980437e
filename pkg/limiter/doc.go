// Package limiter provides local and distributed rate limiting based on a
// fixed-window counter.
//
// The primary entry point is the RateLimiter interface:
//
//	dec, err := limiter.Allow(ctx, id, limit)
//
// The returned Decision contains whether the acquisition is allowed, how much
// capacity remains in the current window, and when the window decays (at
// which point a fresh window with full capacity is guaranteed).
//
// # Overview
//
// This package implements a fixed window:
//
//   - Each identity has a window of Limit.Window length, opened by the first
//     acquisition and anchored to the whole second of that call.
//   - Every acquisition within the window increments a shared counter; the
//     first Limit.Max acquisitions are allowed, the rest are denied.
//   - An acquisition after the window has lapsed opens a fresh window and is
//     admitted unconditionally (it is the window-opening call, counted as 1).
//
// Fixed windows are simple and cheap: one counter per identity, one atomic
// store operation per decision, and a predictable reset instant that can be
// surfaced to callers (Decision.DecaysAt). The known trade-off is the window
// boundary: two adjacent windows can together admit up to twice the budget
// right at the boundary. If you need smoothing, a different algorithm (GCRA,
// token bucket) is a better fit; this package deliberately does not provide
// one.
//
// Note the corner case that follows from treating window-opening as distinct
// from capacity-checking: with Max = 0 the call that opens a fresh window is
// still allowed, and every subsequent call in that window is denied.
//
// # Core Types
//
// Limit defines the policy:
//
//   - Max: acquisitions admitted per window
//   - Window: the window length (whole seconds, at least one second)
//
// Identity defines "what" is being rate-limited. It is split into:
//
//   - Namespace: a logical grouping (for example, "user", "ip", "tenant")
//   - Key: the identifier within that namespace (for example, "user_123")
//
// # Backends
//
// The package provides two implementations with the same Allow API:
//
//   - MemoryLimiter: an in-process limiter backed by a Go map. This is useful
//     for unit tests, local development, and single-instance deployments.
//     Because its state is local to the process, it does not enforce a global
//     limit across multiple replicas.
//
//   - RedisLimiter: a distributed limiter backed by Redis. It uses a Lua
//     script to perform the existence check, the window comparison, and the
//     conditional increment as one atomic evaluation, which makes it safe to
//     use across many application instances while enforcing a single global
//     budget per identity. Concurrent acquirers racing for the last slots of
//     a window serialize inside Redis: with M slots remaining and N > M
//     racers, exactly M win.
//
// # Waiting for a Slot
//
// Waiter layers blocking-retry semantics on top of any RateLimiter: it
// re-attempts a rejected acquisition on a fixed poll interval until a slot is
// granted or a wait budget is spent, then either returns the Decision
// (Acquire) or dispatches to granted/exhausted continuations (Do). A wait
// timeout of zero disables waiting entirely and turns a rejection into a
// plain (false, nil) result from Do.
//
// # Concurrency
//
// MemoryLimiter is safe for concurrent use by multiple goroutines (it uses a
// mutex to protect its internal map and per-identity state). RedisLimiter
// delegates concurrency safety to Redis and the go-redis client. Waiter holds
// no state between attempts and may be shared freely; while it sleeps between
// attempts it holds no lock, no transaction, and no connection.
//
// # Context and Error Policy
//
// Allow accepts a context.Context. RedisLimiter passes this context through
// to Redis operations so callers can enforce deadlines and cancel work to
// avoid cascading failures during partial outages.
//
// Infrastructure failures are never reported as "denied": if the script
// cannot be evaluated, Allow returns a *StoreError
// (errors.Is(err, ErrStoreUnavailable)) and the caller decides whether to
// fail open or closed. Waiter does not retry store errors; they surface
// immediately, bypassing the exhausted continuation.
//
// # Decision Semantics
//
// Decision fields are intended to be directly consumable by application code:
//
//   - Allowed reports whether the current acquisition is permitted.
//   - Remaining is the capacity left in the current window after this
//     decision, floored at zero.
//   - DecaysAt is the end of the current window; it is identical across all
//     decisions within one window, which makes it suitable for Retry-After
//     style headers.
//
// # Storage Details
//
// RedisLimiter stores one hash per identity under keys prefixed with
// "limiter:" (configurable via WithPrefix), with three fields:
//
//   - "window_start": whole second at which the window opened
//   - "window_end": window_start plus the window length
//   - "count": acquisitions recorded in the window, including the opener
//
// Both window bounds are inclusive: a call landing exactly on "window_end"
// still counts against that window. Keys expire after twice the window
// length, so identities that stop sending traffic are reclaimed without any
// cleanup pass, while the record outlives the window long enough for
// late-arriving calls in the same logical window to observe it.
//
// # Limitations and Notes
//
//   - MemoryLimiter keeps one entry per identity; for long-lived processes
//     with high-cardinality keys, start its janitor (StartJanitor) to evict
//     lapsed entries on the same 2x-window retention Redis applies.
//   - RedisLimiter requires a reachable Redis instance and returns errors
//     directly; callers must decide their availability vs protection
//     tradeoff.
//   - Each Allow call has a fixed cost of 1.
//   - RedisLimiter uses EVALSHA and falls back to EVAL (repopulating the
//     script cache) if Redis was restarted and the cache is empty.
//
// # Configuration
//
// Both backends are configured using the Functional Options pattern:
//
//	lim, _ := NewRedisLimiter(client,
//		WithPrefix("myapp:rate:"),
//		WithTimeout(2*time.Second),
//		WithRecorder(myMetrics),
//	)
//
// Supported options:
//
//   - WithPrefix(string): Sets the key prefix (default "limiter:").
//   - WithTimeout(time.Duration): Sets the context timeout for Redis
//     operations (default 5s).
//   - WithRecorder(MetricsRecorder): Injects a custom metrics backend.
//     PrometheusRecorder adapts the seam to a Prometheus registry.
//   - WithClock(func() time.Time): Replaces the wall-clock source, mainly
//     for tests.
package limiter
