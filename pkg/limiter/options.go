package limiter

import "time"

type config struct {
	prefix   string
	timeout  time.Duration
	recorder MetricsRecorder
	now      func() time.Time
}

func defaultConfig() config {
	return config{
		prefix:   "limiter:",
		timeout:  5 * time.Second,
		recorder: &NoOpMetricsRecorder{},
		now:      time.Now,
	}
}

// Option configures a limiter backend.
type Option func(*config)

// WithPrefix sets the prefix prepended to every stored key.
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithTimeout sets the per-call deadline for store operations. It also bounds
// the connectivity check and script load at construction time.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRecorder injects a metrics backend. The default records nothing.
func WithRecorder(r MetricsRecorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithClock replaces the wall-clock source. The clock is sampled once per
// acquisition attempt, at the moment of the call.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}
