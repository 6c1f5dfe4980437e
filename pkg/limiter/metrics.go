package limiter

// MetricsRecorder receives counters and timing observations from a limiter.
// Emitted series:
//
//   - "ratelimit.call" (counter): one per acquisition attempt
//   - "ratelimit.denied" (counter): one per rejected acquisition
//   - "ratelimit.latency" (histogram): store round-trip time in seconds
//
// Tags currently carry the identity's namespace.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
