package limiter

import "github.com/prometheus/client_golang/prometheus"

// PrometheusRecorder adapts the MetricsRecorder seam to a Prometheus
// registry. Metric names are fixed; the "namespace" tag becomes a label.
type PrometheusRecorder struct {
	calls   *prometheus.CounterVec
	denied  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusRecorder builds the collectors and registers them with reg.
// Registering two recorders with the same registry fails with
// prometheus.AlreadyRegisteredError.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_calls_total",
			Help: "Total number of acquisition attempts.",
		}, []string{"namespace"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_denied_total",
			Help: "Total number of rejected acquisitions.",
		}, []string{"namespace"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ratelimit_latency_seconds",
			Help:    "Store round-trip time per acquisition attempt.",
			Buckets: prometheus.DefBuckets,
		}, []string{"namespace"}),
	}
	for _, c := range []prometheus.Collector{r.calls, r.denied, r.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add implements MetricsRecorder.
func (r *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	switch name {
	case "ratelimit.call":
		r.calls.With(prometheus.Labels{"namespace": tags["namespace"]}).Add(value)
	case "ratelimit.denied":
		r.denied.With(prometheus.Labels{"namespace": tags["namespace"]}).Add(value)
	}
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	if name == "ratelimit.latency" {
		r.latency.With(prometheus.Labels{"namespace": tags["namespace"]}).Observe(value)
	}
}
