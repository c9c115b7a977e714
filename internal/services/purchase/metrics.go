package purchase

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector records purchase outcomes. Implementations must be safe
// for concurrent use.
type MetricsCollector interface {
	RecordOutcome(kind, network, status string)
	RecordProviderLatency(endpoint string, ms float64)
}

// NoopMetricsCollector is used in tests and when metrics are disabled.
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOutcome(kind, network, status string)        {}
func (n *NoopMetricsCollector) RecordProviderLatency(endpoint string, ms float64) {}

// PrometheusCollector exports purchase counters.
type PrometheusCollector struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "purchase_outcomes_total",
			Help: "Purchase settlements by kind, network and resulting status.",
		}, []string{"kind", "network", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "purchase_provider_latency_ms",
			Help:    "Provider round-trip latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}, []string{"endpoint"}),
	}
	reg.MustRegister(c.outcomes, c.latency)
	return c
}

func (c *PrometheusCollector) RecordOutcome(kind, network, status string) {
	c.outcomes.WithLabelValues(kind, network, status).Inc()
}

func (c *PrometheusCollector) RecordProviderLatency(endpoint string, ms float64) {
	c.latency.WithLabelValues(endpoint).Observe(ms)
}
