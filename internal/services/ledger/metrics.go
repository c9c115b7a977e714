package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// MetricsCollector records ledger activity. Implementations must be safe for
// concurrent use.
type MetricsCollector interface {
	RecordOperation(kind string, amount decimal.Decimal)
	RecordError(operation, reason string)
}

// NoopMetricsCollector is used in tests and when metrics are disabled.
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperation(kind string, amount decimal.Decimal) {}
func (n *NoopMetricsCollector) RecordError(operation, reason string)                {}

// PrometheusCollector exports ledger counters.
type PrometheusCollector struct {
	operations *prometheus.CounterVec
	volume     *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger mutations by kind.",
		}, []string{"kind"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_volume_naira_total",
			Help: "Total naira moved by kind.",
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Ledger errors by operation and reason.",
		}, []string{"operation", "reason"}),
	}
	reg.MustRegister(c.operations, c.volume, c.errors)
	return c
}

func (c *PrometheusCollector) RecordOperation(kind string, amount decimal.Decimal) {
	c.operations.WithLabelValues(kind).Inc()
	f, _ := amount.Float64()
	c.volume.WithLabelValues(kind).Add(f)
}

func (c *PrometheusCollector) RecordError(operation, reason string) {
	c.errors.WithLabelValues(operation, reason).Inc()
}
