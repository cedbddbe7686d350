// Package metrics exposes Prometheus instrumentation for ledger
// operations and a decorator that wraps a ledger backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the ledger metric families on a private registry.
type Collector struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	balances   *prometheus.GaugeVec
}

// NewCollector registers the ledger metric families.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		operations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by name and outcome",
		}, []string{"op", "outcome"}),
		duration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time taken by ledger operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		balances: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_account_balance",
			Help: "Account balances in minor units",
		}, []string{"account_id", "kind"}),
	}
}

// RecordOperation counts one ledger call and observes its duration.
func (c *Collector) RecordOperation(op string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.operations.WithLabelValues(op, outcome).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// SetBalances publishes the latest known balances for an account.
func (c *Collector) SetBalances(accountID string, balance, reserved int64) {
	c.balances.WithLabelValues(accountID, "spendable").Set(float64(balance))
	c.balances.WithLabelValues(accountID, "reserved").Set(float64(reserved))
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
