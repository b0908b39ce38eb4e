// Package metrics exports strata pipeline activity as Prometheus metrics.
// A Collector is installed on a registry with strata.WithObserver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zoobzio/strata"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Collector records transformation calls.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry. An empty
// namespace defaults to "strata".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "strata"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "operations_total",
			Help:      "Total number of transformation calls",
		},
		[]string{"entity", "field", "transformation", "operation", "status"},
	)

	c.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Time taken by a transformation call",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		},
		[]string{"transformation", "operation"},
	)

	c.registry.MustRegister(c.operations, c.duration)
	return c
}

// ObserveTransform implements strata.Observer.
func (c *Collector) ObserveTransform(op strata.Operation, entity, field, transformation string, d time.Duration, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	c.operations.WithLabelValues(entity, field, transformation, string(op), status).Inc()
	c.duration.WithLabelValues(transformation, string(op)).Observe(d.Seconds())
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
