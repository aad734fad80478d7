// Package metrics exposes Prometheus instrumentation for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors used by the ingestion pipeline.
type Metrics struct {
	IngestEvents   *prometheus.CounterVec
	IngestFailures *prometheus.CounterVec
}

// New registers and returns the pipeline collectors on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use their own
// registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_ingest_events_total",
			Help: "Ingested webhook events by event type and outcome reason.",
		}, []string{"type", "reason"}),
		IngestFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_ingest_failures_total",
			Help: "Webhook events that failed ingestion, by failure kind.",
		}, []string{"kind"}),
	}
}
