// Package metrics defines the prometheus instrumentation surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	UpstreamErrors    prometheus.Counter
	ArtifactsStored   prometheus.Counter
	ArtifactsReleased prometheus.Counter
	ArtifactsSwept    prometheus.Counter
}

// New registers all collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsbridge_requests_total",
			Help: "HTTP requests handled, by route and status code.",
		}, []string{"route", "status"}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsbridge_upstream_errors_total",
			Help: "Failed calls to the inference server.",
		}),
		ArtifactsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsbridge_artifacts_stored_total",
			Help: "Uploaded artifacts persisted by the store.",
		}),
		ArtifactsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsbridge_artifacts_released_total",
			Help: "Artifacts released after consumption.",
		}),
		ArtifactsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsbridge_artifacts_swept_total",
			Help: "Expired artifacts removed by purge sweeps.",
		}),
	}
}
