package metrics

import (
	"mercator-hq/playback/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ReplayMetrics tracks requests served by replay engines.
type ReplayMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewReplayMetrics creates and registers replay metrics.
func NewReplayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReplayMetrics {
	rm := &ReplayMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "replay_requests_total",
				Help:      "Total number of requests seen by replay engines",
			},
			[]string{"result"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "replay_duration_seconds",
				Help:      "Time spent serving a replayed request",
				Buckets:   cfg.ReplayDurationBuckets,
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.duration)

	return rm
}
