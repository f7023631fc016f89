package metrics

import (
	"mercator-hq/playback/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordMetrics tracks recorder and storage activity.
type RecordMetrics struct {
	recordingsTotal *prometheus.CounterVec
	collisionsTotal *prometheus.CounterVec
	activeRecorders prometheus.Gauge
	sessionsPruned  prometheus.Counter
}

// NewRecordMetrics creates and registers recording metrics.
func NewRecordMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RecordMetrics {
	rm := &RecordMetrics{
		recordingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "recordings_total",
				Help:      "Total number of responses committed by recorders",
			},
			[]string{"identity_func"},
		),

		collisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "collisions_total",
				Help:      "Total number of distinct requests that mapped to an existing identity",
			},
			[]string{"source"},
		),

		activeRecorders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_recorders",
				Help:      "Number of recorders currently started",
			},
		),

		sessionsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_pruned_total",
				Help:      "Total number of stored sessions removed by retention",
			},
		),
	}

	registry.MustRegister(
		rm.recordingsTotal,
		rm.collisionsTotal,
		rm.activeRecorders,
		rm.sessionsPruned,
	)

	return rm
}
