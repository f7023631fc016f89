package metrics

import (
	"time"

	"mercator-hq/playback/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Replay results.
const (
	ResultHit         = "hit"
	ResultFallback    = "fallback"
	ResultPassThrough = "passthrough"
	ResultMiss        = "miss"
)

// Collision sources.
const (
	SourceRecord = "record"
	SourceReplay = "replay"
)

// Collector owns the registry and every metric of the process.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	recordMetrics *RecordMetrics
	replayMetrics *ReplayMetrics
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil a new one is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "playback",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.ReplayDurationBuckets) == 0 {
		// Replays are served from memory, misses may go to the network.
		cfg.ReplayDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		recordMetrics: NewRecordMetrics(cfg, registry),
		replayMetrics: NewReplayMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRecording counts a response committed by a recorder.
func (c *Collector) RecordRecording(identityFunc string) {
	if !c.enabled() {
		return
	}
	c.recordMetrics.recordingsTotal.WithLabelValues(identityFunc).Inc()
}

// RecordCollision counts an identity collision.
func (c *Collector) RecordCollision(source string) {
	if !c.enabled() {
		return
	}
	c.recordMetrics.collisionsTotal.WithLabelValues(source).Inc()
}

// RecorderStarted increments the active recorder gauge.
func (c *Collector) RecorderStarted() {
	if !c.enabled() {
		return
	}
	c.recordMetrics.activeRecorders.Inc()
}

// RecorderStopped decrements the active recorder gauge.
func (c *Collector) RecorderStopped() {
	if !c.enabled() {
		return
	}
	c.recordMetrics.activeRecorders.Dec()
}

// RecordReplay counts a replayed request and its duration.
func (c *Collector) RecordReplay(result string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.replayMetrics.requestsTotal.WithLabelValues(result).Inc()
	c.replayMetrics.duration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordPruned counts sessions removed by retention.
func (c *Collector) RecordPruned(n int64) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.recordMetrics.sessionsPruned.Add(float64(n))
}
