package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/playback/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "playback",
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if len(cfg.ReplayDurationBuckets) == 0 {
		t.Error("default buckets not applied")
	}
}

func TestCollector_Counters(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecordRecording("hashcode")
	collector.RecordRecording("hashcode")
	collector.RecordCollision(SourceRecord)
	collector.RecordReplay(ResultHit, time.Millisecond)
	collector.RecordReplay(ResultMiss, time.Millisecond)
	collector.RecordReplay(ResultMiss, time.Millisecond)
	collector.RecordPruned(3)

	if got := testutil.ToFloat64(collector.recordMetrics.recordingsTotal.WithLabelValues("hashcode")); got != 2 {
		t.Errorf("recordings_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.recordMetrics.collisionsTotal.WithLabelValues(SourceRecord)); got != 1 {
		t.Errorf("collisions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.replayMetrics.requestsTotal.WithLabelValues(ResultMiss)); got != 2 {
		t.Errorf("replay_requests_total{miss} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.recordMetrics.sessionsPruned); got != 3 {
		t.Errorf("sessions_pruned_total = %v, want 3", got)
	}
}

func TestCollector_ActiveRecorders(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RecorderStarted()
	collector.RecorderStarted()
	collector.RecorderStopped()

	if got := testutil.ToFloat64(collector.recordMetrics.activeRecorders); got != 1 {
		t.Errorf("active_recorders = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	collector.RecordRecording("hashcode")

	if got := testutil.ToFloat64(collector.recordMetrics.recordingsTotal.WithLabelValues("hashcode")); got != 0 {
		t.Errorf("recordings_total = %v with metrics disabled", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector
	collector.RecordRecording("hashcode")
	collector.RecordReplay(ResultHit, time.Second)
	collector.RecorderStarted()
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordReplay(ResultHit, time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_playback_replay_requests_total") {
		t.Errorf("metrics output missing replay counter:\n%s", rec.Body.String())
	}
}
