package retention

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/storage"
	"mercator-hq/playback/pkg/telemetry/metrics"
)

func seed(t *testing.T, b storage.Backend, now time.Time, ages map[string]time.Duration) {
	t.Helper()
	store, err := recording.NewStore(recording.StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	store.Put(fingerprint.Build(http.MethodGet, "https://api.example.com/", nil, nil),
		recording.Static(&recording.Response{Status: 204}))
	snap := store.Snapshot()

	for id, age := range ages {
		session := storage.NewSession(id, "", snap)
		session.CreatedAt = now.Add(-age)
		if err := b.Save(context.Background(), session, snap); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPruner_Prune(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name        string
		days        int
		wantDeleted int64
		wantLeft    int
	}{
		{name: "prunes older than retention", days: 7, wantDeleted: 2, wantLeft: 1},
		{name: "long retention keeps all", days: 365, wantDeleted: 0, wantLeft: 3},
		{name: "zero disables pruning", days: 0, wantDeleted: 0, wantLeft: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := storage.NewMemoryBackend()
			seed(t, backend, now, map[string]time.Duration{
				"fresh": day,
				"old":   10 * day,
				"older": 40 * day,
			})

			registry := prometheus.NewRegistry()
			collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, registry)

			pruner := NewPruner(backend, &Config{RetentionDays: tt.days}, collector)
			pruner.now = func() time.Time { return now }

			n, err := pruner.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if n != tt.wantDeleted {
				t.Errorf("Prune() = %d, want %d", n, tt.wantDeleted)
			}

			sessions, _ := backend.Sessions(context.Background())
			if len(sessions) != tt.wantLeft {
				t.Errorf("sessions left = %d, want %d", len(sessions), tt.wantLeft)
			}

			expected := fmt.Sprintf(`
# HELP test_sessions_pruned_total Total number of stored sessions removed by retention
# TYPE test_sessions_pruned_total counter
test_sessions_pruned_total %d
`, tt.wantDeleted)
			if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_sessions_pruned_total"); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestPruner_Cutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	pruner := NewPruner(storage.NewMemoryBackend(), &Config{RetentionDays: 2}, nil)
	pruner.now = func() time.Time { return now }

	cutoff, ok := pruner.Cutoff()
	if !ok {
		t.Fatal("expected retention enabled")
	}
	if want := now.Add(-48 * time.Hour); !cutoff.Equal(want) {
		t.Errorf("Cutoff() = %v, want %v", cutoff, want)
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		days        int
		wantRunning bool
		wantError   bool
	}{
		{name: "valid daily schedule", schedule: "0 3 * * *", days: 30, wantRunning: true},
		{name: "descriptor schedule", schedule: "@every 1h", days: 30, wantRunning: true},
		{name: "empty schedule", schedule: "", days: 30},
		{name: "retention disabled", schedule: "0 3 * * *", days: 0},
		{name: "invalid schedule", schedule: "invalid cron", days: 30, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := NewPruner(storage.NewMemoryBackend(), &Config{
				RetentionDays: tt.days,
				PruneSchedule: tt.schedule,
			}, nil)
			scheduler := NewScheduler(pruner)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := scheduler.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", scheduler.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				next := scheduler.NextRun()
				if next == nil || !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
				scheduler.Stop()
				if scheduler.IsRunning() {
					t.Error("scheduler still running after Stop()")
				}
			}
		})
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryBackend(), &Config{RetentionDays: 1, PruneSchedule: "@every 1h"}, nil)
	scheduler := NewScheduler(pruner)

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler still running after context cancellation")
	}
}
