package config

import (
	"testing"
	"time"
)

func TestNewTestConfig(t *testing.T) {
	cfg := NewTestConfig().Build()

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Recorder.IdentityFunc != DefaultIdentityFunc {
		t.Errorf("expected identity func %q, got %q", DefaultIdentityFunc, cfg.Recorder.IdentityFunc)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("test config should be valid, got error: %v", err)
	}
}

func TestConfigBuilder_ChainedCalls(t *testing.T) {
	cfg := NewTestConfig().
		WithListenAddress("0.0.0.0:9090").
		WithMode("record").
		WithMissPolicy("fail").
		WithSnapshot("/tmp/session.yaml", true).
		WithShutdownTimeout(5 * time.Second).
		WithLoggingLevel("debug").
		WithMetricsEnabled(false).
		Build()

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Error("chained WithListenAddress failed")
	}
	if cfg.Server.Mode != "record" {
		t.Error("chained WithMode failed")
	}
	if cfg.Replay.MissPolicy != "fail" {
		t.Error("chained WithMissPolicy failed")
	}
	if cfg.Replay.SnapshotPath != "/tmp/session.yaml" || !cfg.Replay.Watch {
		t.Error("chained WithSnapshot failed")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Error("chained WithShutdownTimeout failed")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Error("chained WithLoggingLevel failed")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("chained WithMetricsEnabled failed")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("chained config should be valid, got error: %v", err)
	}
}

func TestConfigBuilder_WithSQLite(t *testing.T) {
	tests := []struct {
		name   string
		driver string
	}{
		{name: "pure go driver", driver: "sqlite"},
		{name: "cgo driver", driver: "sqlite3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig().WithSQLite("/tmp/p.db", tt.driver).Build()
			if cfg.Storage.Backend != "sqlite" {
				t.Errorf("expected backend sqlite, got %q", cfg.Storage.Backend)
			}
			if cfg.Storage.SQLite.Driver != tt.driver {
				t.Errorf("expected driver %q, got %q", tt.driver, cfg.Storage.SQLite.Driver)
			}
			if err := Validate(cfg); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
