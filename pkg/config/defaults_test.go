package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Recorder.IdentityFunc != DefaultIdentityFunc {
					t.Errorf("expected identity func %q, got %q", DefaultIdentityFunc, cfg.Recorder.IdentityFunc)
				}
				if cfg.Replay.MissPolicy != DefaultMissPolicy {
					t.Errorf("expected miss policy %q, got %q", DefaultMissPolicy, cfg.Replay.MissPolicy)
				}
				if cfg.Replay.DebounceInterval != DefaultDebounceInterval {
					t.Errorf("expected debounce %v, got %v", DefaultDebounceInterval, cfg.Replay.DebounceInterval)
				}
				if cfg.Storage.Backend != DefaultStorageBackend {
					t.Errorf("expected backend %q, got %q", DefaultStorageBackend, cfg.Storage.Backend)
				}
				if cfg.Storage.SQLite.Path != DefaultSQLitePath {
					t.Errorf("expected SQLite path %q, got %q", DefaultSQLitePath, cfg.Storage.SQLite.Path)
				}
				if cfg.Storage.SQLite.Driver != DefaultSQLiteDriver {
					t.Errorf("expected SQLite driver %q, got %q", DefaultSQLiteDriver, cfg.Storage.SQLite.Driver)
				}
				if cfg.Server.ListenAddress != DefaultListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
				}
				if cfg.Server.TargetHeader != DefaultTargetHeader {
					t.Errorf("expected target header %q, got %q", DefaultTargetHeader, cfg.Server.TargetHeader)
				}
				if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
					t.Errorf("expected logging level %q, got %q", DefaultLoggingLevel, cfg.Telemetry.Logging.Level)
				}
				if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
					t.Errorf("expected metrics path %q, got %q", DefaultMetricsPath, cfg.Telemetry.Metrics.Path)
				}
				if cfg.Telemetry.Metrics.Namespace != DefaultMetricsNamespace {
					t.Errorf("expected namespace %q, got %q", DefaultMetricsNamespace, cfg.Telemetry.Metrics.Namespace)
				}
			},
		},
		{
			name: "existing values are preserved",
			input: Config{
				Replay: ReplayConfig{MissPolicy: "fail", DebounceInterval: time.Second},
				Server: ServerConfig{ListenAddress: "0.0.0.0:9000", Mode: "record"},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Replay.MissPolicy != "fail" {
					t.Errorf("expected miss policy fail, got %q", cfg.Replay.MissPolicy)
				}
				if cfg.Replay.DebounceInterval != time.Second {
					t.Errorf("expected debounce 1s, got %v", cfg.Replay.DebounceInterval)
				}
				if cfg.Server.ListenAddress != "0.0.0.0:9000" {
					t.Errorf("expected listen address 0.0.0.0:9000, got %q", cfg.Server.ListenAddress)
				}
				if cfg.Server.Mode != "record" {
					t.Errorf("expected mode record, got %q", cfg.Server.Mode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	first := cfg
	ApplyDefaults(&cfg)

	if cfg.Server != first.Server || cfg.Replay != first.Replay {
		t.Error("ApplyDefaults is not idempotent")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Storage.SQLite.WALMode {
		t.Error("expected WAL mode enabled by default")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Storage.Retention.Days != DefaultRetentionDays {
		t.Errorf("expected retention days %d, got %d", DefaultRetentionDays, cfg.Storage.Retention.Days)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}
