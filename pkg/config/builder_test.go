package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.Storage.Backend = "memory"
	return &ConfigBuilder{cfg: *cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithMode sets the server mode.
func (b *ConfigBuilder) WithMode(mode string) *ConfigBuilder {
	b.cfg.Server.Mode = mode
	return b
}

// WithMissPolicy sets the replay miss policy.
func (b *ConfigBuilder) WithMissPolicy(policy string) *ConfigBuilder {
	b.cfg.Replay.MissPolicy = policy
	return b
}

// WithSnapshot sets the replay snapshot path.
func (b *ConfigBuilder) WithSnapshot(path string, watch bool) *ConfigBuilder {
	b.cfg.Replay.SnapshotPath = path
	b.cfg.Replay.Watch = watch
	return b
}

// WithSQLite selects the SQLite backend.
func (b *ConfigBuilder) WithSQLite(path, driver string) *ConfigBuilder {
	b.cfg.Storage.Backend = "sqlite"
	b.cfg.Storage.SQLite.Path = path
	b.cfg.Storage.SQLite.Driver = driver
	return b
}

// WithRetention sets the retention policy.
func (b *ConfigBuilder) WithRetention(days int, schedule string) *ConfigBuilder {
	b.cfg.Storage.Retention.Days = days
	b.cfg.Storage.Retention.PruneSchedule = schedule
	return b
}

// WithShutdownTimeout sets the server shutdown timeout.
func (b *ConfigBuilder) WithShutdownTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Server.ShutdownTimeout = d
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithMetricsEnabled enables or disables metrics.
func (b *ConfigBuilder) WithMetricsEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Telemetry.Metrics.Enabled = enabled
	return b
}
