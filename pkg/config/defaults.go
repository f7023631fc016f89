package config

import "time"

// Server modes.
const (
	ServerModeReplay = "replay"
	ServerModeRecord = "record"
)

// Default values for configuration fields.
const (
	// Recorder defaults
	DefaultIdentityFunc = "hashcode"

	// Replay defaults
	DefaultMissPolicy       = "passthrough"
	DefaultDebounceInterval = 100 * time.Millisecond

	// Storage defaults
	DefaultStorageBackend         = "sqlite"
	DefaultSQLitePath             = "data/playback.db"
	DefaultSQLiteDriver           = "sqlite"
	DefaultSQLiteMaxOpenConns     = 10
	DefaultSQLiteMaxIdleConns     = 5
	DefaultSQLiteWALMode          = true
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultRetentionDays          = 30
	DefaultRetentionPruneSchedule = "0 3 * * *"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultServerMode      = ServerModeReplay
	DefaultTargetHeader    = "X-Playback-Target"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Telemetry defaults
	DefaultLoggingLevel      = "info"
	DefaultLoggingFormat     = "text"
	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28
	DefaultMetricsEnabled    = true
	DefaultMetricsPath       = "/metrics"
	DefaultMetricsNamespace  = "playback"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
//
// Fields whose zero value is meaningful (wal_mode, metrics.enabled,
// retention.days) are not touched here; LoadConfig seeds them before
// decoding instead.
func ApplyDefaults(cfg *Config) {
	// Recorder defaults
	if cfg.Recorder.IdentityFunc == "" {
		cfg.Recorder.IdentityFunc = DefaultIdentityFunc
	}

	// Replay defaults
	if cfg.Replay.MissPolicy == "" {
		cfg.Replay.MissPolicy = DefaultMissPolicy
	}
	if cfg.Replay.DebounceInterval == 0 {
		cfg.Replay.DebounceInterval = DefaultDebounceInterval
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Retention.PruneSchedule == "" {
		cfg.Storage.Retention.PruneSchedule = DefaultRetentionPruneSchedule
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.TargetHeader == "" {
		cfg.Server.TargetHeader = DefaultTargetHeader
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.File.MaxSizeMB == 0 {
		cfg.Telemetry.Logging.File.MaxSizeMB = DefaultLogFileMaxSizeMB
	}
	if cfg.Telemetry.Logging.File.MaxBackups == 0 {
		cfg.Telemetry.Logging.File.MaxBackups = DefaultLogFileMaxBackups
	}
	if cfg.Telemetry.Logging.File.MaxAgeDays == 0 {
		cfg.Telemetry.Logging.File.MaxAgeDays = DefaultLogFileMaxAgeDays
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Default returns a configuration with every default applied, including
// the boolean defaults ApplyDefaults cannot set.
func Default() *Config {
	cfg := &Config{}
	seedDefaults(cfg)
	ApplyDefaults(cfg)
	return cfg
}

// seedDefaults sets fields whose zero value is meaningful. It runs before
// YAML decoding so an explicit false or 0 in the file wins.
func seedDefaults(cfg *Config) {
	cfg.Storage.Retention.Days = DefaultRetentionDays
	cfg.Storage.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
}
