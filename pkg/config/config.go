package config

import "time"

// Config is the root configuration structure for playback.
// It contains the recorder, replay engine, session storage, proxy server
// and telemetry settings.
type Config struct {
	// Recorder contains recording settings used by the record proxy and
	// by tools that build snapshots.
	Recorder RecorderConfig `yaml:"recorder"`

	// Replay contains replay engine settings including the snapshot source
	// and the miss policy.
	Replay ReplayConfig `yaml:"replay"`

	// Storage contains session storage configuration including backend
	// selection and retention.
	Storage StorageConfig `yaml:"storage"`

	// Server contains configuration for the replay/record proxy server.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RecorderConfig contains recording configuration.
type RecorderConfig struct {
	// IdentityFunc names the identity function used to key recordings.
	// Options: "hashcode", "url-method", "ignore-query"
	// Default: "hashcode"
	IdentityFunc string `yaml:"identity_func"`

	// IgnoreCollisions suppresses identity collision diagnostics.
	// Default: false
	IgnoreCollisions bool `yaml:"ignore_collisions"`

	// OutputPath is where the record proxy writes its snapshot on shutdown.
	// The format follows the extension (.json, .yaml, .yml).
	// Empty means the session is only saved to storage.
	OutputPath string `yaml:"output_path"`
}

// ReplayConfig contains replay engine configuration.
type ReplayConfig struct {
	// SnapshotPath is the snapshot file served by the replay proxy.
	// HAR files (.har) are imported on load.
	SnapshotPath string `yaml:"snapshot_path"`

	// Session loads the snapshot from storage instead of a file.
	Session string `yaml:"session"`

	// MissPolicy decides what happens to requests with no recording.
	// Options: "passthrough", "fail"
	// Default: "passthrough"
	MissPolicy string `yaml:"miss_policy"`

	// IgnoreCollisions suppresses collision diagnostics while building the
	// replay table.
	// Default: false
	IgnoreCollisions bool `yaml:"ignore_collisions"`

	// Watch reloads the snapshot file when it changes on disk.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events before a reload.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// StorageConfig contains session storage configuration.
type StorageConfig struct {
	// Backend specifies the storage backend for recorded sessions.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/playback.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains retention policy configuration.
type RetentionConfig struct {
	// Days is the number of days to retain sessions.
	// 0 means keep sessions forever (no pruning).
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// ServerConfig contains configuration for the proxy server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// Mode selects what the proxy does with forwarded requests.
	// Options: "replay", "record"
	// Default: "replay"
	Mode string `yaml:"mode"`

	// TargetHeader names the header carrying the upstream URL for requests
	// that are not in absolute-URI form.
	// Default: "X-Playback-Target"
	TargetHeader string `yaml:"target_header"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// File routes log output to a rotating file instead of stderr.
	File LogFileConfig `yaml:"file"`

	// RedactPatterns contains additional redaction patterns applied to
	// diagnostics that include request descriptors.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// LogFileConfig contains rotating log file configuration.
type LogFileConfig struct {
	// Path is the log file. Empty disables file output.
	Path string `yaml:"path"`

	// MaxSizeMB is the size at which the file is rotated.
	// Default: 100
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	// Default: 3
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is the number of days to keep rotated files.
	// Default: 28
	MaxAgeDays int `yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "playback"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	Subsystem string `yaml:"subsystem"`

	// ReplayDurationBuckets defines histogram buckets for replay latency (seconds).
	ReplayDurationBuckets []float64 `yaml:"replay_duration_buckets"`
}
