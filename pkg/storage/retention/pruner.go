// Package retention removes stored sessions older than a configured age,
// either on demand or on a cron schedule.
package retention

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/storage"
	"mercator-hq/playback/pkg/telemetry/metrics"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain sessions.
	// 0 means keep sessions forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// ConfigFrom maps the storage.retention section onto a Config.
func ConfigFrom(cfg config.RetentionConfig) *Config {
	return &Config{RetentionDays: cfg.Days, PruneSchedule: cfg.PruneSchedule}
}

// Pruner enforces the retention policy on a storage backend.
type Pruner struct {
	backend storage.Backend
	config  *Config
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new retention pruner. collector may be nil.
func NewPruner(backend storage.Backend, cfg *Config, collector *metrics.Collector) *Pruner {
	if cfg == nil {
		cfg = ConfigFrom(config.Default().Storage.Retention)
	}
	return &Pruner{
		backend: backend,
		config:  cfg,
		metrics: collector,
		logger:  slog.Default().With("component", "storage.retention"),
		now:     time.Now,
	}
}

// Cutoff returns the creation time before which sessions are pruned, and
// false when retention is disabled.
func (p *Pruner) Cutoff() (time.Time, bool) {
	if p.config.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return p.now().Add(-time.Duration(p.config.RetentionDays) * 24 * time.Hour), true
}

// Prune deletes sessions older than the retention period and returns how
// many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff, ok := p.Cutoff()
	if !ok {
		p.logger.Debug("retention disabled, skipping prune")
		return 0, nil
	}

	n, err := p.backend.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.metrics.RecordPruned(n)
	p.logger.Info("retention prune completed",
		"deleted_count", n,
		"retention_days", p.config.RetentionDays,
		"cutoff", cutoff,
	)
	return n, nil
}
