package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/storage"
	"mercator-hq/playback/pkg/storage/retention"
)

var pruneFlags struct {
	days   int
	dryRun bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stored sessions older than the retention period",
	Long: `Remove sessions older than storage.retention.days (or --days) from the
configured storage backend. "serve" runs the same pruning on the
storage.retention.prune_schedule cron schedule.

Examples:
  playback prune
  playback prune --days 7 --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		if cmd.Flags().Changed("days") {
			cfg.Storage.Retention.Days = pruneFlags.days
		}
		return commandError(cmd, runPrune(cmd.Context(), &cfg, pruneFlags.dryRun, newPrinter(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().IntVar(&pruneFlags.days, "days", 0, "retention period in days (overrides config)")
	pruneCmd.Flags().BoolVar(&pruneFlags.dryRun, "dry-run", false, "list the sessions that would be removed")
}

func runPrune(ctx context.Context, cfg *config.Config, dryRun bool, p *cli.Printer) error {
	if cfg.Storage.Retention.Days <= 0 {
		return cli.NewConfigError("storage.retention.days", "must be positive to prune")
	}
	backend, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	pruner := retention.NewPruner(backend, retention.ConfigFrom(cfg.Storage.Retention), nil)
	cutoff, _ := pruner.Cutoff()

	if dryRun {
		sessions, err := backend.Sessions(ctx)
		if err != nil {
			return err
		}
		stale := 0
		for _, s := range sessions {
			if s.CreatedAt.Before(cutoff) {
				stale++
				p.Detail(s.ID, s.CreatedAt.Local().Format(time.DateTime))
			}
		}
		p.Warn("%d sessions older than %s would be removed", stale, cutoff.Local().Format(time.DateTime))
		return nil
	}

	removed, err := pruner.Prune(ctx)
	if err != nil {
		return err
	}
	p.Success("removed %d sessions older than %s", removed, cutoff.Local().Format(time.DateTime))
	return nil
}
