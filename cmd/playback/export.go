package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/har"
)

type exportOptions struct {
	Source snapshotSource
	Output string
}

var exportFlags exportOptions

var exportCmd = &cobra.Command{
	Use:   "export [snapshot] -o <file.har>",
	Short: "Export a snapshot as a HAR archive",
	Long: `Write a snapshot as a HAR 1.2 archive with one entry per recording.
Importing the archive with the snapshot's identity function yields the
same identities.

Examples:
  playback export fixtures/session.json -o session.har
  playback export --session 6f1c... -o -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := exportFlags
		if len(args) == 1 {
			opts.Source.Path = args[0]
		}
		return commandError(cmd, runExport(cmd.Context(), appConfig, opts, cmd, newPrinter(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFlags.Output, "output", "o", "", "HAR file to write, or - for stdout")
	exportCmd.Flags().StringVar(&exportFlags.Source.Session, "session", "", "export a stored session instead of a file")
}

func runExport(ctx context.Context, cfg *config.Config, opts exportOptions, cmd *cobra.Command, p *cli.Printer) error {
	if opts.Output == "" {
		return cli.NewConfigError("output", "--output is required")
	}
	snap, err := loadSnapshot(ctx, cfg, opts.Source)
	if err != nil {
		return err
	}

	f, err := har.FromSnapshot(snap, har.ExportOptions{
		Creator: har.Creator{Name: "playback", Version: Version},
	})
	if err != nil {
		return err
	}

	if opts.Output == "-" {
		return har.Write(cmd.OutOrStdout(), f)
	}
	out, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	if err := har.Write(out, f); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	p.Success("wrote %d entries to %s", len(f.Log.Entries), opts.Output)
	return nil
}
