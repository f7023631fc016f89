package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/recording"
)

type convertOptions struct {
	Source snapshotSource
	Output string
	Format string
}

var convertFlags convertOptions

var convertCmd = &cobra.Command{
	Use:   "convert [snapshot] -o <output>",
	Short: "Convert a snapshot between JSON and YAML",
	Long: `Rewrite a snapshot in another encoding. The output format follows the
output file extension unless --to is given. YAML output stores binary
payloads as !!binary scalars.

A stored session can be written out to a file with --session.

Examples:
  playback convert fixtures/session.json -o fixtures/session.yaml
  playback convert --session 6f1c... -o exported.json
  playback convert in.yaml -o - --to json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := convertFlags
		if len(args) == 1 {
			opts.Source.Path = args[0]
		}
		return commandError(cmd, runConvert(cmd.Context(), appConfig, opts, cmd, newPrinter(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertFlags.Output, "output", "o", "", "output file, or - for stdout")
	convertCmd.Flags().StringVar(&convertFlags.Format, "to", "", "output format: json, yaml (default: from the output extension)")
	convertCmd.Flags().StringVar(&convertFlags.Source.Session, "session", "", "convert a stored session instead of a file")
}

func runConvert(ctx context.Context, cfg *config.Config, opts convertOptions, cmd *cobra.Command, p *cli.Printer) error {
	if opts.Output == "" {
		return cli.NewConfigError("output", "--output is required")
	}
	snap, err := loadSnapshot(ctx, cfg, opts.Source)
	if err != nil {
		return err
	}

	format := recording.FormatFromPath(opts.Output)
	if opts.Format != "" {
		if format, err = recording.ParseFormat(opts.Format); err != nil {
			return cli.NewConfigError("to", err.Error())
		}
	}

	if opts.Output == "-" {
		return recording.Encode(cmd.OutOrStdout(), snap, format)
	}
	if err := writeSnapshot(opts.Output, snap, format); err != nil {
		return err
	}
	p.Success("wrote %d recordings to %s (%s)", len(snap.Descriptors), opts.Output, format)
	return nil
}

func writeSnapshot(path string, snap *recording.Snapshot, format recording.Format) error {
	if format == recording.FormatFromPath(path) {
		return recording.Save(path, snap)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := recording.Encode(f, snap, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
