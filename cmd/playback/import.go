package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/har"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/telemetry/logging"
)

type importOptions struct {
	Inputs           []string
	Output           string
	Store            bool
	Name             string
	IdentityFunc     string
	IgnoreCollisions bool
	Progress         bool
}

var importFlags importOptions

var importCmd = &cobra.Command{
	Use:   "import <file.har>...",
	Short: "Convert HAR archives into a snapshot",
	Long: `Convert one or more HAR archives into a single snapshot.

Entries without a request URL or a response are skipped and reported.
When several entries map to the same identity the later one wins; the
collision is logged unless --ignore-collisions is set.

Examples:
  # Write a JSON snapshot
  playback import session.har -o session.json

  # Merge two archives into a YAML snapshot keyed by method and URL
  playback import a.har b.har -o merged.yaml --identity-func url-method

  # Store the result as a session in the local database
  playback import session.har --store --name checkout-flow`,
	Args: requireArgs(1, "at least one HAR file"),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := importFlags
		opts.Inputs = args
		if !cmd.Flags().Changed("identity-func") {
			opts.IdentityFunc = appConfig.Recorder.IdentityFunc
		}
		return commandError(cmd, runImport(cmd.Context(), appConfig, opts, newPrinter(cmd), cmd.ErrOrStderr()))
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFlags.Output, "output", "o", "", "snapshot file to write (.json, .yaml, .yml)")
	importCmd.Flags().BoolVar(&importFlags.Store, "store", false, "save the snapshot as a session in the configured storage")
	importCmd.Flags().StringVar(&importFlags.Name, "name", "", "session name (with --store)")
	importCmd.Flags().StringVar(&importFlags.IdentityFunc, "identity-func", config.DefaultIdentityFunc, "identity function: hashcode, url-method, ignore-query")
	importCmd.Flags().BoolVar(&importFlags.IgnoreCollisions, "ignore-collisions", false, "do not log identity collisions")
	importCmd.Flags().BoolVar(&importFlags.Progress, "progress", false, "show a progress bar while reading archives")
}

// importResult summarises an import.
type importResult struct {
	SessionID  string
	Entries    int
	Recordings int
	Skipped    []*har.MalformedEntryError
}

func runImport(ctx context.Context, cfg *config.Config, opts importOptions, p *cli.Printer, progressOut io.Writer) error {
	if opts.Output == "" && !opts.Store {
		return cli.NewConfigError("output", "either --output or --store is required")
	}

	result, snap, err := importHAR(cfg, opts, progressOut)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err := recording.Save(opts.Output, snap); err != nil {
			return err
		}
		p.Success("wrote %d recordings to %s", result.Recordings, opts.Output)
	}
	if opts.Store {
		result.SessionID = uuid.New().String()
		if err := saveSession(ctx, cfg, result.SessionID, opts.Name, snap); err != nil {
			return err
		}
		p.Success("stored session %s (%d recordings)", result.SessionID, result.Recordings)
	}

	for _, skipped := range result.Skipped {
		p.Warn("skipped %v", skipped)
	}
	p.Detail("entries", result.Entries)
	p.Detail("recordings", result.Recordings)
	p.Detail("skipped", len(result.Skipped))
	return nil
}

func importHAR(cfg *config.Config, opts importOptions, progressOut io.Writer) (*importResult, *recording.Snapshot, error) {
	var progress cli.ProgressReporter = cli.NopProgress{}
	if opts.Progress {
		progress = cli.NewProgressReporter(progressOut, "reading")
	}

	merged := &har.File{}
	progress.Start(len(opts.Inputs))
	for i, path := range opts.Inputs {
		f, err := har.ParseFile(path)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			merged.Log.Version = f.Log.Version
			merged.Log.Creator = f.Log.Creator
		}
		merged.Log.Entries = append(merged.Log.Entries, f.Log.Entries...)
		progress.Update(i + 1)
	}
	progress.Finish()

	res, err := har.ToSnapshot(merged, har.ImportOptions{
		IdentityFunc:     opts.IdentityFunc,
		IgnoreCollisions: opts.IgnoreCollisions,
		Redactor:         logging.NewRedactor(cfg.Telemetry.Logging.RedactPatterns),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("importing har: %w", err)
	}

	return &importResult{
		Entries:    len(merged.Log.Entries),
		Recordings: len(res.Snapshot.Descriptors),
		Skipped:    res.Skipped,
	}, res.Snapshot, nil
}
