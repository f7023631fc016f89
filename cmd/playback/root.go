package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	noColor  bool

	// Set by the persistent pre-run of every command.
	appConfig *config.Config
	appLogger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "playback",
	Short: "Record and replay HTTP traffic",
	Long: `Playback records outgoing HTTP requests and their responses into snapshot
files and replays them later without touching the network.

Snapshots are JSON or YAML files (or sessions in the local SQLite store)
keyed by a request identity. HAR archives exported from browsers can be
imported, and snapshots exported back to HAR.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			appLogger.Close()
		}
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		cli.NewPrinter(os.Stderr).Fail("%v", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// setup loads configuration and installs the default logger.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Logger)

	appConfig = cfg
	appLogger = logger
	return nil
}

func newPrinter(cmd *cobra.Command) *cli.Printer {
	p := cli.NewPrinter(cmd.OutOrStdout())
	if noColor {
		p.DisableColor()
	}
	return p
}

func commandError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	return cli.NewCommandError(cmd.Name(), err)
}

func formatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", string(cli.FormatText), "output format: text, json, yaml")
}

func requireArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%s requires %s", cmd.Name(), what)
		}
		return nil
	}
}
