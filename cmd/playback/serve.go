package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/recorder"
	"mercator-hq/playback/pkg/recording"
	"mercator-hq/playback/pkg/replay"
	"mercator-hq/playback/pkg/server"
	"mercator-hq/playback/pkg/storage"
	"mercator-hq/playback/pkg/storage/retention"
	"mercator-hq/playback/pkg/telemetry/health"
	"mercator-hq/playback/pkg/telemetry/logging"
	"mercator-hq/playback/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	mode          string
	snapshot      string
	session       string
	output        string
	name          string
	missPolicy    string
	watch         bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the record/replay proxy",
	Long: `Run an HTTP proxy that replays responses from a snapshot or records live
traffic into a new one.

Point clients at the proxy with HTTP_PROXY, or send requests to it with the
upstream URL in the X-Playback-Target header.

In replay mode requests are answered from --snapshot (a file, optionally
reloaded on change with --watch) or --session. Unmatched requests follow
replay.miss_policy: "passthrough" forwards them upstream, "fail" answers
404.

In record mode every request is forwarded upstream and recorded. On
shutdown the recording is written to --output and saved as a session in
the configured storage.

Examples:
  playback serve --snapshot fixtures/api.yaml --watch
  playback serve --session 6f1c... --miss-policy fail
  playback serve --mode record --output fixtures/new.json --name checkout
  playback serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		applyServeFlags(cmd, &cfg)
		if err := config.Validate(&cfg); err != nil {
			return err
		}
		if serveFlags.dryRun {
			newPrinter(cmd).Success("configuration valid")
			return nil
		}

		ctx, stop := cli.SetupSignalHandler(cmd.Context())
		defer stop()
		return commandError(cmd, runServe(ctx, &cfg, serveFlags.name, newPrinter(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVarP(&serveFlags.mode, "mode", "m", "", "replay or record (overrides server.mode)")
	serveCmd.Flags().StringVar(&serveFlags.snapshot, "snapshot", "", "snapshot file to replay")
	serveCmd.Flags().StringVar(&serveFlags.session, "session", "", "stored session to replay")
	serveCmd.Flags().StringVarP(&serveFlags.output, "output", "o", "", "snapshot file written on shutdown in record mode")
	serveCmd.Flags().StringVar(&serveFlags.name, "name", "", "name of the recorded session")
	serveCmd.Flags().StringVar(&serveFlags.missPolicy, "miss-policy", "", "passthrough or fail (overrides replay.miss_policy)")
	serveCmd.Flags().BoolVarP(&serveFlags.watch, "watch", "w", false, "reload --snapshot when the file changes")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate configuration without starting the proxy")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if flags.Changed("mode") {
		cfg.Server.Mode = serveFlags.mode
	}
	if flags.Changed("snapshot") {
		cfg.Replay.SnapshotPath = serveFlags.snapshot
		cfg.Replay.Session = ""
	}
	if flags.Changed("session") {
		cfg.Replay.Session = serveFlags.session
		cfg.Replay.SnapshotPath = ""
	}
	if flags.Changed("output") {
		cfg.Recorder.OutputPath = serveFlags.output
	}
	if flags.Changed("miss-policy") {
		cfg.Replay.MissPolicy = serveFlags.missPolicy
	}
	if flags.Changed("watch") {
		cfg.Replay.Watch = serveFlags.watch
	}
}

// proxyRuntime is what serve wires into the server for one mode.
type proxyRuntime struct {
	transport http.RoundTripper
	store     func() *recording.Store
	run       func(ctx context.Context) error
	finish    func(ctx context.Context) error
}

func runServe(ctx context.Context, cfg *config.Config, sessionName string, p *cli.Printer) error {
	logger := slog.Default()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}
	redactor := logging.NewRedactor(cfg.Telemetry.Logging.RedactPatterns)

	backend, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	scheduler := retention.NewScheduler(
		retention.NewPruner(backend, retention.ConfigFrom(cfg.Storage.Retention), collector))
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	upstream := http.DefaultTransport.(*http.Transport).Clone()
	defer upstream.CloseIdleConnections()

	var rt *proxyRuntime
	switch cfg.Server.Mode {
	case config.ServerModeRecord:
		rt, err = recordRuntime(ctx, cfg, backend, sessionName, upstream, redactor, collector, logger, p)
	default:
		rt, err = replayRuntime(ctx, cfg, backend, upstream, redactor, collector, logger)
	}
	if err != nil {
		return err
	}

	checker := health.New(0)
	checker.Register("storage", func(ctx context.Context) error {
		_, err := backend.Sessions(ctx)
		return err
	})
	checker.Register("snapshot", func(context.Context) error {
		if rt.store() == nil {
			return errors.New("no recordings loaded")
		}
		return nil
	})

	srv, err := server.NewServer(&cfg.Server, server.Options{
		Transport:   rt.transport,
		Store:       rt.store,
		Metrics:     collector,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Health:      checker,
		Build:       health.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if rt.run != nil {
		go func() {
			if err := rt.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task failed", "error", err)
			}
		}()
	}

	go func() {
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		addr := srv.Addr()
		p.Success("%s proxy listening on http://%s", cfg.Server.Mode, addr)
		p.Detail("health", fmt.Sprintf("http://%s/healthz", addr))
		if collector != nil {
			p.Detail("metrics", fmt.Sprintf("http://%s%s", addr, cfg.Telemetry.Metrics.Path))
		}
		if next := scheduler.NextRun(); next != nil {
			p.Detail("next prune", next.Local().Format(time.DateTime))
		}
	}()

	serveErr := srv.Start(ctx)

	var finishErr error
	if rt.finish != nil {
		finishCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		finishErr = rt.finish(finishCtx)
		cancel()
	}
	return errors.Join(serveErr, finishErr)
}

func replayRuntime(
	ctx context.Context,
	cfg *config.Config,
	backend storage.Backend,
	upstream http.RoundTripper,
	redactor *logging.Redactor,
	collector *metrics.Collector,
	logger *slog.Logger,
) (*proxyRuntime, error) {
	opts := replay.Options{
		MissPolicy:       replay.MissPolicy(cfg.Replay.MissPolicy),
		IgnoreCollisions: cfg.Replay.IgnoreCollisions,
		Next:             upstream,
		Redactor:         redactor,
		Logger:           logger,
		Metrics:          collector,
	}

	if cfg.Replay.SnapshotPath != "" && cfg.Replay.Watch {
		watcher, err := replay.NewWatcher(replay.WatcherConfig{
			Path:             cfg.Replay.SnapshotPath,
			DebounceInterval: cfg.Replay.DebounceInterval,
			Options:          opts,
		})
		if err != nil {
			return nil, err
		}
		return &proxyRuntime{
			transport: watcher,
			store:     func() *recording.Store { return watcher.Engine().Store() },
			run:       watcher.Watch,
		}, nil
	}

	var snap *recording.Snapshot
	var err error
	switch {
	case cfg.Replay.SnapshotPath != "":
		snap, err = recording.Load(cfg.Replay.SnapshotPath)
	case cfg.Replay.Session != "":
		snap, err = backend.Load(ctx, cfg.Replay.Session)
	default:
		logger.Warn("no snapshot configured, every request is a miss")
		snap = recording.NewSnapshot(cfg.Recorder.IdentityFunc)
	}
	if err != nil {
		return nil, err
	}

	engine, err := replay.New(snap, opts)
	if err != nil {
		return nil, err
	}
	return &proxyRuntime{transport: engine, store: engine.Store}, nil
}

func recordRuntime(
	ctx context.Context,
	cfg *config.Config,
	backend storage.Backend,
	sessionName string,
	upstream http.RoundTripper,
	redactor *logging.Redactor,
	collector *metrics.Collector,
	logger *slog.Logger,
	p *cli.Printer,
) (*proxyRuntime, error) {
	recCfg := recorder.DefaultConfig()
	recCfg.IdentityFunc = cfg.Recorder.IdentityFunc
	recCfg.IgnoreCollisions = cfg.Recorder.IgnoreCollisions
	recCfg.Redactor = redactor
	recCfg.Logger = logger
	recCfg.Metrics = collector

	rec, err := recorder.New(recCfg)
	if err != nil {
		return nil, err
	}
	logger = logging.FromContext(logging.WithSession(ctx, rec.ID()), logger)
	logger.Info("recording session started", "name", sessionName)

	return &proxyRuntime{
		transport: rec.Transport(upstream),
		store:     rec.Store,
		finish: func(ctx context.Context) error {
			return saveRecording(ctx, cfg, backend, rec, sessionName, logger, p)
		},
	}, nil
}

// saveRecording writes the recorder's snapshot to the output file and the
// storage backend. Both are attempted even if one fails.
func saveRecording(
	ctx context.Context,
	cfg *config.Config,
	backend storage.Backend,
	rec *recorder.Recorder,
	sessionName string,
	logger *slog.Logger,
	p *cli.Printer,
) error {
	snap := rec.Export()
	if len(snap.Descriptors) == 0 {
		p.Warn("nothing recorded")
		return nil
	}

	var errs []error
	if path := cfg.Recorder.OutputPath; path != "" {
		if err := recording.Save(path, snap); err != nil {
			errs = append(errs, err)
		} else {
			p.Success("wrote %d recordings to %s", len(snap.Descriptors), path)
		}
	}

	session := storage.NewSession(rec.ID(), sessionName, snap)
	if err := backend.Save(ctx, session, snap); err != nil {
		errs = append(errs, err)
	} else {
		p.Success("stored session %s (%d recordings)", session.ID, session.Recordings)
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("saving recording failed", "error", err)
		return err
	}
	return nil
}
