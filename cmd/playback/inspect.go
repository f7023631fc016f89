package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/fingerprint"
	"mercator-hq/playback/pkg/recording"
)

type inspectOptions struct {
	Source       snapshotSource
	IdentityFunc string
	Format       string
}

var inspectFlags inspectOptions

var inspectCmd = &cobra.Command{
	Use:   "inspect [snapshot]",
	Short: "List the recordings of a snapshot",
	Long: `List every recording of a snapshot with its identity, method, URL and
response status, then recompute identities and report collisions.

With --identity-func the identities are recomputed with a different
function, which shows what a replay under that function would match.

Examples:
  playback inspect fixtures/session.json
  playback inspect --session 6f1c... --format json
  playback inspect fixtures/session.json --identity-func url-method`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := inspectFlags
		if len(args) == 1 {
			opts.Source.Path = args[0]
		}
		return commandError(cmd, runInspect(cmd.Context(), appConfig, opts, cmd, newPrinter(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectFlags.Source.Session, "session", "", "inspect a stored session instead of a file")
	inspectCmd.Flags().StringVar(&inspectFlags.IdentityFunc, "identity-func", "", "recompute identities with this function (default: the snapshot's)")
	formatFlag(inspectCmd, &inspectFlags.Format)
}

// InspectReport is the result of inspecting a snapshot.
type InspectReport struct {
	Source       string            `json:"source" yaml:"source"`
	IdentityFunc string            `json:"identityFunc" yaml:"identityFunc"`
	Recordings   []InspectEntry    `json:"recordings" yaml:"recordings"`
	Collisions   []InspectConflict `json:"collisions" yaml:"collisions"`
}

// InspectEntry describes one recording.
type InspectEntry struct {
	Identity string `json:"identity" yaml:"identity"`
	Method   string `json:"method" yaml:"method"`
	URL      string `json:"url" yaml:"url"`
	Status   int    `json:"status" yaml:"status"`
	BodyKind string `json:"bodyKind,omitempty" yaml:"bodyKind,omitempty"`
}

// InspectConflict is a pair of recordings that share an identity.
type InspectConflict struct {
	Identity string `json:"identity" yaml:"identity"`
	Kept     string `json:"kept" yaml:"kept"`
	Dropped  string `json:"dropped" yaml:"dropped"`
}

// Headers implements cli.Tabular.
func (r *InspectReport) Headers() []string {
	return []string{"IDENTITY", "METHOD", "URL", "STATUS", "BODY"}
}

// Rows implements cli.Tabular.
func (r *InspectReport) Rows() [][]string {
	rows := make([][]string, len(r.Recordings))
	for i, e := range r.Recordings {
		rows[i] = []string{e.Identity, e.Method, e.URL, strconv.Itoa(e.Status), e.BodyKind}
	}
	return rows
}

func runInspect(ctx context.Context, cfg *config.Config, opts inspectOptions, cmd *cobra.Command, p *cli.Printer) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(opts.Format))
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	snap, err := loadSnapshot(ctx, cfg, opts.Source)
	if err != nil {
		return err
	}
	report, err := inspectSnapshot(snap, opts.IdentityFunc)
	if err != nil {
		return err
	}
	report.Source = opts.Source.String()

	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if opts.Format != "" && opts.Format != string(cli.FormatText) {
		return nil
	}

	if len(report.Collisions) == 0 {
		p.Success("%d recordings, no collisions under %s", len(report.Recordings), report.IdentityFunc)
		return nil
	}
	p.Warn("%d collisions under %s", len(report.Collisions), report.IdentityFunc)
	for _, c := range report.Collisions {
		p.Detail(c.Identity, c.Dropped+" is shadowed by "+c.Kept)
	}
	return nil
}

// inspectSnapshot lists snap and recomputes its identities with
// identityFunc, or with the snapshot's own function when empty.
func inspectSnapshot(snap *recording.Snapshot, identityFunc string) (*InspectReport, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if identityFunc == "" {
		identityFunc = snap.IdentityFunc
	}

	report := &InspectReport{
		IdentityFunc: identityFunc,
		Recordings:   []InspectEntry{},
		Collisions:   []InspectConflict{},
	}
	store, err := recording.NewStore(recording.StoreConfig{
		IdentityFunc:     identityFunc,
		IgnoreCollisions: true,
		OnCollision: func(c recording.Collision) {
			report.Collisions = append(report.Collisions, InspectConflict{
				Identity: string(c.Identity),
				Kept:     describe(c.Incoming),
				Dropped:  describe(c.Existing),
			})
		},
	})
	if err != nil {
		return nil, err
	}

	for _, id := range snap.Identities() {
		store.Put(snap.Descriptors[id], recording.Static(snap.Responses[id]))
	}

	descriptors := store.Descriptors()
	responses := store.Responses()
	for _, id := range store.Identities() {
		d := descriptors[id]
		entry := InspectEntry{Identity: string(id), Method: d.Method, URL: d.URL}
		if d.Body != nil {
			entry.BodyKind = string(d.Body.Kind)
		}
		if res := responses[id]; res != nil {
			entry.Status = res.Status
		}
		report.Recordings = append(report.Recordings, entry)
	}
	return report, nil
}

func describe(d *fingerprint.Descriptor) string {
	return d.Method + " " + d.URL
}
