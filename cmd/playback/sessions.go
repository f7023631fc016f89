package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/playback/pkg/cli"
	"mercator-hq/playback/pkg/config"
	"mercator-hq/playback/pkg/storage"
)

var sessionsFormat string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored recording sessions",
	Long: `List and delete the recording sessions kept in the configured storage
backend. Sessions are created by "serve --mode record" and "import --store".`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return commandError(cmd, runSessionsList(cmd.Context(), appConfig, sessionsFormat, cmd))
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete stored sessions",
	Args:  requireArgs(1, "at least one session id"),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commandError(cmd, runSessionsDelete(cmd.Context(), appConfig, args, newPrinter(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd)

	formatFlag(sessionsListCmd, &sessionsFormat)
}

// sessionList renders sessions as a table.
type sessionList []sessionRow

type sessionRow struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name,omitempty" yaml:"name,omitempty"`
	IdentityFunc string    `json:"identityFunc" yaml:"identityFunc"`
	Recordings   int       `json:"recordings" yaml:"recordings"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
}

func (l sessionList) Headers() []string {
	return []string{"ID", "NAME", "IDENTITY FUNC", "RECORDINGS", "CREATED"}
}

func (l sessionList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, s := range l {
		rows[i] = []string{s.ID, s.Name, s.IdentityFunc, strconv.Itoa(s.Recordings), s.CreatedAt.Local().Format(time.DateTime)}
	}
	return rows
}

func runSessionsList(ctx context.Context, cfg *config.Config, format string, cmd *cobra.Command) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(format))
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}
	backend, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	sessions, err := backend.Sessions(ctx)
	if err != nil {
		return err
	}
	list := make(sessionList, len(sessions))
	for i, s := range sessions {
		list[i] = sessionRow{
			ID:           s.ID,
			Name:         s.Name,
			IdentityFunc: s.IdentityFunc,
			Recordings:   s.Recordings,
			CreatedAt:    s.CreatedAt,
		}
	}
	return formatter.FormatTo(cmd.OutOrStdout(), list)
}

func runSessionsDelete(ctx context.Context, cfg *config.Config, ids []string, p *cli.Printer) error {
	backend, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	for _, id := range ids {
		if err := backend.Delete(ctx, id); err != nil {
			return err
		}
		p.Success("deleted session %s", id)
	}
	return nil
}
