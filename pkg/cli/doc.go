/*
Package cli provides the terminal helpers shared by the playback commands.

Output Formatting:

Command results render as an aligned text table, JSON or YAML:

	formatter, err := cli.NewFormatter(cli.FormatYAML)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, report)

Values implementing Tabular render as a table in text mode.

Status Lines:

Printer writes colored status lines (success, warning, failure) to a
writer. Color is disabled automatically when the writer is not a terminal
or NO_COLOR is set.

Progress Reporting:

Imports and exports of large archives report progress per entry:

	progress := cli.NewProgressReporter(os.Stderr, "importing")
	progress.Start(len(entries))
	for i := range entries {
		progress.Update(i + 1)
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
