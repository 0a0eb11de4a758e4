package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move runs from previous years into yearly archive files",
		Long: `Move every run dated before January 1 of the current year out of the
live index into index_<YYYY>.json in the data directory.

Archived runs keep their short codes and can still be listed and diffed.
This also happens automatically on the first run of a new year unless
storage.auto_archive is false.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(rootOpts, cmd)
		},
	}

	return cmd
}

func runArchive(opts *RootOptions, cmd *cobra.Command) error {
	sess, err := openSession(opts, cmd, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	report, err := sess.store.Archive(commandContext(cmd))
	if err != nil {
		return sess.out.Fail("archive failed", err)
	}

	if sess.out.JSON() {
		return sess.out.Success(report)
	}
	if report.Moved == 0 {
		return sess.out.Success("nothing to archive")
	}
	years := make([]string, len(report.Years))
	for i, y := range report.Years {
		years[i] = strconv.Itoa(y)
	}
	return sess.out.Success(fmt.Sprintf("archived %d %s (%s)", report.Moved, runsWord(report.Moved), strings.Join(years, ", ")))
}
