package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Restore index entries from the saved run metadata",
		Long: `Scan records/ for run metadata files that the live index does not know
about and add them back. Use this after the index was lost or damaged.
Unreadable metadata files are counted and skipped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(rootOpts, cmd)
		},
	}

	return cmd
}

func runRebuild(opts *RootOptions, cmd *cobra.Command) error {
	sess, err := openSession(opts, cmd, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	report, err := sess.store.Rebuild(commandContext(cmd))
	if err != nil {
		return sess.out.Fail("rebuild failed", err)
	}

	if sess.out.JSON() {
		return sess.out.Success(report)
	}
	msg := fmt.Sprintf("restored %d %s", report.Restored, runsWord(report.Restored))
	if report.Corrupt > 0 {
		msg += fmt.Sprintf(", skipped %d unreadable", report.Corrupt)
	}
	return sess.out.Success(msg)
}
