package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/config"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	Days int
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention period",
		Long: `Delete runs, live or archived, older than storage.max_retention_days
(or --days). A retention of 0 keeps everything.

The same sweep runs in the background after every dt run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", 0, "retention in days (default storage.max_retention_days)")

	return cmd
}

func runPrune(opts *PruneOptions, cmd *cobra.Command) error {
	sess, err := openSession(opts.RootOptions, cmd, func(l *config.Loader) error {
		return l.BindFlag(config.KeyMaxRetentionDays, cmd.Flags().Lookup("days"))
	})
	if err != nil {
		return err
	}
	defer sess.close()

	days := sess.cfg.Storage.MaxRetentionDays
	report, err := sess.store.Retention(commandContext(cmd), days)
	if err != nil {
		return sess.out.Fail("prune failed", err)
	}

	if sess.out.JSON() {
		return sess.out.Success(report)
	}
	switch {
	case days <= 0:
		return sess.out.Success("retention disabled, nothing pruned")
	case report.Skipped:
		return NewExitError(ExitFailure, "store busy, prune skipped")
	default:
		return sess.out.Success(fmt.Sprintf("pruned %d %s older than %d days", report.Removed, runsWord(report.Removed), days))
	}
}
