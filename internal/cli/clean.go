package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/record"
)

// CleanOptions holds flags shared by the clean subcommands.
type CleanOptions struct {
	*RootOptions
	DryRun bool
	Yes    bool
}

// CleanResult is the JSON payload of the clean subcommands.
type CleanResult struct {
	DryRun  bool        `json:"dry_run"`
	Removed int         `json:"removed"`
	Matched []ListEntry `json:"matched"`
}

// cleanTarget describes what one clean subcommand removes.
type cleanTarget struct {
	what  string
	match func(ctx context.Context, sess *session) ([]record.Execution, error)
	clean func(ctx context.Context, sess *session) (int, error)
}

// NewCleanCommand creates the clean command and its subcommands.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete recorded runs",
		Long: `Delete recorded runs and their captured output.

Short codes are never reused: after a clean, the next run of a command
continues where its code sequence left off.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "show what would be deleted")
	cmd.PersistentFlags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(newCleanSearchCommand(opts))
	cmd.AddCommand(newCleanFileCommand(opts))
	cmd.AddCommand(newCleanAllCommand(opts))

	return cmd
}

func newCleanSearchCommand(opts *CleanOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <PREFIX>",
		Short: "Delete runs of commands starting with PREFIX",
		Example: `  dt clean search 'make '
  dt clean search curl --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := record.Normalize(args[0])
			return runClean(opts, cmd, cleanTarget{
				what: fmt.Sprintf("runs of commands starting with %q", prefix),
				match: func(ctx context.Context, sess *session) ([]record.Execution, error) {
					return sess.store.MatchPrefix(ctx, prefix)
				},
				clean: func(ctx context.Context, sess *session) (int, error) {
					return sess.store.CleanByPrefix(ctx, prefix)
				},
			})
		},
	}
}

func newCleanFileCommand(opts *CleanOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "file [PATH]",
		Short: "Delete runs related to a file or directory",
		Long: `Delete runs that were started in PATH or that name PATH in their command.

Without PATH, list the files and directories recorded runs refer to.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runRelatedFiles(opts, cmd)
			}
			file := args[0]
			return runClean(opts, cmd, cleanTarget{
				what: fmt.Sprintf("runs related to %s", file),
				match: func(ctx context.Context, sess *session) ([]record.Execution, error) {
					return sess.store.MatchFile(ctx, file)
				},
				clean: func(ctx context.Context, sess *session) (int, error) {
					return sess.store.CleanByFile(ctx, file)
				},
			})
		},
	}
}

func newCleanAllCommand(opts *CleanOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "all",
		Short:         "Delete every recorded run",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, cmd, cleanTarget{
				what: "every recorded run",
				match: func(ctx context.Context, sess *session) ([]record.Execution, error) {
					return sess.store.All(ctx)
				},
				clean: func(ctx context.Context, sess *session) (int, error) {
					return sess.store.CleanAll(ctx)
				},
			})
		},
	}
}

func runClean(opts *CleanOptions, cmd *cobra.Command, target cleanTarget) error {
	sess, err := openSession(opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := commandContext(cmd)

	matched, err := target.match(ctx, sess)
	if err != nil {
		return sess.out.Fail("cannot find runs", err)
	}

	result := CleanResult{DryRun: opts.DryRun, Matched: make([]ListEntry, len(matched))}
	for i, e := range matched {
		result.Matched[i] = listEntry(e)
	}

	if len(matched) == 0 {
		if sess.out.JSON() {
			return sess.out.Success(result)
		}
		return sess.out.Success("nothing to delete")
	}

	if opts.DryRun {
		if sess.out.JSON() {
			return sess.out.Success(result)
		}
		p := sess.printer(cmd.OutOrStdout())
		for _, e := range matched {
			p.Execution(e)
		}
		if err := p.Err(); err != nil {
			return err
		}
		return sess.out.Success(fmt.Sprintf("would delete %d %s", len(matched), runsWord(len(matched))))
	}

	if !opts.Yes {
		prompt := fmt.Sprintf("delete %s (%d %s)?", target.what, len(matched), runsWord(len(matched)))
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot read confirmation", err)
		}
		if !ok {
			return NewExitError(ExitFailure, "aborted")
		}
	}

	removed, err := target.clean(ctx, sess)
	result.Removed = removed
	if err != nil {
		return sess.out.Fail(fmt.Sprintf("deleted %d %s, then failed", removed, runsWord(removed)), err)
	}

	if sess.out.JSON() {
		return sess.out.Success(result)
	}
	return sess.out.Success(fmt.Sprintf("deleted %d %s", removed, runsWord(removed)))
}

func runRelatedFiles(opts *CleanOptions, cmd *cobra.Command) error {
	sess, err := openSession(opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	files, err := sess.store.RelatedFiles(commandContext(cmd))
	if err != nil {
		return sess.out.Fail("cannot list files", err)
	}
	if sess.out.JSON() {
		return sess.out.Success(files)
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

// confirm asks a yes/no question on w and reads the answer from r.
// Anything but "y" or "yes" is a no, including end of input.
func confirm(r io.Reader, w io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func runsWord(n int) string {
	if n == 1 {
		return "run"
	}
	return "runs"
}
