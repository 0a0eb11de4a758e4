package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/diff"
	"github.com/roach88/dt/internal/executor"
	"github.com/roach88/dt/internal/record"
	"github.com/roach88/dt/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DiffCode string
	Dir      string
}

// RunResult is the JSON payload of `dt run`.
type RunResult struct {
	Execution record.Execution `json:"execution"`
	Diff      *DiffResult      `json:"diff,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [flags] [--] <command...>",
		Short: "Run a command and record its output",
		Long: `Run a command through the configured shell, showing its output live,
and record the run under a new short code.

A single argument is used as a complete command line, so pipes and
redirections work when quoted. Several arguments are quoted one by one.
dt exits with the command's own exit status.

Example:
  dt run -- make test
  dt run 'curl -s localhost:8080/health | jq .'
  dt run -d a -- ./bench.sh`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(opts, cmd, args)
		},
	}

	// Everything after the first positional argument belongs to the command.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&opts.DiffCode, "diff-code", "d", "", "after the run, diff it against the run with this short code")
	cmd.Flags().StringVarP(&opts.Dir, "dir", "C", "", "working directory for the command (default current directory)")

	return cmd
}

func runCommand(opts *RunOptions, cmd *cobra.Command, args []string) error {
	sess, err := openSession(opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	command := executor.JoinArgs(args)
	desc := record.NewDescriptor(command)
	slog.Debug("running command", "command", desc.Normalized, "digest", desc.Digest)

	// In JSON mode stdout carries only the response document, so the live
	// copy of the command's stdout moves to stderr.
	liveOut := cmd.OutOrStdout()
	if sess.out.JSON() {
		liveOut = cmd.ErrOrStderr()
	}

	parent := commandContext(cmd)
	ctx, stop := signalContext(parent)
	res, err := executor.Execute(ctx, command, opts.Dir, executor.Options{
		Shell:  sess.cfg.Shell,
		Stdout: liveOut,
		Stderr: cmd.ErrOrStderr(),
	})
	stop()
	if err != nil {
		if record.IsInterrupted(err) {
			return sess.out.Fail("interrupted, nothing recorded", err)
		}
		return sess.out.Fail("cannot run command", err)
	}

	// The command already ran; a failure from here on is reported but the
	// command is never re-run.
	e, err := sess.store.Save(parent, desc, res)
	if err != nil {
		return sess.out.Fail("command ran but its output could not be saved", err)
	}

	result := RunResult{Execution: e}
	if opts.DiffCode != "" {
		d, err := diffAgainst(cmd, sess, e, opts.DiffCode)
		if err != nil {
			return err
		}
		result.Diff = d
	}

	// Retention starts only once the run is saved and its payloads read,
	// so it never delays the run or removes what is being shown.
	retention := sess.store.StartRetention(parent, sess.cfg.Storage.MaxRetentionDays)
	defer logRetention(retention)

	if sess.out.JSON() {
		if err := sess.out.Success(result); err != nil {
			return err
		}
	} else {
		p := sess.printer(cmd.ErrOrStderr())
		p.Execution(e)
		if err := p.Err(); err != nil {
			return err
		}
		if result.Diff != nil {
			if err := printDiff(sess.printer(cmd.OutOrStdout()), *result.Diff); err != nil {
				return err
			}
		}
	}

	if res.ExitCode != 0 {
		return NewExitError(res.ExitCode, "")
	}
	return nil
}

// diffAgainst compares the fresh run e with the run of the same bucket
// whose short code is code, older run first. A missing code is reported
// as a warning and yields no diff: the run itself succeeded.
func diffAgainst(cmd *cobra.Command, sess *session, e record.Execution, code string) (*DiffResult, error) {
	ctx := commandContext(cmd)

	target, err := sess.store.Select(ctx, e.Digest, code)
	if record.IsNotFound(err) || (err == nil && target.ID == e.ID) {
		fmt.Fprintf(cmd.ErrOrStderr(), "no earlier run with code %q for this command\n", code)
		return nil, nil
	}
	if err != nil {
		return nil, sess.out.Fail("cannot load run "+code, err)
	}

	from, to := target, e
	if to.Timestamp.Before(from.Timestamp) {
		from, to = to, from
	}
	d, err := computeDiff(sess.store, from, to, record.StreamStdout, diff.ModeAligned, diff.Options{})
	if err != nil {
		return nil, sess.out.Fail("cannot diff runs", err)
	}
	return &d, nil
}

func logRetention(ch <-chan store.RetentionReport) {
	report, ok := <-ch
	if !ok {
		return
	}
	if report.Err != nil {
		slog.Warn("retention sweep failed", "error", report.Err)
		return
	}
	slog.Debug("retention sweep done", "removed", report.Removed, "skipped", report.Skipped)
}
