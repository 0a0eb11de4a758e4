package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/diff"
	"github.com/roach88/dt/internal/fuzzy"
	"github.com/roach88/dt/internal/record"
	"github.com/roach88/dt/internal/render"
	"github.com/roach88/dt/internal/store"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Mode                  string
	Linewise              bool
	IgnoreTrailingNewline bool
	Stderr                bool
	Query                 string
}

// DiffResult is the JSON payload of `dt diff`.
type DiffResult struct {
	Command   string           `json:"command"`
	Stream    record.Stream    `json:"stream"`
	Mode      string           `json:"mode"`
	From      record.Execution `json:"from"`
	To        record.Execution `json:"to"`
	Identical bool             `json:"identical"`
	Stats     diff.Stats       `json:"stats"`
	Ops       []OpView         `json:"ops"`

	ops []diff.Op
}

// OpView is the JSON shape of a diff operation.
type OpView struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Moved bool   `json:"moved,omitempty"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff [flags] <command> [FROM [TO]]",
		Short: "Compare two recorded runs of a command",
		Long: `Compare the output of two recorded runs of a command.

FROM and TO are short codes, or "first" and "last". Without them the two
most recent runs are compared; with only FROM, FROM is compared with the
most recent run.

The command is matched exactly after normalization. When no bucket
matches exactly, or with --query, the best fuzzy match among recorded
commands is used and every positional argument is a selector.

Example:
  dt diff 'make test'
  dt diff 'make test' a c
  dt diff --query bench first last`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.Query != "" {
				return cobra.MaximumNArgs(2)(cmd, args)
			}
			return cobra.RangeArgs(1, 3)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "aligned", "diff mode (aligned|linewise)")
	cmd.Flags().BoolVar(&opts.Linewise, "linewise", false, "shorthand for --mode linewise")
	cmd.Flags().BoolVar(&opts.IgnoreTrailingNewline, "ignore-trailing-newline", false, "treat a missing final newline as no difference")
	cmd.Flags().BoolVar(&opts.Stderr, "stderr", false, "compare stderr instead of stdout")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "pick the command by fuzzy match")

	return cmd
}

func runDiff(opts *DiffOptions, cmd *cobra.Command, args []string) error {
	sess, err := openSession(opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := commandContext(cmd)

	query, selectors, fuzzyOnly := opts.Query, args, true
	if query == "" {
		query, selectors, fuzzyOnly = args[0], args[1:], false
	}

	mode, ok := diff.ParseMode(opts.Mode)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be aligned or linewise", opts.Mode))
	}
	if opts.Linewise {
		mode = diff.ModeLinewise
	}

	bucket, err := resolveBucket(ctx, sess.store, query, fuzzyOnly)
	if err != nil {
		return sess.out.Fail(fmt.Sprintf("no recorded command matches %q", query), err)
	}

	from, to, err := selectPair(ctx, sess.store, bucket, selectors)
	if err != nil {
		return sess.out.Fail("cannot select runs", err)
	}

	stream := record.StreamStdout
	if opts.Stderr {
		stream = record.StreamStderr
	}

	d, err := computeDiff(sess.store, from, to, stream, mode, diff.Options{
		IgnoreTrailingNewline: opts.IgnoreTrailingNewline,
	})
	if err != nil {
		return sess.out.Fail("cannot diff runs", err)
	}

	if sess.out.JSON() {
		return sess.out.Success(d)
	}
	return printDiff(sess.printer(cmd.OutOrStdout()), d)
}

// resolveBucket finds the bucket for text. Unless fuzzyOnly, an exact
// digest match wins; otherwise the best fuzzy match over recorded
// commands is used.
func resolveBucket(ctx context.Context, st *store.Store, text string, fuzzyOnly bool) (record.Bucket, error) {
	buckets, err := st.Buckets(ctx)
	if err != nil {
		return record.Bucket{}, err
	}

	if !fuzzyOnly {
		digest := record.NewDescriptor(text).Digest
		for _, b := range buckets {
			if b.Digest == digest {
				return b, nil
			}
		}
	}

	matches := fuzzy.Rank(text, bucketCandidates(buckets))
	if len(matches) == 0 {
		return record.Bucket{}, record.NotFound("resolve command", text)
	}
	best := matches[0].Candidate.ID
	for _, b := range buckets {
		if b.Digest == best {
			slog.Debug("command matched by fuzzy search", "query", text, "command", b.Command, "score", matches[0].Score)
			return b, nil
		}
	}
	return record.Bucket{}, record.NotFound("resolve command", text)
}

func bucketCandidates(buckets []record.Bucket) []fuzzy.Candidate {
	candidates := make([]fuzzy.Candidate, len(buckets))
	for i, b := range buckets {
		candidates[i] = fuzzy.Candidate{
			ID:        b.Digest,
			Text:      b.Command,
			Timestamp: b.LastRun,
		}
	}
	return candidates
}

// selectPair turns zero, one or two selectors into the (from, to) pair.
func selectPair(ctx context.Context, st *store.Store, bucket record.Bucket, selectors []string) (record.Execution, record.Execution, error) {
	var from, to record.Execution
	var err error

	switch len(selectors) {
	case 0:
		execs, err := st.Lookup(ctx, bucket.Digest)
		if err != nil {
			return from, to, err
		}
		if len(execs) < 2 {
			return from, to, record.NewError(record.ErrCodeNotFound, "select runs", bucket.Command,
				fmt.Errorf("need at least two runs, have %d", len(execs)))
		}
		return execs[1], execs[0], nil
	case 1:
		if from, err = st.Select(ctx, bucket.Digest, selectors[0]); err != nil {
			return from, to, err
		}
		to, err = st.Select(ctx, bucket.Digest, store.SelectLast)
		return from, to, err
	default:
		if from, err = st.Select(ctx, bucket.Digest, selectors[0]); err != nil {
			return from, to, err
		}
		to, err = st.Select(ctx, bucket.Digest, selectors[1])
		return from, to, err
	}
}

// computeDiff loads one stream of both runs and diffs it.
func computeDiff(st *store.Store, from, to record.Execution, stream record.Stream, mode diff.Mode, opts diff.Options) (DiffResult, error) {
	a, err := st.ReadPayload(from, stream)
	if err != nil {
		return DiffResult{}, err
	}
	b, err := st.ReadPayload(to, stream)
	if err != nil {
		return DiffResult{}, err
	}

	ops := diff.Compute(string(a), string(b), mode, opts)

	views := make([]OpView, len(ops))
	for i, op := range ops {
		views[i] = OpView{Kind: op.Kind.String(), Text: op.Text, Moved: op.Moved}
	}

	return DiffResult{
		Command:   to.Command,
		Stream:    stream,
		Mode:      mode.String(),
		From:      from,
		To:        to,
		Identical: diff.Same(ops),
		Stats:     diff.Count(ops),
		Ops:       views,
		ops:       ops,
	}, nil
}

func printDiff(p *render.Printer, d DiffResult) error {
	p.DiffHeader(d.From, d.To, d.Stream)
	p.DiffFooter(p.Diff(d.ops))
	return p.Err()
}
