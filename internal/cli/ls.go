package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/config"
	"github.com/roach88/dt/internal/fuzzy"
	"github.com/roach88/dt/internal/record"
	"github.com/roach88/dt/internal/render"
)

// ListOptions holds flags for the ls command.
type ListOptions struct {
	*RootOptions
	Limit int
	All   bool
	Runs  bool
}

// ListEntry is one execution in `dt ls --format json`.
type ListEntry struct {
	Digest     string    `json:"digest"`
	ShortCode  string    `json:"short_code"`
	Command    string    `json:"command"`
	Timestamp  time.Time `json:"timestamp"`
	ExitCode   int       `json:"exit_code"`
	DurationMs int64     `json:"duration_ms"`
	WorkingDir string    `json:"cwd"`
	Archived   bool      `json:"archived,omitempty"`
}

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "ls [QUERY]",
		Aliases: []string{"list"},
		Short:   "List recorded commands and their runs",
		Long: `List recorded commands, most recently run first, with their latest runs.

With QUERY only matching commands are shown, best match first. Matching
tries, in order: substring, word prefix, number, then in-order letters
(so "gst" finds "git status").

With --runs individual runs are listed instead, across all commands and
ranked the same way. An all-digit QUERY then also matches a run's
position in its command's history, so "7" finds every run with code g.

Example:
  dt ls
  dt ls make
  dt ls --runs 7
  dt ls --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runList(opts, cmd, query)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "runs shown per command (default display.max_history_shown)")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "show every run")
	cmd.Flags().BoolVarP(&opts.Runs, "runs", "r", false, "list individual runs instead of commands")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command, query string) error {
	sess, err := openSession(opts.RootOptions, cmd, func(l *config.Loader) error {
		return l.BindFlag(config.KeyMaxHistoryShown, cmd.Flags().Lookup("limit"))
	})
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := commandContext(cmd)

	if opts.Runs {
		return listRuns(opts, sess, cmd, query)
	}

	buckets, err := sess.store.Buckets(ctx)
	if err != nil {
		return sess.out.Fail("cannot list runs", err)
	}

	ranked := buckets
	if query != "" {
		ranked = rankBuckets(query, buckets)
	}

	limit := sess.cfg.Display.MaxHistoryShown
	views := make([]render.BucketView, 0, len(ranked))
	entries := []ListEntry{}
	for _, b := range ranked {
		execs, err := sess.store.Lookup(ctx, b.Digest)
		if err != nil {
			return sess.out.Fail("cannot list runs", err)
		}
		shown := execs
		if !opts.All && len(shown) > limit {
			shown = shown[:limit]
		}
		views = append(views, render.BucketView{
			Digest:     b.Digest,
			Command:    b.Command,
			Total:      len(execs),
			Executions: shown,
		})
		for _, e := range shown {
			entries = append(entries, listEntry(e))
		}
	}

	if sess.out.JSON() {
		return sess.out.Success(entries)
	}
	if len(views) == 0 {
		if query != "" {
			return sess.out.Success("no recorded command matches " + query)
		}
		return sess.out.Success("no recorded runs")
	}

	p := sess.printer(cmd.OutOrStdout())
	p.Buckets(views)
	return p.Err()
}

// rankBuckets filters and orders buckets by fuzzy match against query.
func rankBuckets(query string, buckets []record.Bucket) []record.Bucket {
	byDigest := make(map[string]record.Bucket, len(buckets))
	for _, b := range buckets {
		byDigest[b.Digest] = b
	}

	matches := fuzzy.Rank(query, bucketCandidates(buckets))
	ranked := make([]record.Bucket, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, byDigest[m.Candidate.ID])
	}
	return ranked
}

// listRuns prints single runs ranked by query, at most
// display.max_history_shown of them unless --all.
func listRuns(opts *ListOptions, sess *session, cmd *cobra.Command, query string) error {
	execs, err := sess.store.All(commandContext(cmd))
	if err != nil {
		return sess.out.Fail("cannot list runs", err)
	}

	ranked := rankExecutions(query, execs)
	if limit := sess.cfg.Display.MaxHistoryShown; !opts.All && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	if sess.out.JSON() {
		entries := make([]ListEntry, len(ranked))
		for i, e := range ranked {
			entries[i] = listEntry(e)
		}
		return sess.out.Success(entries)
	}
	if len(ranked) == 0 {
		if query != "" {
			return sess.out.Success("no recorded run matches " + query)
		}
		return sess.out.Success("no recorded runs")
	}

	p := sess.printer(cmd.OutOrStdout())
	p.Runs(ranked)
	return p.Err()
}

// rankExecutions filters and orders runs by fuzzy match against query.
// The short code takes part, so an all-digit query matches run numbers.
func rankExecutions(query string, execs []record.Execution) []record.Execution {
	byID := make(map[string]record.Execution, len(execs))
	candidates := make([]fuzzy.Candidate, len(execs))
	for i, e := range execs {
		byID[e.ID] = e
		candidates[i] = fuzzy.Candidate{
			ID:        e.ID,
			Text:      e.Command,
			ShortCode: e.ShortCode,
			Timestamp: e.Timestamp,
		}
	}

	matches := fuzzy.Rank(query, candidates)
	ranked := make([]record.Execution, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, byID[m.Candidate.ID])
	}
	return ranked
}

func listEntry(e record.Execution) ListEntry {
	return ListEntry{
		Digest:     e.Digest,
		ShortCode:  e.ShortCode,
		Command:    e.Command,
		Timestamp:  e.Timestamp,
		ExitCode:   e.ExitCode,
		DurationMs: e.DurationMillis(),
		WorkingDir: e.WorkingDir,
		Archived:   e.Archived,
	}
}
