package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/dt/internal/record"
)

// Delete removes one execution by ID.
//
// The index entry (live row or archive entry) is removed first; payload
// files are removed afterwards. Returns NotFound for an unknown ID. The
// allocator state of the bucket is unchanged, so the freed code is never
// reassigned.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.deleteExecutions(ctx, []record.Execution{e})
	return err
}

// deleteExecutions unindexes execs and then removes their payloads.
// Returns the number of executions removed from the index. Caller holds s.mu.
func (s *Store) deleteExecutions(ctx context.Context, execs []record.Execution) (int, error) {
	if len(execs) == 0 {
		return 0, nil
	}

	var live []string
	archived := map[string]bool{}
	for _, e := range execs {
		if e.Archived {
			archived[e.ID] = true
		} else {
			live = append(live, e.ID)
		}
	}

	if len(live) > 0 {
		if err := s.deleteRows(ctx, live); err != nil {
			return 0, err
		}
	}

	removed := len(live)
	if len(archived) > 0 {
		dropped, err := s.rewriteArchives(func(e record.Execution) bool { return archived[e.ID] })
		removed += len(dropped)
		if err != nil {
			return removed, err
		}
	}

	// Index is committed. Failures from here on leave orphan files only.
	var failed int
	for _, e := range execs {
		if err := s.removePayloads(e); err != nil {
			failed++
			slog.Warn("payload removal failed", "id", e.ID, "error", err)
		}
	}
	if failed > 0 {
		return removed, record.IO("delete payloads", "", fmt.Errorf("%d executions left orphan files", failed))
	}
	return removed, nil
}

// deleteRows removes live rows in one transaction.
func (s *Store) deleteRows(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return record.IO("delete", "", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE id = ?`, id); err != nil {
			return record.IO("delete", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return record.IO("delete", "", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// MatchPrefix returns every execution whose command starts with prefix.
func (s *Store) MatchPrefix(ctx context.Context, prefix string) ([]record.Execution, error) {
	return s.filter(ctx, func(e record.Execution) bool {
		return strings.HasPrefix(e.Command, prefix)
	})
}

// MatchFile returns every execution related to a file: run in that
// directory, or naming the file in its command by the given spelling, by
// absolute path, or by a path relative to the execution's directory.
func (s *Store) MatchFile(ctx context.Context, file string) ([]record.Execution, error) {
	target := canonicalPath(file)
	return s.filter(ctx, func(e record.Execution) bool {
		if e.WorkingDir == target {
			return true
		}
		if strings.Contains(e.Command, file) || strings.Contains(e.Command, target) {
			return true
		}
		if rel, err := filepath.Rel(e.WorkingDir, target); err == nil && rel != "." && strings.Contains(e.Command, rel) {
			return true
		}
		return false
	})
}

// CleanByPrefix deletes every execution whose command starts with prefix.
func (s *Store) CleanByPrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execs, err := s.MatchPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return s.deleteExecutions(ctx, execs)
}

// CleanByFile deletes every execution related to file (see MatchFile).
func (s *Store) CleanByFile(ctx context.Context, file string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execs, err := s.MatchFile(ctx, file)
	if err != nil {
		return 0, err
	}
	return s.deleteExecutions(ctx, execs)
}

// CleanAll removes every execution, archive, and payload file. Allocator
// state is kept: codes handed out before the wipe are not reissued.
func (s *Store) CleanAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM executions`); err != nil {
		return 0, record.IO("clean all", "", err)
	}

	years, err := s.archiveYears()
	if err != nil {
		return 0, err
	}
	for _, year := range years {
		if err := s.writeArchive(year, nil); err != nil {
			return 0, err
		}
	}

	records := filepath.Join(s.dir, RecordsDir)
	if err := os.RemoveAll(records); err != nil {
		return len(all), record.IO("clean all", records, err)
	}
	if err := os.MkdirAll(records, 0o755); err != nil {
		return len(all), record.IO("clean all", records, err)
	}

	slog.Debug("store wiped", "executions", len(all))
	return len(all), nil
}

// RelatedFiles lists the working directories and path-like command
// arguments seen across all executions, sorted and deduplicated. These are
// the candidates offered by "clean file".
func (s *Store) RelatedFiles(ctx context.Context) ([]string, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	for _, e := range all {
		if e.WorkingDir != "" {
			set[e.WorkingDir] = true
		}
		for _, tok := range strings.Fields(e.Command) {
			if !looksLikePath(tok) {
				continue
			}
			p := tok
			if !filepath.IsAbs(p) && e.WorkingDir != "" {
				p = filepath.Join(e.WorkingDir, p)
			}
			set[filepath.Clean(p)] = true
		}
	}

	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// filter returns the executions for which keep is true, newest first.
func (s *Store) filter(ctx context.Context, keep func(record.Execution) bool) ([]record.Execution, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []record.Execution{}
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// looksLikePath accepts tokens with a separator or a file extension.
// Quoted tokens and operators are rejected.
func looksLikePath(tok string) bool {
	if strings.ContainsAny(tok, "'\"|&;<>$`") {
		return false
	}
	if strings.HasPrefix(tok, "-") {
		return false
	}
	if strings.Contains(tok, "/") {
		return true
	}
	ext := filepath.Ext(tok)
	return ext != "" && ext != tok && len(ext) > 1
}

// canonicalPath returns an absolute, symlink-free form of p, falling back
// to the best form available when p does not exist.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
