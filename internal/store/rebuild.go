package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/dt/internal/record"
)

// RebuildReport describes one Rebuild pass.
type RebuildReport struct {
	// Restored is the number of executions re-inserted into the live index.
	Restored int `json:"restored"`

	// Corrupt is the number of meta files that failed to parse.
	Corrupt int `json:"corrupt"`
}

// Rebuild re-indexes executions from the meta files under records/.
// Executions already present in the live index or an archive are left
// alone. Allocator state is raised so that next_seq is above every seq
// seen on disk; it is never lowered.
func (s *Store) Rebuild(ctx context.Context) (RebuildReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, err := s.All(ctx)
	if err != nil {
		return RebuildReport{}, err
	}
	seen := make(map[string]bool, len(known))
	maxSeq := map[string]int64{}
	for _, e := range known {
		seen[e.ID] = true
		maxSeq[e.Digest] = max(maxSeq[e.Digest], e.Seq)
	}

	metas, err := filepath.Glob(filepath.Join(s.dir, RecordsDir, "*", "meta_*.json"))
	if err != nil {
		return RebuildReport{}, record.IO("rebuild", s.dir, err)
	}

	var report RebuildReport
	var restore []record.Execution
	for _, name := range metas {
		e, err := readMetaFile(name)
		if err != nil {
			report.Corrupt++
			slog.Warn("skipping unreadable meta file", "path", name, "error", err)
			continue
		}
		maxSeq[e.Digest] = max(maxSeq[e.Digest], e.Seq)
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		restore = append(restore, e)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, record.IO("rebuild", "", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	commands := map[string]string{}
	for _, e := range append(known, restore...) {
		commands[e.Digest] = e.Command
	}
	for digest, seq := range maxSeq {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO buckets (digest, command, next_seq, created_at)
			VALUES (?, ?, ?, 0)
			ON CONFLICT(digest) DO UPDATE SET next_seq = MAX(next_seq, excluded.next_seq)
		`, digest, commands[digest], seq+1)
		if err != nil {
			return report, record.IO("rebuild", digest, fmt.Errorf("raise allocator: %w", err))
		}
	}

	for _, e := range restore {
		if err := insertExecution(ctx, tx, e); err != nil {
			return report, record.IO("rebuild", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return report, record.IO("rebuild", "", fmt.Errorf("commit: %w", err))
	}

	report.Restored = len(restore)
	return report, nil
}

// readMetaFile parses one meta_<ts>.json. Payload paths missing from
// older files are derived from the file name.
func readMetaFile(name string) (record.Execution, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return record.Execution{}, record.IO("read meta", name, err)
	}
	m, err := record.UnmarshalMeta(data)
	if err != nil {
		return record.Execution{}, err
	}
	e, err := m.Execution()
	if err != nil {
		return record.Execution{}, err
	}

	if e.StdoutPath == "" || e.StderrPath == "" {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(name), "meta_"), ".json")
		dir := RecordsDir + "/" + e.Digest
		e.StdoutPath = dir + "/stdout_" + stamp + ".txt"
		e.StderrPath = dir + "/stderr_" + stamp + ".txt"
	}
	return e, nil
}
