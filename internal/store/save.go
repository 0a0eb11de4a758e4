package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/dt/internal/record"
	"github.com/roach88/dt/internal/shortcode"
)

// Save persists a completed run as a new Execution in the bucket of desc.
//
// The next sequence number of the bucket is read and incremented inside
// one transaction together with the execution row, so concurrent saves
// within this process never share a code. Payload files are written before
// the commit; when anything fails they are removed and an IoError is
// returned. The run itself is never repeated.
func (s *Store) Save(ctx context.Context, desc record.Descriptor, res record.Result) (record.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.autoArchive {
		if _, err := s.archiveIfNewYear(ctx); err != nil {
			slog.Warn("auto-archive failed", "error", err)
		}
	}

	started := res.StartedAt
	if started.IsZero() {
		started = s.now()
	}

	stamp, err := s.reserveStamp(desc.Digest, started)
	if err != nil {
		return record.Execution{}, record.IO("save", desc.Digest, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return record.Execution{}, record.IO("save", desc.Digest, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	seq, err := allocateSeq(ctx, tx, desc, stamp)
	if err != nil {
		return record.Execution{}, record.IO("save", desc.Digest, err)
	}

	names := payloadNames(desc.Digest, stamp)
	exec := record.Execution{
		ID:         s.ids.Generate(),
		Digest:     desc.Digest,
		Command:    desc.Normalized,
		ShortCode:  shortcode.Encode(seq),
		Seq:        seq,
		Timestamp:  time.Unix(0, stamp).UTC(),
		ExitCode:   res.ExitCode,
		Duration:   res.Duration,
		WorkingDir: res.WorkingDir,
		StdoutSize: int64(len(res.Stdout)),
		StderrSize: int64(len(res.Stderr)),
		StdoutPath: names.Stdout,
		StderrPath: names.Stderr,
	}

	if err := s.writePayloads(exec, res.Stdout, res.Stderr); err != nil {
		return record.Execution{}, record.IO("save", desc.Digest, fmt.Errorf("write payloads: %w", err))
	}

	if err := insertExecution(ctx, tx, exec); err != nil {
		s.removePayloads(exec)
		return record.Execution{}, record.IO("save", desc.Digest, err)
	}

	if err := tx.Commit(); err != nil {
		s.removePayloads(exec)
		return record.Execution{}, record.IO("save", desc.Digest, fmt.Errorf("commit: %w", err))
	}

	slog.Debug("execution saved",
		"digest", exec.Digest,
		"code", exec.ShortCode,
		"exit_code", exec.ExitCode)
	return exec, nil
}

// allocateSeq creates the bucket if needed and claims its next sequence
// number. The caller's transaction makes the claim atomic with the insert.
func allocateSeq(ctx context.Context, tx *sql.Tx, desc record.Descriptor, stamp int64) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO buckets (digest, command, next_seq, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(digest) DO NOTHING
	`, desc.Digest, desc.Normalized, stamp)
	if err != nil {
		return 0, fmt.Errorf("create bucket: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT next_seq FROM buckets WHERE digest = ?`, desc.Digest).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read allocator: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE buckets SET next_seq = next_seq + 1, command = ? WHERE digest = ?
	`, desc.Normalized, desc.Digest)
	if err != nil {
		return 0, fmt.Errorf("advance allocator: %w", err)
	}

	return seq, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExecution(ctx context.Context, db execer, e record.Execution) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO executions
		(id, digest, seq, short_code, command, ts, exit_code, duration_ms, cwd,
		 stdout_size, stderr_size, stdout_path, stderr_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Digest,
		e.Seq,
		e.ShortCode,
		e.Command,
		e.Timestamp.UnixNano(),
		e.ExitCode,
		e.DurationMillis(),
		e.WorkingDir,
		e.StdoutSize,
		e.StderrSize,
		e.StdoutPath,
		e.StderrPath,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}
