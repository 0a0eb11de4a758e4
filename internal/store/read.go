package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/dt/internal/record"
	"github.com/roach88/dt/internal/shortcode"
)

// Selectors accepted by Select besides a literal short code.
const (
	SelectFirst = "first"
	SelectLast  = "last"
)

const executionColumns = `id, digest, seq, short_code, command, ts, exit_code, duration_ms, cwd,
	stdout_size, stderr_size, stdout_path, stderr_path`

// Lookup returns every execution of a bucket, live and archived, most
// recent first. Returns an empty slice (not nil) for an unknown digest.
func (s *Store) Lookup(ctx context.Context, digest string) ([]record.Execution, error) {
	live, err := s.queryExecutions(ctx, `WHERE digest = ?`, digest)
	if err != nil {
		return nil, err
	}

	archived, err := s.loadArchives()
	if err != nil {
		return nil, err
	}

	return merge(live, archived, func(e record.Execution) bool { return e.Digest == digest }), nil
}

// All returns every execution in the store, most recent first.
func (s *Store) All(ctx context.Context) ([]record.Execution, error) {
	live, err := s.queryExecutions(ctx, ``)
	if err != nil {
		return nil, err
	}

	archived, err := s.loadArchives()
	if err != nil {
		return nil, err
	}

	return merge(live, archived, nil), nil
}

// ResolveCode finds the execution with the given short code in a bucket.
// Live entries are searched first, then archives. Returns NotFound when
// the code is malformed or was never allocated or has been deleted.
func (s *Store) ResolveCode(ctx context.Context, digest, code string) (record.Execution, error) {
	if !shortcode.Valid(code) {
		return record.Execution{}, record.NotFound("resolve code", code)
	}

	live, err := s.queryExecutions(ctx, `WHERE digest = ? AND short_code = ?`, digest, code)
	if err != nil {
		return record.Execution{}, err
	}
	if len(live) > 0 {
		return live[0], nil
	}

	archived, err := s.loadArchives()
	if err != nil {
		return record.Execution{}, err
	}
	for _, e := range archived {
		if e.Digest == digest && e.ShortCode == code {
			return e, nil
		}
	}

	return record.Execution{}, record.NotFound("resolve code", code)
}

// Select resolves a selector within a bucket: "first" is the oldest
// execution, "last" the newest, anything else is a short code.
func (s *Store) Select(ctx context.Context, digest, selector string) (record.Execution, error) {
	switch selector {
	case SelectFirst, SelectLast:
		execs, err := s.Lookup(ctx, digest)
		if err != nil {
			return record.Execution{}, err
		}
		if len(execs) == 0 {
			return record.Execution{}, record.NotFound("select", digest)
		}
		if selector == SelectLast {
			return execs[0], nil
		}
		return execs[len(execs)-1], nil
	default:
		return s.ResolveCode(ctx, digest, selector)
	}
}

// Get returns an execution by ID.
func (s *Store) Get(ctx context.Context, id string) (record.Execution, error) {
	live, err := s.queryExecutions(ctx, `WHERE id = ?`, id)
	if err != nil {
		return record.Execution{}, err
	}
	if len(live) > 0 {
		return live[0], nil
	}

	archived, err := s.loadArchives()
	if err != nil {
		return record.Execution{}, err
	}
	for _, e := range archived {
		if e.ID == id {
			return e, nil
		}
	}
	return record.Execution{}, record.NotFound("get", id)
}

// Buckets summarizes every bucket that still has executions, most
// recently run first.
func (s *Store) Buckets(ctx context.Context) ([]record.Bucket, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	nextSeq, err := s.allocatorState(ctx)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	buckets := []record.Bucket{}
	for _, e := range all {
		i, ok := index[e.Digest]
		if !ok {
			i = len(buckets)
			index[e.Digest] = i
			next := nextSeq[e.Digest]
			buckets = append(buckets, record.Bucket{
				Digest:  e.Digest,
				Command: e.Command,
				NextSeq: max(next, 1),
				Codes:   []string{},
				LastRun: e.Timestamp,
			})
		}
		b := &buckets[i]
		b.Codes = append(b.Codes, e.ShortCode)
		b.Count++
		if e.Seq >= b.NextSeq {
			b.NextSeq = e.Seq + 1
		}
	}
	return buckets, nil
}

// allocatorState returns next_seq per digest.
func (s *Store) allocatorState(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT digest, next_seq FROM buckets`)
	if err != nil {
		return nil, record.IO("read allocator", "", fmt.Errorf("query buckets: %w", err))
	}
	defer rows.Close()

	state := map[string]int64{}
	for rows.Next() {
		var digest string
		var next int64
		if err := rows.Scan(&digest, &next); err != nil {
			return nil, record.IO("read allocator", "", fmt.Errorf("scan bucket: %w", err))
		}
		state[digest] = next
	}
	if err := rows.Err(); err != nil {
		return nil, record.IO("read allocator", "", fmt.Errorf("iterate buckets: %w", err))
	}
	return state, nil
}

// queryExecutions runs a filtered query over live executions with
// deterministic ordering: ts DESC, seq DESC, id DESC.
func (s *Store) queryExecutions(ctx context.Context, where string, args ...any) ([]record.Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions `+where+` ORDER BY ts DESC, seq DESC, id DESC`,
		args...)
	if err != nil {
		return nil, record.IO("query executions", "", err)
	}
	defer rows.Close()

	execs := []record.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, record.IO("query executions", "", fmt.Errorf("iterate: %w", err))
	}
	return execs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (record.Execution, error) {
	var (
		e          record.Execution
		ts         int64
		durationMs int64
	)
	err := row.Scan(
		&e.ID,
		&e.Digest,
		&e.Seq,
		&e.ShortCode,
		&e.Command,
		&ts,
		&e.ExitCode,
		&durationMs,
		&e.WorkingDir,
		&e.StdoutSize,
		&e.StderrSize,
		&e.StdoutPath,
		&e.StderrPath,
	)
	if err != nil {
		return record.Execution{}, record.Corrupt("scan execution", "", err)
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	e.Duration = time.Duration(durationMs) * time.Millisecond
	return e, nil
}

// merge combines live and archived executions, keeping the live copy when
// an ID appears in both, filtered by keep (nil keeps all), newest first.
func merge(live, archived []record.Execution, keep func(record.Execution) bool) []record.Execution {
	seen := make(map[string]bool, len(live))
	out := make([]record.Execution, 0, len(live)+len(archived))
	for _, e := range live {
		if keep != nil && !keep(e) {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	for _, e := range archived {
		if seen[e.ID] || (keep != nil && !keep(e)) {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sortNewestFirst(out)
	return out
}
