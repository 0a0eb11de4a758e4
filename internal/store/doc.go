// Package store provides durable storage for recorded command executions.
//
// A data directory holds:
//   - index: SQLite database with the live executions and the per-bucket
//     allocator state
//   - records/<digest>/: meta_<ts>.json, stdout_<ts>.txt, stderr_<ts>.txt
//     for every execution, where ts is Unix nanoseconds
//   - index_<YYYY>.json: archived executions for year YYYY
//
// # Invariants
//
// Allocator: every bucket keeps next_seq in the buckets table. Save takes
// the current value and increments it inside the same transaction that
// inserts the execution row. Deleting, archiving, or expiring executions
// never touches next_seq, so a short code is never handed out twice.
//
// Delete ordering: the index entry is removed and committed before the
// payload files. A crash in between leaves orphan files, never an index
// entry pointing at missing payloads.
//
// Ordering: listings are most recent first (ts DESC, seq DESC).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
