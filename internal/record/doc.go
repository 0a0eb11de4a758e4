// Package record provides the foundational types for dt.
//
// This package contains the command descriptor, execution records, and the
// error taxonomy shared by the executor and the store. All other internal
// packages import record; record imports nothing internal.
//
// Key design constraints:
//   - Executions are immutable once created; nothing in this package mutates them
//   - Command identity is the digest of the normalized command text
//   - All JSON tags use snake_case
package record
