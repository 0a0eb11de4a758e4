package record

import (
	"time"
)

// Descriptor identifies a command independent of incidental formatting.
//
// Two commands that differ only in redundant whitespace or operator spacing
// share the same Normalized form and therefore the same Digest.
type Descriptor struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Digest     string `json:"digest"`
}

// NewDescriptor normalizes raw command text and computes its digest.
func NewDescriptor(raw string) Descriptor {
	normalized := Normalize(raw)
	return Descriptor{
		Raw:        raw,
		Normalized: normalized,
		Digest:     CommandDigest(normalized),
	}
}

// Result is what the executor hands to the store once a run completes.
// It is passed by value; the executor keeps no reference to it.
type Result struct {
	Stdout     []byte
	Stderr     []byte
	ExitCode   int
	Duration   time.Duration
	WorkingDir string
	StartedAt  time.Time
}

// Stream selects one of the two captured payloads.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Execution is the immutable record of one completed run.
type Execution struct {
	// ID is a UUIDv7, unique across all buckets.
	ID string `json:"id"`

	// Digest is the bucket key (see Descriptor.Digest).
	Digest string `json:"digest"`

	// Command is the normalized command text.
	Command string `json:"command"`

	// ShortCode is the bijective base-62 numeral of Seq. Unique within the bucket.
	ShortCode string `json:"short_code"`

	// Seq is the allocation ordinal within the bucket (1-based).
	Seq int64 `json:"seq"`

	// Timestamp is when the command started.
	Timestamp  time.Time     `json:"timestamp"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration"`
	WorkingDir string        `json:"working_dir"`

	StdoutSize int64 `json:"stdout_size"`
	StderrSize int64 `json:"stderr_size"`

	// Payload paths, relative to the data directory.
	StdoutPath string `json:"stdout_path"`
	StderrPath string `json:"stderr_path"`

	// Archived is true when the entry lives in a yearly archive file
	// rather than the live index.
	Archived bool `json:"archived,omitempty"`
}

// DurationMillis returns the wall-clock duration in milliseconds.
func (e Execution) DurationMillis() int64 {
	return e.Duration.Milliseconds()
}

// PayloadPath returns the relative payload path for a stream.
func (e Execution) PayloadPath(s Stream) string {
	if s == StreamStderr {
		return e.StderrPath
	}
	return e.StdoutPath
}

// Bucket is the set of executions recorded for one normalized command.
type Bucket struct {
	Digest  string `json:"digest"`
	Command string `json:"command"`

	// NextSeq is the allocator state: the seq the next execution receives.
	// It only ever increases, deletions never lower it.
	NextSeq int64 `json:"next_seq"`

	// Codes lists the short codes of every stored execution, archived
	// ones included, most recent first.
	Codes []string `json:"codes"`

	// Count is the number of executions (live and archived).
	Count int `json:"count"`

	// LastRun is the timestamp of the most recent execution.
	LastRun time.Time `json:"last_run"`
}
