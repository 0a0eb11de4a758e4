package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Meta is the on-disk form of an Execution, used for meta_<ts>.json files
// and yearly archive entries.
//
// Timestamps are RFC 3339 with nanoseconds in UTC so files sort and diff
// cleanly. Durations are stored in milliseconds.
type Meta struct {
	FormatVersion string `json:"format_version"`
	ID            string `json:"id"`
	Digest        string `json:"digest"`
	Command       string `json:"command"`
	ShortCode     string `json:"short_code"`
	Seq           int64  `json:"seq"`
	Timestamp     string `json:"timestamp"`
	ExitCode      int    `json:"exit_code"`
	DurationMs    int64  `json:"duration_ms"`
	Cwd           string `json:"cwd"`
	StdoutSize    int64  `json:"stdout_size"`
	StderrSize    int64  `json:"stderr_size"`
	StdoutPath    string `json:"stdout_path"`
	StderrPath    string `json:"stderr_path"`
}

// ToMeta converts an Execution to its persisted form.
func (e Execution) ToMeta() Meta {
	return Meta{
		FormatVersion: FormatVersion,
		ID:            e.ID,
		Digest:        e.Digest,
		Command:       e.Command,
		ShortCode:     e.ShortCode,
		Seq:           e.Seq,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		ExitCode:      e.ExitCode,
		DurationMs:    e.Duration.Milliseconds(),
		Cwd:           e.WorkingDir,
		StdoutSize:    e.StdoutSize,
		StderrSize:    e.StderrSize,
		StdoutPath:    e.StdoutPath,
		StderrPath:    e.StderrPath,
	}
}

// Execution converts persisted metadata back to an Execution.
// Returns a Corrupt error when required fields are missing or malformed.
func (m Meta) Execution() (Execution, error) {
	if m.ID == "" || m.Digest == "" || m.ShortCode == "" {
		return Execution{}, Corrupt("decode meta", m.ID, fmt.Errorf("missing id, digest or short_code"))
	}
	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return Execution{}, Corrupt("decode meta", m.ID, fmt.Errorf("timestamp: %w", err))
	}
	return Execution{
		ID:         m.ID,
		Digest:     m.Digest,
		Command:    m.Command,
		ShortCode:  m.ShortCode,
		Seq:        m.Seq,
		Timestamp:  ts,
		ExitCode:   m.ExitCode,
		Duration:   time.Duration(m.DurationMs) * time.Millisecond,
		WorkingDir: m.Cwd,
		StdoutSize: m.StdoutSize,
		StderrSize: m.StderrSize,
		StdoutPath: m.StdoutPath,
		StderrPath: m.StderrPath,
	}, nil
}

// MarshalJSONStable encodes v as indented JSON without HTML escaping,
// so "<", ">" and "&" in command text survive verbatim.
func MarshalJSONStable(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalMeta parses a metadata document.
func UnmarshalMeta(data []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, Corrupt("parse meta", "", err)
	}
	return m, nil
}
