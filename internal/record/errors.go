package record

import (
	"errors"
	"fmt"
)

// Error is the typed error surfaced by the executor and the store.
//
// Error categories:
//   - SpawnFailed: shell unavailable, bad working directory, permission denied
//   - IoError: disk or pipe read/write failure
//   - NotFound: unknown short code, digest, or execution ID
//   - Corrupt: index, metadata, or archive fails to parse
//   - Interrupted: the user aborted a running command
//
// NotFound and Corrupt are recoverable: callers report them and keep
// operating on the remaining data.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failing operation ("save", "resolve", "spawn", ...).
	Op string

	// Subject identifies what the operation was about (digest, code, path).
	Subject string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	ErrCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	ErrCodeIO          ErrorCode = "IO_ERROR"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeCorrupt     ErrorCode = "CORRUPT"
	ErrCodeInterrupted ErrorCode = "INTERRUPTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so callers
// can write errors.Is(err, record.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Subject == "" && t.Err == nil
}

// Sentinel values for errors.Is comparisons.
var (
	ErrSpawnFailed = &Error{Code: ErrCodeSpawnFailed}
	ErrIO          = &Error{Code: ErrCodeIO}
	ErrNotFound    = &Error{Code: ErrCodeNotFound}
	ErrCorrupt     = &Error{Code: ErrCodeCorrupt}
	ErrInterrupted = &Error{Code: ErrCodeInterrupted}
)

// NewError creates an Error.
func NewError(code ErrorCode, op, subject string, err error) *Error {
	return &Error{Code: code, Op: op, Subject: subject, Err: err}
}

// NotFound creates a NotFound error for a subject.
func NotFound(op, subject string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Subject: subject}
}

// IO wraps a filesystem or pipe failure.
func IO(op, subject string, err error) *Error {
	return &Error{Code: ErrCodeIO, Op: op, Subject: subject, Err: err}
}

// Corrupt wraps a parse failure.
func Corrupt(op, subject string, err error) *Error {
	return &Error{Code: ErrCodeCorrupt, Op: op, Subject: subject, Err: err}
}

// CodeOf returns the ErrorCode of err, or "" when err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsCorrupt returns true if err is a Corrupt error.
func IsCorrupt(err error) bool { return CodeOf(err) == ErrCodeCorrupt }

// IsInterrupted returns true if err is an Interrupted error.
func IsInterrupted(err error) bool { return CodeOf(err) == ErrCodeInterrupted }

// IsSpawnFailed returns true if err is a SpawnFailed error.
func IsSpawnFailed(err error) bool { return CodeOf(err) == ErrCodeSpawnFailed }

// IsIO returns true if err is an IoError.
func IsIO(err error) bool { return CodeOf(err) == ErrCodeIO }
