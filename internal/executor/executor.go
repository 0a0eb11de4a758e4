// Package executor runs a shell command while teeing its output.
//
// Both output streams are copied live to caller-supplied writers and
// captured in full for storage. Two reader goroutines drain the pipes
// concurrently with the process lifetime, so a child that fills one pipe
// buffer never stalls the other stream or the exit wait. Byte order within
// each stream is exact; interleaving between the streams is not preserved.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/roach88/dt/internal/record"
)

// DefaultShell is used when Options.Shell is empty.
const DefaultShell = "/bin/sh"

// Options configures a single execution.
type Options struct {
	// Shell is the shell binary, invoked as `Shell -c command`.
	Shell string

	// Stdout and Stderr receive output live. Nil discards the live copy;
	// the captured copy is always kept.
	Stdout io.Writer
	Stderr io.Writer

	// Env overrides the child's environment. Nil inherits the current one.
	Env []string

	// KillGrace is how long the child gets after SIGTERM before SIGKILL
	// when the context is cancelled. Zero means 2 seconds.
	KillGrace time.Duration

	// Now overrides the wall clock (for tests).
	Now func() time.Time
}

// Execute runs command through the shell in dir and blocks until it exits.
//
// A non-zero exit status is a normal Result. Errors are *record.Error:
//   - SpawnFailed when the shell cannot be started or dir is unusable
//   - IoError when a pipe cannot be read
//   - Interrupted when ctx is cancelled before the command finishes; any
//     partially captured output is discarded
func Execute(ctx context.Context, command, dir string, opts Options) (record.Result, error) {
	shell := opts.Shell
	if shell == "" {
		shell = DefaultShell
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	grace := opts.KillGrace
	if grace == 0 {
		grace = 2 * time.Second
	}

	if err := ctx.Err(); err != nil {
		return record.Result{}, record.NewError(record.ErrCodeInterrupted, "execute", command, err)
	}

	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return record.Result{}, record.NewError(record.ErrCodeSpawnFailed, "execute", command, err)
		}
		dir = wd
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		return record.Result{}, record.NewError(record.ErrCodeSpawnFailed, "execute", dir, err)
	}

	cmd := exec.Command(shell, "-c", command)
	cmd.Dir = dir
	cmd.Env = opts.Env
	// The shell runs in its own process group, which a terminal treats as
	// background: reading the tty would stop it with SIGTTIN. Stdin is
	// therefore always the null device.
	cmd.Stdin = nil
	setProcessGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return record.Result{}, record.IO("stdout pipe", command, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return record.Result{}, record.IO("stderr pipe", command, err)
	}

	started := now()
	startMono := time.Now()
	if err := cmd.Start(); err != nil {
		return record.Result{}, record.NewError(record.ErrCodeSpawnFailed, "execute", shell, err)
	}
	slog.Debug("command started", "pid", cmd.Process.Pid, "shell", shell, "dir", dir)

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	readErrs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		readErrs[0] = drain(stdoutPipe, &stdoutBuf, opts.Stdout)
	}()
	go func() {
		defer wg.Done()
		readErrs[1] = drain(stderrPipe, &stderrBuf, opts.Stderr)
	}()

	// Watch for cancellation while the readers run. The pipes only reach
	// EOF once every process holding them exits, so the whole group is
	// signalled, not just the shell.
	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			slog.Debug("interrupting command", "pid", cmd.Process.Pid)
			signalGroup(cmd, syscall.SIGTERM)
			select {
			case <-done:
			case <-time.After(grace):
				signalGroup(cmd, syscall.SIGKILL)
			}
		case <-done:
		}
	}()

	// Readers must finish before Wait closes the pipes.
	wg.Wait()
	waitErr := cmd.Wait()
	close(done)
	<-watcherDone
	duration := time.Since(startMono)

	if ctx.Err() != nil {
		return record.Result{}, record.NewError(record.ErrCodeInterrupted, "execute", command, ctx.Err())
	}

	for _, rerr := range readErrs {
		if rerr != nil {
			return record.Result{}, record.IO("capture output", command, rerr)
		}
	}

	exitCode, err := exitCodeOf(waitErr)
	if err != nil {
		return record.Result{}, record.IO("wait", command, err)
	}

	slog.Debug("command finished", "exit_code", exitCode, "duration", duration,
		"stdout_bytes", stdoutBuf.Len(), "stderr_bytes", stderrBuf.Len())

	return record.Result{
		Stdout:     stdoutBuf.Bytes(),
		Stderr:     stderrBuf.Bytes(),
		ExitCode:   exitCode,
		Duration:   duration,
		WorkingDir: dir,
		StartedAt:  started,
	}, nil
}

// drain copies r into buf and, if live is non-nil, into live as well.
// A failing live writer (closed terminal) does not stop the capture.
func drain(r io.Reader, buf *bytes.Buffer, live io.Writer) error {
	var w io.Writer = buf
	if live != nil {
		w = io.MultiWriter(buf, &lenientWriter{w: live})
	}
	_, err := io.Copy(w, r)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// lenientWriter forwards writes until the first error, then swallows the rest.
type lenientWriter struct {
	w      io.Writer
	failed bool
}

func (l *lenientWriter) Write(p []byte) (int, error) {
	if !l.failed {
		if _, err := l.w.Write(p); err != nil {
			l.failed = true
			slog.Debug("live output writer failed", "error", err)
		}
	}
	return len(p), nil
}

// exitCodeOf maps a Wait error to an exit status. Signal termination maps
// to 128+signal, as shells report it.
func exitCodeOf(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, waitErr
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}
