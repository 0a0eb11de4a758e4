package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dt/internal/record"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the live tee.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExecuteCapturesStdout(t *testing.T) {
	res, err := Execute(context.Background(), "printf 'one\\ntwo\\n'", t.TempDir(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "one\ntwo\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
}

func TestExecuteStdinIsNullDevice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := Execute(ctx, `read x; echo "status=$? got=[$x]"`, t.TempDir(), Options{})
	require.NoError(t, err, "a command reading stdin sees EOF instead of blocking")
	assert.Equal(t, "status=1 got=[]\n", string(res.Stdout))
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	res, err := Execute(context.Background(), "echo failing >&2; exit 3", t.TempDir(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "failing\n", string(res.Stderr))
}

func TestExecuteRunsInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0644))

	res, err := Execute(context.Background(), "ls", dir, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(res.Stdout), "marker.txt")
	assert.Equal(t, dir, res.WorkingDir)
}

func TestExecuteShellFeatures(t *testing.T) {
	res, err := Execute(context.Background(), "printf 'b\\na\\n' | sort && echo ok || echo no", t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nok\n", string(res.Stdout))
}

func TestExecuteTeesLiveOutput(t *testing.T) {
	var liveOut, liveErr syncBuffer
	res, err := Execute(context.Background(), "echo out; echo err >&2", t.TempDir(), Options{
		Stdout: &liveOut,
		Stderr: &liveErr,
	})
	require.NoError(t, err)

	assert.Equal(t, "out\n", liveOut.String())
	assert.Equal(t, "err\n", liveErr.String())
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestExecuteConcurrentCaptureFidelity(t *testing.T) {
	// Both streams write far more than a pipe buffer (64 KiB on Linux),
	// interleaved, so a sequential reader would deadlock.
	script := `i=0; while [ $i -lt 4000 ]; do echo "out-$i-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"; echo "err-$i-yyyyyyyyyyyyyyyyyyyyyyyyyyyyyyyy" >&2; i=$((i+1)); done`

	var wantOut, wantErr strings.Builder
	for i := 0; i < 4000; i++ {
		wantOut.WriteString("out-" + strconv.Itoa(i) + "-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx\n")
		wantErr.WriteString("err-" + strconv.Itoa(i) + "-yyyyyyyyyyyyyyyyyyyyyyyyyyyyyyyy\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var liveOut, liveErr syncBuffer
	res, err := Execute(ctx, script, t.TempDir(), Options{Stdout: &liveOut, Stderr: &liveErr})
	require.NoError(t, err)

	assert.Equal(t, wantOut.String(), string(res.Stdout))
	assert.Equal(t, wantErr.String(), string(res.Stderr))
	assert.Equal(t, wantOut.String(), liveOut.String())
	assert.Equal(t, wantErr.String(), liveErr.String())
}

func TestExecuteBinaryOutput(t *testing.T) {
	res, err := Execute(context.Background(), `printf '\377\000\001'`, t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x00, 0x01}, res.Stdout)
}

func TestExecuteInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := Execute(ctx, "echo partial; sleep 30", t.TempDir(), Options{KillGrace: 500 * time.Millisecond})
	require.Error(t, err)

	assert.True(t, record.IsInterrupted(err))
	assert.Nil(t, res.Stdout, "partial output must be discarded")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, "echo never", t.TempDir(), Options{})
	assert.True(t, record.IsInterrupted(err))
}

func TestExecuteSpawnFailed(t *testing.T) {
	_, err := Execute(context.Background(), "true", t.TempDir(), Options{Shell: "/nonexistent/shell"})
	require.Error(t, err)
	assert.True(t, record.IsSpawnFailed(err))
}

func TestExecuteMissingWorkingDir(t *testing.T) {
	_, err := Execute(context.Background(), "true", filepath.Join(t.TempDir(), "missing"), Options{})
	require.Error(t, err)
	assert.True(t, record.IsSpawnFailed(err))
}

func TestExecuteSignalExitCode(t *testing.T) {
	res, err := Execute(context.Background(), "kill -TERM $$", t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 128+15, res.ExitCode)
}

func TestExecuteUsesClock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	res, err := Execute(context.Background(), "true", t.TempDir(), Options{Now: func() time.Time { return fixed }})
	require.NoError(t, err)
	assert.Equal(t, fixed, res.StartedAt)
}
