package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dt/internal/record"
	"github.com/roach88/dt/internal/testutil"
)

// createTestStore opens a store in a temp dir with a ticking fake clock
// (one second per reading) and sequential IDs.
func createTestStore(t *testing.T, opts ...Option) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewTickingClock(testutil.Epoch, time.Second)
	return createTestStoreWithClock(t, clock, opts...), clock
}

func createTestStoreWithClock(t *testing.T, clock Clock, opts ...Option) *Store {
	t.Helper()
	base := []Option{WithClock(clock), WithIDGenerator(testutil.NewSequentialIDs("exec"))}
	s, err := Open(filepath.Join(t.TempDir(), "data"), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// saveRun records a successful run of command with the given stdout.
func saveRun(t *testing.T, s *Store, command, stdout string) record.Execution {
	t.Helper()
	exec, err := s.Save(context.Background(), record.NewDescriptor(command), record.Result{
		Stdout:     []byte(stdout),
		Stderr:     []byte("err:" + stdout),
		ExitCode:   0,
		Duration:   1500 * time.Millisecond,
		WorkingDir: "/work",
	})
	require.NoError(t, err)
	return exec
}

func codesOf(execs []record.Execution) []string {
	codes := make([]string, len(execs))
	for i, e := range execs {
		codes[i] = e.ShortCode
	}
	return codes
}
