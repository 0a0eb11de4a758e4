package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dt/internal/store"
	"github.com/roach88/dt/internal/testutil"
)

// lockedBuffer is a bytes.Buffer safe for the executor's concurrent
// stdout and stderr readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// newTestOptions returns root options pointing at a fresh data directory.
func newTestOptions(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:       "text",
		DataDir:      filepath.Join(t.TempDir(), "data"),
		StoreOptions: []store.Option{store.WithIDGenerator(testutil.NewSequentialIDs("run"))},
	}
}

// execute runs cmd with args and stdin, capturing both output streams.
func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) cliResult {
	t.Helper()
	out := &lockedBuffer{}
	errOut := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// dtRun records `cat data.txt` in dir after writing content to data.txt.
func dtRun(t *testing.T, opts *RootOptions, dir, content string, extra ...string) cliResult {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte(content), 0o644))
	args := append(append([]string{"-C", dir}, extra...), "--", "cat", "data.txt")
	return execute(t, NewRunCommand(opts), "", args...)
}

// decodeResponse parses a JSON CLIResponse and decodes its data into v.
func decodeResponse(t *testing.T, output string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp), "output: %s", output)
	require.Equal(t, "ok", resp.Status, "error: %+v", resp.Error)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
}

// jsonOptions returns a copy of opts with JSON output.
func jsonOptions(opts *RootOptions) *RootOptions {
	c := *opts
	c.Format = "json"
	return &c
}
