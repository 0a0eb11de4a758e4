package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dt/internal/record"
)

// recordTwo records `cat data.txt` twice with the given outputs.
func recordTwo(t *testing.T, opts *RootOptions, first, second string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, dtRun(t, opts, dir, first).err)
	require.NoError(t, dtRun(t, opts, dir, second).err)
}

func TestDiffLinewiseScenario(t *testing.T) {
	opts := newTestOptions(t)
	recordTwo(t, opts, "one\ntwo\n", "one\nTWO\n")

	res := execute(t, NewDiffCommand(jsonOptions(opts)), "", "--linewise", "cat data.txt", "a", "b")
	require.NoError(t, res.err)

	var d DiffResult
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, "linewise", d.Mode)
	assert.Equal(t, record.StreamStdout, d.Stream)
	assert.Equal(t, "a", d.From.ShortCode)
	assert.Equal(t, "b", d.To.ShortCode)
	assert.Equal(t, []OpView{
		{Kind: "equal", Text: "one\n"},
		{Kind: "delete", Text: "two\n"},
		{Kind: "insert", Text: "TWO\n"},
	}, d.Ops)
	assert.Equal(t, 1, d.Stats.Inserts)
	assert.Equal(t, 1, d.Stats.Deletes)
	assert.False(t, d.Identical)

	res = execute(t, NewDiffCommand(jsonOptions(opts)), "", "--mode", "linewise", "cat data.txt", "a", "b")
	require.NoError(t, res.err)
	var byFlag DiffResult
	decodeResponse(t, res.stdout, &byFlag)
	assert.Equal(t, d.Ops, byFlag.Ops)
}

func TestDiffInvalidMode(t *testing.T) {
	opts := newTestOptions(t)
	recordTwo(t, opts, "x\n", "y\n")

	res := execute(t, NewDiffCommand(opts), "", "--mode", "sideways", "cat data.txt")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "sideways")
}

func TestDiffDefaultsToPreviousVersusLast(t *testing.T) {
	opts := newTestOptions(t)
	dir := t.TempDir()
	for _, out := range []string{"v1\n", "v2\n", "v3\n"} {
		require.NoError(t, dtRun(t, opts, dir, out).err)
	}

	res := execute(t, NewDiffCommand(jsonOptions(opts)), "", "cat data.txt")
	require.NoError(t, res.err)

	var d DiffResult
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, "b", d.From.ShortCode)
	assert.Equal(t, "c", d.To.ShortCode)

	res = execute(t, NewDiffCommand(jsonOptions(opts)), "", "cat data.txt", "first")
	require.NoError(t, res.err)
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, "a", d.From.ShortCode)
	assert.Equal(t, "c", d.To.ShortCode)
}

func TestDiffTextOutput(t *testing.T) {
	opts := newTestOptions(t)
	recordTwo(t, opts, "one\ntwo\n", "one\nTWO\n")

	res := execute(t, NewDiffCommand(opts), "", "--linewise", "cat data.txt")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "cat data.txt\n")
	assert.Contains(t, res.stdout, "  one\n")
	assert.Contains(t, res.stdout, "- two\n")
	assert.Contains(t, res.stdout, "+ TWO\n")
	assert.Contains(t, res.stdout, "1 line added, 1 line removed")
}

func TestDiffIdenticalRuns(t *testing.T) {
	opts := newTestOptions(t)
	recordTwo(t, opts, "same\n", "same\n")

	res := execute(t, NewDiffCommand(opts), "", "cat data.txt")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "no differences")

	res = execute(t, NewDiffCommand(jsonOptions(opts)), "", "cat data.txt")
	require.NoError(t, res.err)
	var d DiffResult
	decodeResponse(t, res.stdout, &d)
	assert.True(t, d.Identical)
}

func TestDiffTrailingNewline(t *testing.T) {
	opts := newTestOptions(t)
	recordTwo(t, opts, "end\n", "end")

	res := execute(t, NewDiffCommand(jsonOptions(opts)), "", "cat data.txt")
	require.NoError(t, res.err)
	var d DiffResult
	decodeResponse(t, res.stdout, &d)
	assert.True(t, d.Stats.Changed(), "a missing final newline is a difference")

	res = execute(t, NewDiffCommand(jsonOptions(opts)), "", "--ignore-trailing-newline", "cat data.txt")
	require.NoError(t, res.err)
	decodeResponse(t, res.stdout, &d)
	assert.False(t, d.Stats.Changed())
}

func TestDiffStderr(t *testing.T) {
	opts := newTestOptions(t)
	dir := t.TempDir()
	run := func(content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte(content), 0o644))
		res := execute(t, NewRunCommand(opts), "", "-C", dir, "--", "echo same; cat data.txt >&2")
		require.NoError(t, res.err)
	}
	run("warn1\n")
	run("warn2\n")

	res := execute(t, NewDiffCommand(jsonOptions(opts)), "", "echo same; cat data.txt >&2")
	require.NoError(t, res.err)
	var d DiffResult
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, record.StreamStdout, d.Stream)
	assert.False(t, d.Stats.Changed())

	res = execute(t, NewDiffCommand(jsonOptions(opts)), "", "--stderr", "echo same ;cat data.txt>&2")
	require.NoError(t, res.err, "differently spaced spelling of the same command")
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, record.StreamStderr, d.Stream)
	assert.True(t, d.Stats.Changed())
}

func TestDiffFuzzyCommand(t *testing.T) {
	opts := newTestOptions(t)
	recordTwo(t, opts, "x\n", "y\n")

	// No exact bucket for "data": the best fuzzy match is used.
	res := execute(t, NewDiffCommand(jsonOptions(opts)), "", "data")
	require.NoError(t, res.err)
	var d DiffResult
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, "cat data.txt", d.Command)

	res = execute(t, NewDiffCommand(jsonOptions(opts)), "", "--query", "cat", "a", "b")
	require.NoError(t, res.err)
	decodeResponse(t, res.stdout, &d)
	assert.Equal(t, "a", d.From.ShortCode)
	assert.Equal(t, "b", d.To.ShortCode)
}

func TestDiffErrors(t *testing.T) {
	opts := newTestOptions(t)

	t.Run("unknown command", func(t *testing.T) {
		res := execute(t, NewDiffCommand(opts), "", "nothing recorded")
		require.Error(t, res.err)
		assert.Equal(t, ExitFailure, GetExitCode(res.err))
		assert.True(t, record.IsNotFound(res.err))
	})

	t.Run("single run", func(t *testing.T) {
		require.NoError(t, dtRun(t, opts, t.TempDir(), "only\n").err)
		res := execute(t, NewDiffCommand(opts), "", "cat data.txt")
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "need at least two runs")
	})

	t.Run("unknown code", func(t *testing.T) {
		res := execute(t, NewDiffCommand(jsonOptions(opts)), "", "cat data.txt", "zz")
		require.Error(t, res.err)
		assert.Contains(t, res.stdout, `"NOT_FOUND"`)
	})

	t.Run("too many selectors", func(t *testing.T) {
		res := execute(t, NewDiffCommand(opts), "", "cat data.txt", "a", "b", "c")
		require.Error(t, res.err)
	})
}
