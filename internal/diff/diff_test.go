package diff

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modes = []Mode{ModeAligned, ModeLinewise}

func requireRoundTrip(t *testing.T, a, b string, mode Mode, opts Options) []Op {
	t.Helper()
	ops := Compute(a, b, mode, opts)
	gotA, gotB := Reconstruct(ops)

	wantA, wantB := Sanitize(a), Sanitize(b)
	if opts.IgnoreTrailingNewline {
		wantA = strings.TrimSuffix(wantA, "\n")
		wantB = strings.TrimSuffix(wantB, "\n")
	}
	require.Equal(t, wantA, gotA, "reconstructed A (mode %s)", mode)
	require.Equal(t, wantB, gotB, "reconstructed B (mode %s)", mode)
	return ops
}

func TestCompute_LinewiseReplacedLine(t *testing.T) {
	ops := Compute("one\ntwo\n", "one\nTWO\n", ModeLinewise, Options{})

	assert.Equal(t, []Op{
		{Kind: Equal, Text: "one\n"},
		{Kind: Delete, Text: "two\n"},
		{Kind: Insert, Text: "TWO\n"},
	}, ops)
}

func TestCompute_LinewiseNeverRealigns(t *testing.T) {
	ops := Compute("x\na\nb\n", "a\nb\n", ModeLinewise, Options{})

	assert.Equal(t, []Op{
		{Kind: Delete, Text: "x\n"},
		{Kind: Insert, Text: "a\n"},
		{Kind: Delete, Text: "a\n"},
		{Kind: Insert, Text: "b\n"},
		{Kind: Delete, Text: "b\n"},
	}, ops)
}

func TestCompute_AlignedRealignsInsertedLine(t *testing.T) {
	ops := Compute("a\nb\n", "x\na\nb\n", ModeAligned, Options{})

	assert.Equal(t, []Op{
		{Kind: Insert, Text: "x\n"},
		{Kind: Equal, Text: "a\n"},
		{Kind: Equal, Text: "b\n"},
	}, ops)
}

func TestCompute_AlignedRefinesSimilarLine(t *testing.T) {
	ops := Compute("status: ok\n", "status: failed\n", ModeAligned, Options{})
	requireRoundTrip(t, "status: ok\n", "status: failed\n", ModeAligned, Options{})

	require.NotEmpty(t, ops)
	assert.Equal(t, Equal, ops[0].Kind)
	assert.True(t, strings.HasPrefix(ops[0].Text, "status: "))
	assert.Equal(t, Equal, ops[len(ops)-1].Kind)
	assert.Equal(t, "\n", ops[len(ops)-1].Text)
}

func TestCompute_AlignedDissimilarLinesNotRefined(t *testing.T) {
	ops := Compute("alpha\n", "12345\n", ModeAligned, Options{})

	assert.Equal(t, []Op{
		{Kind: Delete, Text: "alpha\n"},
		{Kind: Insert, Text: "12345\n"},
	}, ops)
}

func TestCompute_AlignedFlagsMovedLines(t *testing.T) {
	a := "header\nmoved line\nmiddle\nfooter\n"
	b := "header\nmiddle\nmoved line\nfooter\n"

	ops := requireRoundTrip(t, a, b, ModeAligned, Options{})

	deleted := map[string]bool{}
	inserted := map[string]bool{}
	for _, op := range ops {
		switch {
		case op.Kind == Delete && op.Moved:
			deleted[op.Text] = true
		case op.Kind == Insert && op.Moved:
			inserted[op.Text] = true
		case op.Kind != Equal:
			t.Errorf("unexpected unmoved change %v %q", op.Kind, op.Text)
		}
	}
	require.Len(t, deleted, 1)
	assert.Equal(t, deleted, inserted)
}

func TestCompute_BlankLinesNeverMoved(t *testing.T) {
	ops := Compute("a\n\nb\n", "b\n\na\n", ModeAligned, Options{})
	for _, op := range ops {
		if op.Text == "\n" {
			assert.False(t, op.Moved)
		}
	}
}

func TestCompute_TrailingNewlineIsADifference(t *testing.T) {
	for _, mode := range modes {
		ops := requireRoundTrip(t, "a\n", "a", mode, Options{})
		assert.False(t, Same(ops), "mode %s", mode)
	}
}

func TestCompute_IgnoreTrailingNewline(t *testing.T) {
	for _, mode := range modes {
		ops := requireRoundTrip(t, "a\nb\n", "a\nb", mode, Options{IgnoreTrailingNewline: true})
		assert.True(t, Same(ops), "mode %s", mode)
		assert.Equal(t, []Op{{Kind: Equal, Text: "a\n"}, {Kind: Equal, Text: "b"}}, ops)
	}
}

func TestCompute_IdenticalAndEmpty(t *testing.T) {
	for _, mode := range modes {
		assert.Empty(t, Compute("", "", mode, Options{}))

		ops := Compute("same\n", "same\n", mode, Options{})
		assert.Equal(t, []Op{{Kind: Equal, Text: "same\n"}}, ops)

		ops = requireRoundTrip(t, "", "new\n", mode, Options{})
		assert.Equal(t, []Op{{Kind: Insert, Text: "new\n"}}, ops)

		ops = requireRoundTrip(t, "old\n", "", mode, Options{})
		assert.Equal(t, []Op{{Kind: Delete, Text: "old\n"}}, ops)
	}
}

func TestCompute_InvalidUTF8IsStable(t *testing.T) {
	a := "ok\n\xff\xfebad\n"
	b := "ok\n\xffbad\n"

	for _, mode := range modes {
		first := requireRoundTrip(t, a, b, mode, Options{})
		second := Compute(a, b, mode, Options{})
		assert.Equal(t, first, second)
	}
	assert.Equal(t, "ok\n\uFFFDbad\n", Sanitize(a))
	assert.True(t, Same(Compute(a, b, ModeAligned, Options{})), "both runs sanitize to the same text")
}

func TestSanitize_ValidUnchanged(t *testing.T) {
	s := "héllo \x00 \x1b[31m wörld\r\n"
	assert.Equal(t, s, Sanitize(s))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{}, SplitLines(""))
	assert.Equal(t, []string{"a\n", "b"}, SplitLines("a\nb"))
	assert.Equal(t, []string{"a\n", "\n"}, SplitLines("a\n\n"))
}

func TestCount(t *testing.T) {
	ops := Compute("a\nb\nc\n", "a\nB\nc\nd\n", ModeLinewise, Options{})
	stats := Count(ops)

	assert.Equal(t, Stats{Equal: 2, Inserts: 2, Deletes: 1}, stats)
	assert.True(t, stats.Changed())
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("linewise")
	assert.True(t, ok)
	assert.Equal(t, ModeLinewise, m)

	m, ok = ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeAligned, m)

	_, ok = ParseMode("sideways")
	assert.False(t, ok)
}

// Random inputs from a small line vocabulary produce many repeats, moves
// and near-identical lines.
func TestCompute_RoundTripRandom(t *testing.T) {
	vocab := []string{"", "a", "b", "alpha", "alpine", "beta", "gamma 1", "gamma 2", "\t", "é", "\x00", "\xff"}
	rng := rand.New(rand.NewSource(42))

	gen := func() string {
		var sb strings.Builder
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			sb.WriteString(vocab[rng.Intn(len(vocab))])
			if i < n-1 || rng.Intn(2) == 0 {
				sb.WriteString("\n")
			}
		}
		return sb.String()
	}

	for i := 0; i < 500; i++ {
		a, b := gen(), gen()
		for _, mode := range modes {
			requireRoundTrip(t, a, b, mode, Options{})
			requireRoundTrip(t, a, b, mode, Options{IgnoreTrailingNewline: true})
		}
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "equal", Equal.String())
	assert.Equal(t, "insert", Insert.String())
	assert.Equal(t, "delete", Delete.String())
}
