package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuild_RestoresFromMetaFiles(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a := saveRun(t, s, "echo x", "1")
	saveRun(t, s, "echo x", "2")

	_, err := s.db.ExecContext(ctx, `DELETE FROM executions`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `DELETE FROM buckets`)
	require.NoError(t, err)

	report, err := s.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Restored)
	assert.Equal(t, 0, report.Corrupt)

	execs, err := s.Lookup(ctx, a.Digest)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, codesOf(execs))

	next := saveRun(t, s, "echo x", "3")
	assert.Equal(t, "c", next.ShortCode)
}

func TestRebuild_SkipsIndexedAndCorrupt(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a := saveRun(t, s, "echo x", "1")
	bad := filepath.Join(s.Dir(), RecordsDir, a.Digest, "meta_1.json")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	report, err := s.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Restored)
	assert.Equal(t, 1, report.Corrupt)
}

// Rebuild never lowers allocator state.
func TestRebuild_KeepsHigherNextSeq(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	saveRun(t, s, "echo x", "1")
	b := saveRun(t, s, "echo x", "2")
	require.NoError(t, s.Delete(ctx, b.ID))

	_, err := s.Rebuild(ctx)
	require.NoError(t, err)

	buckets, err := s.Buckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(3), buckets[0].NextSeq)
}
