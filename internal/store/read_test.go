package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dt/internal/record"
)

func TestLookup_MostRecentFirst(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a := saveRun(t, s, "echo x", "1")
	saveRun(t, s, "echo x", "2")
	saveRun(t, s, "echo x", "3")
	saveRun(t, s, "echo other", "o")

	execs, err := s.Lookup(ctx, a.Digest)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, codesOf(execs))
}

func TestLookup_UnknownDigest(t *testing.T) {
	s, _ := createTestStore(t)

	execs, err := s.Lookup(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, execs)
	assert.Empty(t, execs)
}

func TestResolveCode(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a := saveRun(t, s, "echo x", "1")
	b := saveRun(t, s, "echo x", "2")

	got, err := s.ResolveCode(ctx, a.Digest, "b")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Timestamp, got.Timestamp)
	assert.Equal(t, b.Duration, got.Duration)
	assert.Equal(t, b.WorkingDir, got.WorkingDir)
}

func TestResolveCode_NotFound(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	a := saveRun(t, s, "echo x", "1")

	tests := []struct {
		name   string
		digest string
		code   string
	}{
		{"unallocated code", a.Digest, "b"},
		{"malformed code", a.Digest, "a-b"},
		{"empty code", a.Digest, ""},
		{"unknown bucket", "deadbeef", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ResolveCode(ctx, tt.digest, tt.code)
			require.Error(t, err)
			assert.True(t, record.IsNotFound(err), "got %v", err)
			assert.ErrorIs(t, err, record.ErrNotFound)
		})
	}
}

func TestSelect(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a := saveRun(t, s, "echo x", "1")
	saveRun(t, s, "echo x", "2")
	c := saveRun(t, s, "echo x", "3")

	first, err := s.Select(ctx, a.Digest, SelectFirst)
	require.NoError(t, err)
	assert.Equal(t, a.ID, first.ID)

	last, err := s.Select(ctx, a.Digest, SelectLast)
	require.NoError(t, err)
	assert.Equal(t, c.ID, last.ID)

	byCode, err := s.Select(ctx, a.Digest, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", byCode.ShortCode)

	_, err = s.Select(ctx, "empty-bucket", SelectLast)
	assert.True(t, record.IsNotFound(err))
}

func TestGet(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	a := saveRun(t, s, "echo x", "1")

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ShortCode, got.ShortCode)

	_, err = s.Get(ctx, "missing")
	assert.True(t, record.IsNotFound(err))
}

func TestAll_AcrossBuckets(t *testing.T) {
	s, _ := createTestStore(t)

	saveRun(t, s, "echo a", "")
	saveRun(t, s, "echo b", "")
	saveRun(t, s, "echo a", "")

	all, err := s.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "echo a", all[0].Command)
	assert.Equal(t, "b", all[0].ShortCode)
	assert.Equal(t, "echo b", all[1].Command)
}

func TestBuckets(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	saveRun(t, s, "echo a", "")
	saveRun(t, s, "echo b", "")
	last := saveRun(t, s, "echo a", "")

	buckets, err := s.Buckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "echo a", buckets[0].Command)
	assert.Equal(t, []string{"b", "a"}, buckets[0].Codes)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, int64(3), buckets[0].NextSeq)
	assert.Equal(t, last.Timestamp, buckets[0].LastRun)

	assert.Equal(t, "echo b", buckets[1].Command)
	assert.Equal(t, int64(2), buckets[1].NextSeq)
}
