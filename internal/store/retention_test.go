package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dt/internal/testutil"
)

func TestRetention_RemovesOldExecutions(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	s := createTestStoreWithClock(t, clock)
	ctx := context.Background()

	old := saveRun(t, s, "echo x", "old")
	clock.Advance(40 * 24 * time.Hour)
	recent := saveRun(t, s, "echo x", "new")

	report, err := s.Retention(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.False(t, report.Skipped)

	execs, err := s.Lookup(ctx, old.Digest)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, recent.ID, execs[0].ID)
	assert.NoFileExists(t, s.abs(old.StdoutPath))
}

func TestRetention_CoversArchives(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC))
	s := createTestStoreWithClock(t, clock)
	ctx := context.Background()

	old := saveRun(t, s, "echo x", "old")
	clock.Set(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	_, err := s.Archive(ctx)
	require.NoError(t, err)

	report, err := s.Retention(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	_, err = s.Get(ctx, old.ID)
	assert.Error(t, err)
	assert.NoFileExists(t, s.archivePath(2023))
}

func TestRetention_DisabledWhenZero(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	s := createTestStoreWithClock(t, clock)
	saveRun(t, s, "echo x", "old")
	clock.Advance(10 * 365 * 24 * time.Hour)

	report, err := s.Retention(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Removed)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRetention_HugeMaxDaysKeepsRecentRuns(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	s := createTestStoreWithClock(t, clock)
	ctx := context.Background()
	e := saveRun(t, s, "echo x", "fresh")

	for _, days := range []int{MaxRetentionDays, 106752, 200000, math.MaxInt32} {
		report, err := s.Retention(ctx, days)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Removed, "days=%d", days)
		assert.True(t, report.Cutoff.Before(testutil.Epoch), "days=%d cutoff=%s", days, report.Cutoff)
	}

	execs, err := s.Lookup(ctx, e.Digest)
	require.NoError(t, err)
	assert.Len(t, execs, 1)
}

func TestRetention_CutoffIsCalendarDays(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	s := createTestStoreWithClock(t, testutil.NewFakeClock(now))

	report, err := s.Retention(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), report.Cutoff)
}

func TestRetention_SkipsWhenBusy(t *testing.T) {
	s, _ := createTestStore(t)

	s.mu.Lock()
	report, err := s.Retention(context.Background(), 1)
	s.mu.Unlock()

	require.NoError(t, err)
	assert.True(t, report.Skipped)
}

func TestStartRetention_DeliversOneReport(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	s := createTestStoreWithClock(t, clock)
	saveRun(t, s, "echo x", "old")
	clock.Advance(3 * 24 * time.Hour)

	ch := s.StartRetention(context.Background(), 1)

	select {
	case report := <-ch:
		require.NoError(t, report.Err)
		assert.Equal(t, 1, report.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("retention did not report")
	}

	_, open := <-ch
	assert.False(t, open)
}
