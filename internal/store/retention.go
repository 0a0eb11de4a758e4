package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/dt/internal/record"
)

// MaxRetentionDays is the longest retention the store honours. Larger
// values are clamped to it.
const MaxRetentionDays = 100 * 366

// RetentionReport describes one retention sweep.
type RetentionReport struct {
	// Removed is the number of executions deleted.
	Removed int `json:"removed"`

	// Skipped is true when the store was busy and the sweep did not run.
	Skipped bool `json:"skipped"`

	// Cutoff is the age boundary used; older executions were removed.
	Cutoff time.Time `json:"cutoff"`

	Err error `json:"-"`
}

// Retention removes every execution, live or archived, older than maxDays.
// maxDays <= 0 disables the sweep.
//
// The sweep is advisory: when another mutating operation holds the store
// it returns immediately with Skipped set instead of waiting.
func (s *Store) Retention(ctx context.Context, maxDays int) (RetentionReport, error) {
	if maxDays <= 0 {
		return RetentionReport{}, nil
	}

	if maxDays > MaxRetentionDays {
		maxDays = MaxRetentionDays
	}

	if !s.mu.TryLock() {
		slog.Debug("retention skipped, store busy")
		return RetentionReport{Skipped: true}, nil
	}
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(0, 0, -maxDays)
	report := RetentionReport{Cutoff: cutoff}

	expired, err := s.filter(ctx, func(e record.Execution) bool {
		return e.Timestamp.Before(cutoff)
	})
	if err != nil {
		return report, err
	}

	removed, err := s.deleteExecutions(ctx, expired)
	report.Removed = removed
	if err != nil {
		return report, err
	}

	if removed > 0 {
		slog.Info("retention sweep", "removed", removed, "max_days", maxDays)
	}
	return report, nil
}

// StartRetention runs Retention in a background goroutine. The channel
// receives exactly one report and is then closed.
func (s *Store) StartRetention(ctx context.Context, maxDays int) <-chan RetentionReport {
	out := make(chan RetentionReport, 1)
	go func() {
		defer close(out)
		report, err := s.Retention(ctx, maxDays)
		report.Err = err
		out <- report
	}()
	return out
}
