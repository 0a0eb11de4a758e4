package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/roach88/dt/internal/record"
)

const settingLastArchiveYear = "last_archive_year"

// ArchiveReport describes one archive pass.
type ArchiveReport struct {
	// Moved is the number of executions moved out of the live index.
	Moved int `json:"moved"`

	// Years lists the archive files written, ascending.
	Years []int `json:"years"`
}

// Archive moves every live execution dated before January 1 of the
// current year into its yearly archive file, then removes the rows from
// the live index. Archived executions stay visible to Lookup and
// ResolveCode. The allocator state stays in the live index.
func (s *Store) Archive(ctx context.Context) (ArchiveReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.archiveLocked(ctx)
}

// archiveIfNewYear archives once per calendar year. Caller holds s.mu.
func (s *Store) archiveIfNewYear(ctx context.Context) (ArchiveReport, error) {
	last, err := s.getSetting(ctx, settingLastArchiveYear)
	if err != nil {
		return ArchiveReport{}, err
	}
	if last == strconv.Itoa(s.now().Year()) {
		return ArchiveReport{Years: []int{}}, nil
	}
	return s.archiveLocked(ctx)
}

func (s *Store) archiveLocked(ctx context.Context) (ArchiveReport, error) {
	now := s.now()
	cutoff := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	old, err := s.queryExecutions(ctx, `WHERE ts < ?`, cutoff.UnixNano())
	if err != nil {
		return ArchiveReport{}, err
	}

	byYear := map[int][]record.Execution{}
	for _, e := range old {
		byYear[e.Timestamp.Year()] = append(byYear[e.Timestamp.Year()], e)
	}

	report := ArchiveReport{Years: []int{}}
	for year := range byYear {
		report.Years = append(report.Years, year)
	}
	sort.Ints(report.Years)

	// Archive files first: a crash before the row delete leaves an entry
	// in both places, and reads prefer the live copy.
	for _, year := range report.Years {
		existing, err := s.readArchive(year)
		if err != nil {
			return ArchiveReport{}, fmt.Errorf("archive %d: %w", year, err)
		}

		moved := byYear[year]
		ids := make(map[string]bool, len(moved))
		for _, e := range moved {
			ids[e.ID] = true
		}
		merged := make([]record.Execution, 0, len(existing)+len(moved))
		for _, e := range existing {
			if !ids[e.ID] {
				merged = append(merged, e)
			}
		}
		merged = append(merged, moved...)

		if err := s.writeArchive(year, merged); err != nil {
			return ArchiveReport{}, err
		}
	}

	ids := make([]string, len(old))
	for i, e := range old {
		ids[i] = e.ID
	}
	if len(ids) > 0 {
		if err := s.deleteRows(ctx, ids); err != nil {
			return ArchiveReport{}, err
		}
	}
	report.Moved = len(old)

	if err := s.setSetting(ctx, settingLastArchiveYear, strconv.Itoa(now.Year())); err != nil {
		return report, record.IO("archive", "", err)
	}

	if report.Moved > 0 {
		slog.Info("archived executions", "moved", report.Moved, "years", report.Years)
	}
	return report, nil
}
