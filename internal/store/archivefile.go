package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/dt/internal/record"
)

const (
	archivePrefix = "index_"
	archiveSuffix = ".json"
)

func (s *Store) archivePath(year int) string {
	return filepath.Join(s.dir, archivePrefix+strconv.Itoa(year)+archiveSuffix)
}

// archiveYears lists the years that have an archive file, ascending.
func (s *Store) archiveYears() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, record.IO("list archives", s.dir, err)
	}

	years := []int{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix))
		if err != nil {
			continue
		}
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

// readArchive loads one archive file. A missing file is an empty archive;
// an unparsable file or entry is reported as Corrupt.
func (s *Store) readArchive(year int) ([]record.Execution, error) {
	name := s.archivePath(year)
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return []record.Execution{}, nil
	}
	if err != nil {
		return nil, record.IO("read archive", name, err)
	}

	var metas []record.Meta
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, record.Corrupt("read archive", name, err)
	}

	execs := make([]record.Execution, 0, len(metas))
	for _, m := range metas {
		e, err := m.Execution()
		if err != nil {
			return nil, record.Corrupt("read archive", name, err)
		}
		e.Archived = true
		execs = append(execs, e)
	}
	return execs, nil
}

// loadArchives reads every archive, logging and skipping the ones that
// fail to parse so listings keep working on the remaining data.
func (s *Store) loadArchives() ([]record.Execution, error) {
	years, err := s.archiveYears()
	if err != nil {
		return nil, err
	}

	all := []record.Execution{}
	for _, year := range years {
		execs, err := s.readArchive(year)
		if record.IsCorrupt(err) {
			slog.Warn("skipping corrupt archive", "year", year, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, execs...)
	}
	return all, nil
}

// writeArchive replaces an archive atomically, newest first. An empty
// list removes the file.
func (s *Store) writeArchive(year int, execs []record.Execution) error {
	name := s.archivePath(year)
	if len(execs) == 0 {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return record.IO("write archive", name, err)
		}
		return nil
	}

	sortNewestFirst(execs)
	metas := make([]record.Meta, len(execs))
	for i, e := range execs {
		metas[i] = e.ToMeta()
	}

	data, err := record.MarshalJSONStable(metas)
	if err != nil {
		return record.IO("write archive", name, fmt.Errorf("encode: %w", err))
	}
	if err := writeFileAtomic(name, data); err != nil {
		return record.IO("write archive", name, err)
	}
	return nil
}

// rewriteArchives drops every archived execution for which remove returns
// true and returns the dropped entries. Corrupt archives are left as is.
func (s *Store) rewriteArchives(remove func(record.Execution) bool) ([]record.Execution, error) {
	years, err := s.archiveYears()
	if err != nil {
		return nil, err
	}

	removed := []record.Execution{}
	for _, year := range years {
		execs, err := s.readArchive(year)
		if record.IsCorrupt(err) {
			slog.Warn("skipping corrupt archive", "year", year, "error", err)
			continue
		}
		if err != nil {
			return removed, err
		}

		kept := execs[:0]
		var dropped []record.Execution
		for _, e := range execs {
			if remove(e) {
				dropped = append(dropped, e)
			} else {
				kept = append(kept, e)
			}
		}
		if len(dropped) == 0 {
			continue
		}
		if err := s.writeArchive(year, kept); err != nil {
			return removed, err
		}
		removed = append(removed, dropped...)
	}
	return removed, nil
}

// sortNewestFirst orders executions by timestamp, then seq, descending.
func sortNewestFirst(execs []record.Execution) {
	sort.SliceStable(execs, func(i, j int) bool {
		a, b := execs[i], execs[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Seq != b.Seq {
			return a.Seq > b.Seq
		}
		return a.ID > b.ID
	})
}
