package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/roach88/dt/internal/record"
)

// payloadSet names the three files belonging to one execution, relative
// to the data directory in slash form.
type payloadSet struct {
	Meta   string
	Stdout string
	Stderr string
}

func payloadNames(digest string, stamp int64) payloadSet {
	dir := path.Join(RecordsDir, digest)
	ts := strconv.FormatInt(stamp, 10)
	return payloadSet{
		Meta:   path.Join(dir, "meta_"+ts+".json"),
		Stdout: path.Join(dir, "stdout_"+ts+".txt"),
		Stderr: path.Join(dir, "stderr_"+ts+".txt"),
	}
}

// metaPathFor returns the meta file of an execution. The file stamp is
// the execution timestamp in Unix nanoseconds.
func metaPathFor(e record.Execution) string {
	return payloadNames(e.Digest, e.Timestamp.UnixNano()).Meta
}

// abs turns a relative slash path into an OS path under the data directory.
func (s *Store) abs(rel string) string {
	return filepath.Join(s.dir, filepath.FromSlash(rel))
}

// reserveStamp returns the first nanosecond stamp at or after t whose
// meta file does not exist yet in the bucket directory.
func (s *Store) reserveStamp(digest string, t time.Time) (int64, error) {
	stamp := t.UnixNano()
	for i := 0; i < 1000; i++ {
		_, err := os.Stat(s.abs(payloadNames(digest, stamp).Meta))
		if errors.Is(err, fs.ErrNotExist) {
			return stamp, nil
		}
		if err != nil {
			return 0, err
		}
		stamp++
	}
	return 0, fmt.Errorf("no free timestamp slot near %d", t.UnixNano())
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it into place.
func writeFileAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// writePayloads persists both captured streams and the metadata document.
// On failure every file written so far is removed.
func (s *Store) writePayloads(e record.Execution, stdout, stderr []byte) error {
	names := payloadNames(e.Digest, e.Timestamp.UnixNano())
	if err := os.MkdirAll(s.abs(path.Dir(names.Meta)), 0o755); err != nil {
		return err
	}

	meta, err := record.MarshalJSONStable(e.ToMeta())
	if err != nil {
		return err
	}

	written := make([]string, 0, 3)
	for _, f := range []struct {
		rel  string
		data []byte
	}{
		{names.Stdout, stdout},
		{names.Stderr, stderr},
		{names.Meta, meta},
	} {
		if err := os.WriteFile(s.abs(f.rel), f.data, 0o644); err != nil {
			s.removeFiles(written...)
			return err
		}
		written = append(written, f.rel)
	}
	return nil
}

// removePayloads deletes the files of an execution and then the bucket
// directory if it became empty. Missing files are not an error.
func (s *Store) removePayloads(e record.Execution) error {
	err := s.removeFiles(e.StdoutPath, e.StderrPath, metaPathFor(e))
	// Only succeeds when the directory is empty.
	os.Remove(s.abs(path.Join(RecordsDir, e.Digest)))
	return err
}

func (s *Store) removeFiles(rels ...string) error {
	var errs []error
	for _, rel := range rels {
		if rel == "" {
			continue
		}
		if err := os.Remove(s.abs(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadPayload loads the captured bytes of one stream.
func (s *Store) ReadPayload(e record.Execution, stream record.Stream) ([]byte, error) {
	rel := e.PayloadPath(stream)
	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return nil, record.IO("read payload", rel, err)
	}
	return data, nil
}
