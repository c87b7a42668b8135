package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"spending/internal/core"
	"spending/internal/log"
)

// Store is the on-disk dataset cache keyed by fiscal year/quarter.
// Entries never expire: once written they are served as-is.
type Store interface {
	// Exists reports whether a complete entry is cached for the period.
	Exists(p core.Period) bool
	// Read returns the cached raw records.
	Read(p core.Period) ([]core.Record, error)
	// Write persists raw records and their flattened table.
	Write(p core.Period, recs []core.Record) error
	// Table opens the flattened tabular file for the period.
	Table(p core.Period) (io.ReadCloser, error)
}

// DiskStore keeps one directory per period under root, holding
// spending_data_<key>.json and spending_data_<key>.csv.
type DiskStore struct {
	root string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore returns a store rooted at dir. The directory is created lazily.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{root: dir}
}

// Dir returns the directory holding the entry for p.
func (s *DiskStore) Dir(p core.Period) string {
	return filepath.Join(s.root, p.Key())
}

func (s *DiskStore) jsonPath(p core.Period) string {
	return filepath.Join(s.Dir(p), "spending_data_"+p.Key()+".json")
}

func (s *DiskStore) csvPath(p core.Period) string {
	return filepath.Join(s.Dir(p), "spending_data_"+p.Key()+".csv")
}

func (s *DiskStore) Exists(p core.Period) bool {
	info, err := os.Stat(s.jsonPath(p))
	return err == nil && info.Mode().IsRegular()
}

func (s *DiskStore) Read(p core.Period) ([]core.Record, error) {
	path := s.jsonPath(p)
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.StorageError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var recs []core.Record
	if err := dec.Decode(&recs); err != nil {
		return nil, &core.StorageError{Op: "decode", Path: path, Err: err}
	}
	return recs, nil
}

// Write stores the table first and the records last, so Exists never
// reports an entry whose table is still being written.
func (s *DiskStore) Write(p core.Period, recs []core.Record) error {
	dir := s.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &core.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := s.writeTable(p, recs); err != nil {
		return err
	}

	if recs == nil {
		recs = []core.Record{}
	}
	body, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return &core.StorageError{Op: "encode", Path: s.jsonPath(p), Err: err}
	}
	if err := writeAtomic(s.jsonPath(p), func(w io.Writer) error {
		_, err := w.Write(append(body, '\n'))
		return err
	}); err != nil {
		return err
	}

	slog.Info("Cached spending records", log.FieldComponent, log.ComponentCache, "period", p.Key(), log.FieldRecords, len(recs), "dir", dir)
	return nil
}

// Table opens the flattened table, rebuilding it from the cached records
// when only the structured file is present.
func (s *DiskStore) Table(p core.Period) (io.ReadCloser, error) {
	path := s.csvPath(p)
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, &core.StorageError{Op: "open", Path: path, Err: err}
	}

	recs, err := s.Read(p)
	if err != nil {
		return nil, err
	}
	slog.Warn("Rebuilding missing spending table", log.FieldComponent, log.ComponentCache, "period", p.Key(), log.FieldPath, path)
	if err := s.writeTable(p, recs); err != nil {
		return nil, err
	}
	f, err = os.Open(path)
	if err != nil {
		return nil, &core.StorageError{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

func (s *DiskStore) writeTable(p core.Period, recs []core.Record) error {
	var buf bytes.Buffer
	if err := core.WriteTable(&buf, recs); err != nil {
		return &core.StorageError{Op: "encode", Path: s.csvPath(p), Err: err}
	}
	return writeAtomic(s.csvPath(p), func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place, so readers never observe a partial file.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &core.StorageError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return &core.StorageError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &core.StorageError{Op: "sync", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &core.StorageError{Op: "close", Path: path, Err: err}
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return &core.StorageError{Op: "chmod", Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return &core.StorageError{Op: "rename", Path: path, Err: fmt.Errorf("%s: %w", tmp.Name(), err)}
	}
	return nil
}
