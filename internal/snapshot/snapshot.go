// Package snapshot reads and writes the immutable JSON collections produced
// by the offline build: one flat record per chunk or unsafe intent.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMalformed is returned when a snapshot exists but cannot be decoded.
var ErrMalformed = errors.New("malformed snapshot")

// Read decodes the snapshot at path. A missing file is not an error: found is
// false and records is nil so callers can run degraded.
func Read[T any](path string) (records []T, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, true, fmt.Errorf("%w %s: %v", ErrMalformed, path, err)
	}
	return records, true, nil
}

// Write replaces the snapshot at path. The records are written to a
// temporary file in the same directory and renamed over the target, so
// readers observe either the previous snapshot or the new one.
func Write[T any](path string, records []T) error {
	st, err := Stage(path, records)
	if err != nil {
		return err
	}
	return st.Commit()
}

// Staged is a fully written snapshot that has not yet replaced its target.
// Staging every file of a build before committing any of them keeps a failed
// build from leaving a half-updated pair behind.
type Staged struct {
	tmp  string
	path string
}

// Stage encodes records into a synced temporary file next to path.
func Stage[T any](path string, records []T) (*Staged, error) {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return nil, fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return nil, err
	}
	return &Staged{tmp: tmpName, path: path}, nil
}

// Path is the target the snapshot will replace.
func (s *Staged) Path() string { return s.path }

// Commit renames the staged file over its target.
func (s *Staged) Commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		s.Discard()
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Discard removes the staged file. It is a no-op after a successful Commit.
func (s *Staged) Discard() { _ = os.Remove(s.tmp) }
