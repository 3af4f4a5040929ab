package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JakeFAU/archive-ingest/internal/archive"
)

// StatusStore is the persisted map of job outcomes keyed by item id. Every
// Set rewrites the file through a temp file and rename while holding the
// lock, so concurrent completions never interleave partial writes.
type StatusStore struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	entries map[string]archive.StatusEntry
}

// LoadStatus reads the status file at path. A missing file yields an empty
// map.
func LoadStatus(path string, now func() time.Time) (*StatusStore, error) {
	if now == nil {
		now = time.Now
	}
	s := &StatusStore{path: path, now: now, entries: make(map[string]archive.StatusEntry)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse status file %s: %w", path, err)
	}
	if s.entries == nil {
		s.entries = make(map[string]archive.StatusEntry)
	}
	return s, nil
}

// Get returns the entry for id.
func (s *StatusStore) Get(id string) (archive.StatusEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Set records an outcome for id and persists the whole map.
func (s *StatusStore) Set(id string, status archive.JobStatus, cause error) error {
	entry := archive.StatusEntry{Status: status}
	if cause != nil {
		entry.Error = cause.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.UpdatedAt = s.now().UTC()
	s.entries[id] = entry
	return s.persistLocked()
}

// Snapshot returns a copy of every entry.
func (s *StatusStore) Snapshot() map[string]archive.StatusEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]archive.StatusEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

func (s *StatusStore) persistLocked() (err error) {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}
