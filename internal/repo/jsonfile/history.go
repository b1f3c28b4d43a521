// Package jsonfile implements the repo contracts on single JSON files.
package jsonfile

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/repo"
)

// HistoryStore keeps a bounded JSON array of run records on disk,
// newest first. A corrupt or unreadable file degrades to empty with a
// logged warning; it never fails the caller.
type HistoryStore struct {
	mu     sync.Mutex
	path   string
	max    int
	logger *slog.Logger
}

// NewHistoryStore creates a history store writing to path, keeping at
// most max records.
func NewHistoryStore(path string, max int, logger *slog.Logger) *HistoryStore {
	if max <= 0 {
		max = 20
	}
	return &HistoryStore{path: path, max: max, logger: logger}
}

// Append inserts the record at the front, replacing any existing record
// with the same identifier, and evicts records beyond the cap.
func (s *HistoryStore) Append(run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()

	out := make([]domain.Run, 0, len(records)+1)
	out = append(out, run)
	for _, rec := range records {
		if rec.RunID == run.RunID {
			continue
		}
		out = append(out, rec)
	}
	if len(out) > s.max {
		out = out[:s.max]
	}

	return s.save(out)
}

// List returns all stored records, newest first.
func (s *HistoryStore) List() ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(), nil
}

// Get returns the stored record with the given identifier.
func (s *HistoryStore) Get(runID string) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.load() {
		if rec.RunID == runID {
			return rec, nil
		}
	}
	return domain.Run{}, repo.ErrNotFound
}

// load reads the history file. Decode failures are tolerated: a file
// that is not a JSON array yields an empty list, and an element that is
// not a run record is skipped, both with a warning.
func (s *HistoryStore) load() []domain.Run {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read run history", "path", s.path, "error", err)
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("run history is corrupt, treating as empty", "path", s.path, "error", err)
		return nil
	}

	records := make([]domain.Run, 0, len(raw))
	for i, item := range raw {
		var rec domain.Run
		if err := json.Unmarshal(item, &rec); err != nil {
			s.logger.Warn("skipping unreadable history record", "path", s.path, "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// save replaces the file by rename, so readers never observe a partial
// write.
func (s *HistoryStore) save(records []domain.Run) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
