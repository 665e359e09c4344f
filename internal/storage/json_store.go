package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// JSONStore persists one JSON document to disk. Writes go to a temp file that
// is synced and renamed over the target, so readers see either the old or the
// new snapshot.
type JSONStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewJSONStore creates the data directory if needed.
func NewJSONStore(dataDir, filename string) (*JSONStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dataDir)
	}

	return &JSONStore{
		filePath: filepath.Join(dataDir, filename),
	}, nil
}

// Load decodes the snapshot into data. A missing file leaves data untouched.
func (s *JSONStore) Load(data any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "open snapshot")
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(data); err != nil {
		return errors.Wrapf(err, "decode snapshot %s", s.filePath)
	}
	return nil
}

// Save replaces the snapshot with data.
func (s *JSONStore) Save(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return errors.Wrap(err, "encode snapshot")
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempFile)
		return errors.Wrap(err, "sync snapshot")
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return errors.Wrap(err, "close snapshot")
	}

	return errors.Wrap(os.Rename(tempFile, s.filePath), "rename snapshot")
}

// Exists reports whether a snapshot has been written.
func (s *JSONStore) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.filePath)
	return err == nil
}

// Path is the snapshot location.
func (s *JSONStore) Path() string {
	return s.filePath
}
