package repositories

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// JSONStore keeps the task collection in a single JSON file.
type JSONStore struct {
	path string
}

// NewJSONStore creates a [JSONStore] backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string { return s.path }

// LoadAll reads the collection. A missing file is an empty collection.
func (s *JSONStore) LoadAll() ([]models.Task, []models.RecordError, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.Task{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read task file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Task{}, nil, nil
	}

	tasks, rejected, err := models.DecodeRecords(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", shared.ErrMalformedRecord, s.path, err)
	}
	return tasks, malformed(rejected), nil
}

// LastSaved returns the modification time of the backing file.
func (s *JSONStore) LastSaved() (time.Time, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat task file: %w", err)
	}
	return info.ModTime(), nil
}

// SaveAll canonicalizes tasks and replaces the file through a temp file and rename.
//
// The write is skipped when the encoded collection matches the file on disk.
func (s *JSONStore) SaveAll(tasks []models.Task) ([]models.Task, error) {
	canonical := Canonicalize(tasks)

	data, err := models.EncodeRecords(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistenceFailure, err)
	}

	if existing, err := os.ReadFile(s.path); err == nil {
		if bytes.Equal(existing, data) {
			return canonical, nil
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: read task file: %w", shared.ErrPersistenceFailure, err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPersistenceFailure, err)
	}
	return canonical, nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp task file: %w", err)
	}
	name := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if err1 := tmp.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write temp task file: %w", err)
	}

	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename task file: %w", err)
	}
	return nil
}
