package repositories

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// ImportFile is the decoded content of an import document.
type ImportFile struct {
	Tasks    []models.Task
	Rejected []models.RecordError
	Repaired int // audio paths rewritten to the import file's directory
}

// ReadImportFile decodes and validates the task records in the JSON file at path.
//
// A record whose audio path does not exist is pointed at the file with the same base name
// next to the import file when that file exists. Records that fail validation are rejected.
func ReadImportFile(path string) (*ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	tasks, rejected, err := models.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrMalformedRecord, err)
	}

	out := &ImportFile{Rejected: malformed(rejected)}
	dir := filepath.Dir(path)
	for i, t := range tasks {
		if !shared.FileExists(t.AudioPath) && t.AudioPath != "" {
			candidate := filepath.Join(dir, filepath.Base(t.AudioPath))
			if shared.FileExists(candidate) {
				t.AudioPath = candidate
				out.Repaired++
			}
		}

		if err := t.Validate(); err != nil {
			out.Rejected = append(out.Rejected, models.RecordError{Index: i, Reason: fmt.Errorf("%w: %w", shared.ErrInvalidTask, err)})
			continue
		}
		out.Tasks = append(out.Tasks, t.Normalize())
	}
	return out, nil
}

// WriteExportFile writes tasks as current-shape records to path, atomically.
func WriteExportFile(path string, tasks []models.Task) error {
	data, err := models.EncodeRecords(tasks)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
