package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// SQLiteStore keeps the task collection in the tasks table.
//
// The table is replaced wholesale inside one transaction on every save.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given database connection. Migrations must already be applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// LoadAll reads every row ordered by position. Rows with a NULL status load as waiting.
func (s *SQLiteStore) LoadAll() ([]models.Task, []models.RecordError, error) {
	query := `
		SELECT position, name, start_time, end_time, volume, schedule, audio_path, status
		FROM tasks
		ORDER BY position
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	var rejected []models.RecordError
	for i := 0; rows.Next(); i++ {
		t, err := s.scanRow(rows)
		if err != nil {
			rejected = append(rejected, models.RecordError{Index: i, Reason: err})
			continue
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, rejected, nil
}

// SaveAll canonicalizes tasks and replaces the table contents in a single transaction.
func (s *SQLiteStore) SaveAll(tasks []models.Task) ([]models.Task, error) {
	canonical := Canonicalize(tasks)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", shared.ErrPersistenceFailure, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tasks"); err != nil {
		return nil, fmt.Errorf("%w: failed to clear tasks: %w", shared.ErrPersistenceFailure, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tasks (position, name, start_time, end_time, volume, schedule, audio_path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to prepare insert: %w", shared.ErrPersistenceFailure, err)
	}
	defer stmt.Close()

	for i, t := range canonical {
		if _, err := stmt.Exec(i+1, t.Name, t.StartTime, t.EndTime, t.Volume, t.Schedule, t.AudioPath, string(t.Status)); err != nil {
			return nil, fmt.Errorf("%w: failed to insert task %q: %w", shared.ErrPersistenceFailure, t.Name, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO store_meta (key, value) VALUES ('saved_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("%w: failed to record save time: %w", shared.ErrPersistenceFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit tasks: %w", shared.ErrPersistenceFailure, err)
	}
	return canonical, nil
}

// LastSaved returns the time of the last committed save.
func (s *SQLiteStore) LastSaved() (time.Time, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = 'saved_at'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read save time: %w", err)
	}

	saved, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: saved_at %q: %w", shared.ErrMalformedRecord, value, err)
	}
	return saved, nil
}

func (s *SQLiteStore) scanRow(rows *sql.Rows) (models.Task, error) {
	var (
		t        models.Task
		position int
		status   sql.NullString
	)

	if err := rows.Scan(&position, &t.Name, &t.StartTime, &t.EndTime, &t.Volume, &t.Schedule, &t.AudioPath, &status); err != nil {
		return models.Task{}, fmt.Errorf("failed to scan task: %w", err)
	}

	st, err := models.ParseStatus(status.String)
	if err != nil {
		return models.Task{}, fmt.Errorf("%w: row %d: %w", shared.ErrMalformedRecord, position, err)
	}
	t.ID = fmt.Sprint(position)
	t.Status = st
	return t, nil
}
