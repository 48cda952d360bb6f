package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RecordVersion is the record shape written by this build.
//
// Version 1 records (no "version" key) may omit status; version 2 always carries it.
const RecordVersion = 2

// Record is the persisted and exchanged shape of a [Task].
//
// Every field is optional at decode time so that missing values can be told apart from zero values.
type Record struct {
	Version   int         `json:"version,omitempty"`
	ID        *flexString `json:"id"`
	Name      *string     `json:"name"`
	StartTime *string     `json:"startTime"`
	EndTime   *string     `json:"endTime"`
	Volume    *flexInt    `json:"volume"`
	Schedule  *string     `json:"schedule"`
	AudioPath *string     `json:"audioPath"`
	Status    *string     `json:"status,omitempty"`
}

// RecordError describes a record rejected while decoding a collection.
type RecordError struct {
	Index  int
	Reason error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Reason)
}

func (e RecordError) Unwrap() error { return e.Reason }

var errMissingField = errors.New("missing required field")

// RecordOf converts a task into the current record shape.
func RecordOf(t Task) Record {
	id := flexString(t.ID)
	vol := flexInt(t.Volume)
	status := string(t.Status)
	if status == "" {
		status = string(StatusWaiting)
	}
	return Record{
		Version:   RecordVersion,
		ID:        &id,
		Name:      &t.Name,
		StartTime: &t.StartTime,
		EndTime:   &t.EndTime,
		Volume:    &vol,
		Schedule:  &t.Schedule,
		AudioPath: &t.AudioPath,
		Status:    &status,
	}
}

// Task applies the defaulting rules and converts the record into a [Task].
//
// A missing status becomes [StatusWaiting]. Any other missing field rejects the record.
func (r Record) Task() (Task, error) {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("id", r.ID != nil)
	check("name", r.Name != nil)
	check("startTime", r.StartTime != nil)
	check("endTime", r.EndTime != nil)
	check("volume", r.Volume != nil)
	check("schedule", r.Schedule != nil)
	check("audioPath", r.AudioPath != nil)
	if len(missing) > 0 {
		return Task{}, fmt.Errorf("%w: %s", errMissingField, strings.Join(missing, ", "))
	}

	status := StatusWaiting
	if r.Status != nil {
		st, err := ParseStatus(*r.Status)
		if err != nil {
			return Task{}, err
		}
		status = st
	}

	return Task{
		ID:        string(*r.ID),
		Name:      *r.Name,
		StartTime: *r.StartTime,
		EndTime:   *r.EndTime,
		Volume:    int(*r.Volume),
		Schedule:  *r.Schedule,
		AudioPath: *r.AudioPath,
		Status:    status,
	}, nil
}

// DecodeRecords decodes a JSON array of records into tasks.
//
// Elements may be objects or legacy positional arrays
// (id, name, startTime, endTime, volume, schedule, audioPath[, status]).
// Malformed elements are skipped and reported; only a non-array document fails outright.
func DecodeRecords(data []byte) ([]Task, []RecordError, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("expected a JSON array of task records: %w", err)
	}

	tasks := make([]Task, 0, len(raw))
	var rejected []RecordError
	for i, elem := range raw {
		rec, err := decodeRecord(elem)
		if err == nil {
			var t Task
			if t, err = rec.Task(); err == nil {
				tasks = append(tasks, t)
				continue
			}
		}
		rejected = append(rejected, RecordError{Index: i, Reason: err})
	}
	return tasks, rejected, nil
}

// EncodeRecords encodes tasks as an indented JSON array of current-shape records.
func EncodeRecords(tasks []Task) ([]byte, error) {
	records := make([]Record, len(tasks))
	for i, t := range tasks {
		records[i] = RecordOf(t)
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task records: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeRecord(elem json.RawMessage) (Record, error) {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) == 0 {
		return Record{}, fmt.Errorf("empty record")
	}

	switch trimmed[0] {
	case '{':
		var rec Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return Record{}, fmt.Errorf("invalid record: %w", err)
		}
		return rec, nil
	case '[':
		return decodeLegacyRecord(trimmed)
	default:
		return Record{}, fmt.Errorf("record must be an object or an array")
	}
}

func decodeLegacyRecord(data []byte) (Record, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Record{}, fmt.Errorf("invalid legacy record: %w", err)
	}
	if len(fields) < 7 {
		return Record{}, fmt.Errorf("%w: legacy record has %d fields, want at least 7", errMissingField, len(fields))
	}

	var rec Record
	targets := []any{&rec.ID, &rec.Name, &rec.StartTime, &rec.EndTime, &rec.Volume, &rec.Schedule, &rec.AudioPath, &rec.Status}
	for i, f := range fields {
		if i >= len(targets) {
			break
		}
		if err := json.Unmarshal(f, targets[i]); err != nil {
			return Record{}, fmt.Errorf("invalid legacy record field %d: %w", i, err)
		}
	}
	return rec, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON integer or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected integer, got %s", b)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("expected integer, got %q", s)
	}
	*f = flexInt(n)
	return nil
}
