// Package models defines the task data model shared by the scheduler, playback and persistence layers.
//
// # Tasks
//
// A [Task] pairs an audio file with a start time and a [Schedule]. Time and schedule fields keep
// their persisted string form; [ParseClock] and [ParseSchedule] turn them into values on use.
//
// # Schedules
//
// A schedule is either a single date ("2024-01-01") or a set of weekdays ("Mon, Wed").
// The two forms never overlap: a comma always means the weekday form.
//
// # Records
//
// [Record] is the on-disk and exchange shape. [DecodeRecords] accepts the current object shape,
// legacy positional arrays and records missing "status", and reports every rejected element
// as a [RecordError] instead of failing the whole collection.
package models
