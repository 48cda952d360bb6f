// Package repositories persists the task collection.
//
// Two [TaskStore] implementations are provided:
//   - [JSONStore] : a single JSON file replaced through a temp file and rename
//   - [SQLiteStore] : the tasks table, replaced wholesale inside one transaction
//
// Both canonicalize on every save with [Canonicalize]: tasks are stably sorted by start time and
// their ids reassigned to the 1-based position. A failed save reports [shared.ErrPersistenceFailure]
// and leaves the previously persisted collection untouched.
//
// [ReadImportFile] and [WriteExportFile] move collections in and out of the record exchange format.
package repositories
