package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Task errors
	ErrResourceMissing    = fmt.Errorf("audio resource missing")
	ErrDeviceFailure      = fmt.Errorf("playback device failure")
	ErrMalformedSchedule  = fmt.Errorf("malformed schedule")
	ErrMalformedTime      = fmt.Errorf("malformed time")
	ErrPersistenceFailure = fmt.Errorf("failed to persist tasks")
	ErrTaskNotFound       = fmt.Errorf("task not found")
	ErrInvalidTask        = fmt.Errorf("invalid task")
	ErrInvalidTransition  = fmt.Errorf("invalid status transition")
	ErrMalformedRecord    = fmt.Errorf("malformed task record")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrMissingArgument   = fmt.Errorf("missing required argument")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrUnsupportedFormat = fmt.Errorf("unsupported format")
)
