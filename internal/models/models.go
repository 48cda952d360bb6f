// package models defines the task data model for the chime scheduler
package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of a [Task].
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusPlaying     Status = "playing"
	StatusPaused      Status = "paused"
	StatusPausedToday Status = "paused_today"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// legacyStatus maps display labels written by older builds to their canonical [Status].
var legacyStatus = map[string]Status{
	"等待播放":        StatusWaiting,
	"正在播放":        StatusPlaying,
	"已暂停":         StatusPaused,
	"Pause today": StatusPausedToday,
	"pause today": StatusPausedToday,
	"已播放":         StatusCompleted,
	"错误":          StatusError,
	"文件丢失":        StatusError,
	"播放失败":        StatusError,
}

// ParseStatus resolves a persisted status string, accepting canonical names in any case and legacy labels.
//
// An empty string defaults to [StatusWaiting].
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusWaiting, nil
	}

	switch st := Status(strings.ToLower(s)); st {
	case StatusWaiting, StatusPlaying, StatusPaused, StatusPausedToday, StatusCompleted, StatusError:
		return st, nil
	}

	if st, ok := legacyStatus[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Label returns a human readable status label.
func (s Status) Label() string {
	switch s {
	case StatusWaiting:
		return "Waiting"
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusPausedToday:
		return "Paused today"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	default:
		return string(s)
	}
}

// Active reports whether the status implies a live playback session.
func (s Status) Active() bool {
	return s == StatusPlaying || s == StatusPaused
}

// FallbackDuration is used to derive an end time when the audio duration cannot be probed.
const FallbackDuration = 5 * time.Minute

// SupportedExtensions lists audio file extensions accepted for [Task.AudioPath].
var SupportedExtensions = []string{".mp3", ".wav", ".ogg", ".flac"}

// Task is a schedulable unit pairing an audio resource with a time and date trigger.
//
// StartTime, EndTime and Schedule are kept in their persisted string form and parsed on use,
// so a malformed value surfaces as a per-task error rather than a load failure.
type Task struct {
	Key       string `json:"-"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Volume    int    `json:"volume"`
	Schedule  string `json:"schedule"`
	AudioPath string `json:"audioPath"`
	Status    Status `json:"status"`
}

// Start parses the task's start time.
func (t Task) Start() (Clock, error) {
	return ParseClock(t.StartTime)
}

// End parses the task's end time.
func (t Task) End() (Clock, error) {
	return ParseClock(t.EndTime)
}

// ParsedSchedule parses the task's schedule.
func (t Task) ParsedSchedule() (Schedule, error) {
	return ParseSchedule(t.Schedule)
}

// Validate checks every field of the task and returns the first problem found.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := ParseClock(t.StartTime); err != nil {
		return fmt.Errorf("start time: %w", err)
	}
	if t.EndTime != "" {
		if _, err := ParseClock(t.EndTime); err != nil {
			return fmt.Errorf("end time: %w", err)
		}
	}
	if t.Volume < 0 || t.Volume > 100 {
		return fmt.Errorf("volume %d out of range 0-100", t.Volume)
	}
	if _, err := ParseSchedule(t.Schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if strings.TrimSpace(t.AudioPath) == "" {
		return fmt.Errorf("audio path is required")
	}
	if !SupportedAudio(t.AudioPath) {
		return fmt.Errorf("unsupported audio format %q", filepath.Ext(t.AudioPath))
	}
	return nil
}

// Normalize rewrites time and schedule fields into canonical form, leaving unparsable values untouched.
func (t Task) Normalize() Task {
	if c, err := ParseClock(t.StartTime); err == nil {
		t.StartTime = c.String()
	}
	if c, err := ParseClock(t.EndTime); err == nil {
		t.EndTime = c.String()
	}
	if s, err := ParseSchedule(t.Schedule); err == nil {
		t.Schedule = s.String()
	}
	if t.Status == "" {
		t.Status = StatusWaiting
	}
	return t
}

// DeriveEnd computes the end time from the start time and the audio duration.
//
// A non-positive duration falls back to [FallbackDuration].
func DeriveEnd(start Clock, duration time.Duration) Clock {
	if duration <= 0 {
		duration = FallbackDuration
	}
	end, _ := start.Add(duration)
	return end
}

// SupportedAudio reports whether path has one of the [SupportedExtensions].
func SupportedAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
