// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// MockDevice is a scriptable playback device. Playback never ends on its own; call [MockDevice.Finish].
type MockDevice struct {
	mu       sync.Mutex
	duration time.Duration
	loadErr  error
	busy     bool
	paused   bool
	elapsed  time.Duration
	volume   int
	loaded   []string
	calls    []string
	hang     chan struct{}
}

// NewMockDevice creates a [MockDevice] reporting duration for every loaded file.
func NewMockDevice(duration time.Duration) *MockDevice {
	return &MockDevice{duration: duration}
}

// FailLoads makes subsequent LoadAndPlay calls return err. A nil err restores normal loading.
func (m *MockDevice) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Hang makes IsBusy block until the returned release function is called.
func (m *MockDevice) Hang() (release func()) {
	m.mu.Lock()
	ch := make(chan struct{})
	m.hang = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.hang = nil
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *MockDevice) LoadAndPlay(path string, volume int) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "load")
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	m.loaded = append(m.loaded, path)
	m.busy = true
	m.paused = false
	m.elapsed = 0
	m.volume = volume
	return m.duration, nil
}

func (m *MockDevice) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pause")
	m.paused = true
	return nil
}

func (m *MockDevice) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "resume")
	m.paused = false
	return nil
}

func (m *MockDevice) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")
	m.busy = false
	m.paused = false
	return nil
}

func (m *MockDevice) IsBusy() bool {
	m.mu.Lock()
	hang := m.hang
	m.mu.Unlock()
	if hang != nil {
		<-hang
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *MockDevice) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

func (m *MockDevice) SetVolume(v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "volume")
	m.volume = v
	return nil
}

// Probe reports the configured duration.
func (m *MockDevice) Probe(path string) (time.Duration, error) {
	return m.duration, nil
}

// Advance moves the reported playback position forward.
func (m *MockDevice) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed += d
}

// Finish ends the current stream as if it had played to the end.
func (m *MockDevice) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	m.elapsed = m.duration
}

// Loaded returns the paths passed to LoadAndPlay, in order.
func (m *MockDevice) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loaded...)
}

// Calls returns the device primitives invoked so far, in order.
func (m *MockDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Volume returns the last volume set.
func (m *MockDevice) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Paused reports whether the device is paused.
func (m *MockDevice) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// TaskStore mirrors the repositories task store contract.
type TaskStore interface {
	LoadAll() ([]models.Task, []models.RecordError, error)
	SaveAll(tasks []models.Task) ([]models.Task, error)
}

// FailingStore wraps a TaskStore and fails saves on demand.
type FailingStore struct {
	TaskStore
	mu    sync.Mutex
	fail  bool
	saves int
}

// NewFailingStore wraps inner. Saves pass through until [FailingStore.FailSaves] is called.
func NewFailingStore(inner TaskStore) *FailingStore {
	return &FailingStore{TaskStore: inner}
}

// FailSaves toggles save failures.
func (f *FailingStore) FailSaves(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *FailingStore) SaveAll(tasks []models.Task) ([]models.Task, error) {
	f.mu.Lock()
	f.saves++
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("%w: disk full", shared.ErrPersistenceFailure)
	}
	return f.TaskStore.SaveAll(tasks)
}

// LastSaved forwards to the wrapped store when it tracks save times.
func (f *FailingStore) LastSaved() (time.Time, error) {
	if d, ok := f.TaskStore.(interface{ LastSaved() (time.Time, error) }); ok {
		return d.LastSaved()
	}
	return time.Time{}, nil
}

// Saves returns the number of SaveAll calls, failed ones included.
func (f *FailingStore) Saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MustAudioFile creates an empty audio file named name in dir and returns its path.
func MustAudioFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		t.Fatalf("Failed to create audio file %s: %v", path, err)
	}
	return path
}

// NewTask returns a valid waiting task with a fresh key and the fallback end time.
func NewTask(name, start, schedule, audio string) models.Task {
	end := start
	if c, err := models.ParseClock(start); err == nil {
		end = models.DeriveEnd(c, 0).String()
	}
	return models.Task{
		Key:       shared.GenerateID(),
		Name:      name,
		StartTime: start,
		EndTime:   end,
		Volume:    80,
		Schedule:  schedule,
		AudioPath: audio,
		Status:    models.StatusWaiting,
	}
}

// WaitFor polls cond every few milliseconds until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
