package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
	tu "github.com/desertthunder/chime/internal/testing"
)

type fakeEngine struct {
	mu     sync.Mutex
	tasks  []models.Task
	events chan engine.Event
	calls  []string
	err    error
}

func newFakeEngine(tasks ...models.Task) *fakeEngine {
	return &fakeEngine{tasks: tasks, events: make(chan engine.Event, 8)}
}

func (f *fakeEngine) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) Tasks() []models.Task          { return f.tasks }
func (f *fakeEngine) Events() <-chan engine.Event   { return f.events }
func (f *fakeEngine) PlayTask(id string) error      { return f.record("play " + id) }
func (f *fakeEngine) PauseOrResume(id string) error { return f.record("pause " + id) }
func (f *fakeEngine) StopActive() error             { return f.record("stop") }
func (f *fakeEngine) TogglePauseToday(ids ...string) error {
	return f.record("pause-today " + strings.Join(ids, ","))
}
func (f *fakeEngine) DeleteTasks(ids ...string) error {
	return f.record("delete " + strings.Join(ids, ","))
}

func sampleTasks() []models.Task {
	first := tu.NewTask("Morning bell", "08:00:00", "Mon, Wed", "/audio/bell.mp3")
	first.ID = "1"
	second := tu.NewTask("Lunch", "12:00:00", "Mon", "/audio/lunch.mp3")
	second.ID = "2"
	second.Status = models.StatusError
	return []models.Task{first, second}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// loaded returns a sized model with the fake engine's tasks in the list.
func loaded(t *testing.T, eng *fakeEngine) *Model {
	t.Helper()
	m := NewModel(eng)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(tasksLoadedMsg(eng.Tasks()))
	return m
}

// exec runs cmd and feeds the resulting message back into the model.
func exec(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
}

func TestModel(t *testing.T) {
	t.Run("renders tasks", func(t *testing.T) {
		m := loaded(t, newFakeEngine(sampleTasks()...))
		view := m.View()
		for _, want := range []string{"Scheduled tasks", "1. Morning bell", "2. Lunch", "Error"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
	})

	t.Run("key actions", func(t *testing.T) {
		tc := []struct {
			name string
			key  tea.KeyMsg
			want string
		}{
			{"play", tea.KeyMsg{Type: tea.KeyEnter}, "play 1"},
			{"pause", runeKey('p'), "pause 1"},
			{"stop", runeKey('s'), "stop"},
			{"pause today", runeKey('t'), "pause-today 1"},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				eng := newFakeEngine(sampleTasks()...)
				m := loaded(t, eng)
				_, cmd := m.Update(tt.key)
				exec(t, m, cmd)

				calls := eng.Calls()
				if len(calls) != 1 || calls[0] != tt.want {
					t.Errorf("expected call %q, got %v", tt.want, calls)
				}
			})
		}
	})

	t.Run("delete asks for confirmation", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		m := loaded(t, eng)

		m.Update(runeKey('d'))
		if m.view != ConfirmDeleteView {
			t.Fatalf("expected confirm view, got %v", m.view)
		}
		if !strings.Contains(m.View(), "Delete 'Morning bell'?") {
			t.Errorf("unexpected confirm view: %s", m.View())
		}

		m.Update(runeKey('n'))
		if m.view != TaskListView || len(eng.Calls()) != 0 {
			t.Fatalf("declining should return to the list without deleting, calls=%v", eng.Calls())
		}

		m.Update(runeKey('d'))
		_, cmd := m.Update(runeKey('y'))
		exec(t, m, cmd)
		if calls := eng.Calls(); len(calls) != 1 || calls[0] != "delete 1" {
			t.Errorf("expected delete 1, got %v", calls)
		}
	})

	t.Run("action error is shown", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		eng.err = shared.ErrResourceMissing
		m := loaded(t, eng)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		exec(t, m, cmd)
		if !errors.Is(m.err, shared.ErrResourceMissing) {
			t.Errorf("expected resource missing error, got %v", m.err)
		}
		if !strings.Contains(m.View(), "Error:") {
			t.Error("error should be rendered")
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := loaded(t, newFakeEngine(sampleTasks()...))
		_, cmd := m.Update(runeKey('q'))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestWaitForEvent(t *testing.T) {
	t.Run("progress", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		m := loaded(t, eng)

		eng.events <- engine.Event{
			Kind:     engine.EventProgress,
			TaskKey:  "k",
			TaskName: "Morning bell",
			Status:   models.StatusPlaying,
			Elapsed:  90 * time.Second,
			Duration: 3 * time.Minute,
			Percent:  50,
		}
		_, cmd := m.Update(m.waitForEvent()())
		if m.playing == nil {
			t.Fatal("expected playing state")
		}
		if view := m.View(); !strings.Contains(view, "▶ Morning bell  1:30 / 3:00") {
			t.Errorf("view missing progress line:\n%s", view)
		}
		if cmd == nil {
			t.Error("progress should keep listening for events")
		}
	})

	t.Run("completion clears progress", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		m := loaded(t, eng)
		m.playing = &engine.Event{TaskKey: "k", TaskName: "Morning bell"}

		eng.events <- engine.Event{Kind: engine.EventCompleted, TaskKey: "k", Message: "Finished: Morning bell"}
		m.Update(m.waitForEvent()())
		if m.playing != nil {
			t.Error("completion should clear the progress line")
		}
		if !strings.Contains(m.View(), "Finished: Morning bell") {
			t.Error("completion message should be shown")
		}
	})

	t.Run("pause marks the progress line", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		m := loaded(t, eng)
		m.playing = &engine.Event{TaskKey: "k", TaskName: "Morning bell", Status: models.StatusPlaying, Duration: 3 * time.Minute}

		eng.events <- engine.Event{Kind: engine.EventStatusChanged, TaskKey: "k", Status: models.StatusPaused}
		m.Update(m.waitForEvent()())
		if m.playing == nil || m.playing.Status != models.StatusPaused {
			t.Fatalf("expected paused progress state, got %+v", m.playing)
		}
		if !strings.Contains(m.View(), "(paused)") {
			t.Error("paused label should be shown")
		}

		eng.events <- engine.Event{Kind: engine.EventStatusChanged, TaskKey: "k", Status: models.StatusWaiting}
		m.Update(m.waitForEvent()())
		if m.playing != nil {
			t.Error("stopping should clear the progress line")
		}
	})

	t.Run("persistence failure", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		m := loaded(t, eng)

		eng.events <- engine.Event{Kind: engine.EventPersistenceFailed, Err: shared.ErrPersistenceFailure}
		m.Update(m.waitForEvent()())
		if !errors.Is(m.err, shared.ErrPersistenceFailure) {
			t.Errorf("expected persistence failure, got %v", m.err)
		}
	})

	t.Run("closed channel", func(t *testing.T) {
		eng := newFakeEngine(sampleTasks()...)
		m := loaded(t, eng)
		close(eng.events)

		_, cmd := m.Update(m.waitForEvent()())
		if cmd != nil {
			t.Error("no further commands expected after the channel closes")
		}
		if !m.closed {
			t.Error("expected closed state")
		}
	})
}
