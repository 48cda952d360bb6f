package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TaskListView ViewState = iota
	ConfirmDeleteView
)

// Engine is the subset of [engine.Engine] the TUI drives.
type Engine interface {
	Tasks() []models.Task
	Events() <-chan engine.Event
	PlayTask(id string) error
	PauseOrResume(id string) error
	StopActive() error
	TogglePauseToday(ids ...string) error
	DeleteTasks(ids ...string) error
}

// Model represents the TUI application state.
type Model struct {
	view     ViewState
	engine   Engine
	width    int
	height   int
	taskList list.Model
	progress progress.Model
	playing  *engine.Event
	pending  *models.Task
	status   string
	err      error
	closed   bool
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model driving eng.
func NewModel(eng Engine) *Model {
	tl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	tl.Title = "Scheduled tasks"
	tl.SetShowHelp(false)
	tl.KeyMap.Quit.SetEnabled(false)

	return &Model{
		view:     TaskListView,
		engine:   eng,
		taskList: tl,
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the task list and starts listening for engine events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadTasks(), m.waitForEvent())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskList.SetSize(msg.Width-4, msg.Height-8)
		m.progress.Width = max(msg.Width-8, 10)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TaskListView:
			return m.handleListKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmDeleteView:
		return m.renderConfirm()
	default:
		return m.renderList()
	}
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTasksLoaded:
		tasks := msg.data.([]models.Task)
		return m, m.taskList.SetItems(taskItems(tasks))

	case MsgEngineEvent:
		ev := msg.data.(engine.Event)
		switch ev.Kind {
		case engine.EventProgress:
			m.playing = &ev
			return m, m.waitForEvent()
		case engine.EventCompleted:
			m.playing = nil
			m.status = ev.Message
		case engine.EventStatusChanged:
			if m.playing != nil && m.playing.TaskKey == ev.TaskKey {
				if ev.Status.Active() {
					m.playing.Status = ev.Status
				} else {
					m.playing = nil
				}
			}
			m.status = ev.Message
		case engine.EventPersistenceFailed:
			m.err = ev.Err
		}
		return m, tea.Batch(m.loadTasks(), m.waitForEvent())

	case MsgEventsClosed:
		m.closed = true
		m.playing = nil
		return m, nil

	case MsgActionDone:
		res := msg.data.(actionResult)
		m.err = res.err
		if res.err == nil {
			m.status = res.action
		}
		return m, m.loadTasks()
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.taskList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.taskList, cmd = m.taskList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.stop):
		return m, m.run("stopped", m.engine.StopActive)
	}

	t, ok := m.selected()
	if ok {
		switch {
		case key.Matches(msg, m.keys.play):
			return m, m.run("playing "+t.Name, func() error { return m.engine.PlayTask(t.ID) })
		case key.Matches(msg, m.keys.pause):
			return m, m.run("toggled "+t.Name, func() error { return m.engine.PauseOrResume(t.ID) })
		case key.Matches(msg, m.keys.pauseToday):
			return m, m.run("toggled pause today for "+t.Name, func() error { return m.engine.TogglePauseToday(t.ID) })
		case key.Matches(msg, m.keys.remove):
			m.pending = &t
			m.view = ConfirmDeleteView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		t := m.pending
		m.pending = nil
		m.view = TaskListView
		if t == nil {
			return m, nil
		}
		return m, m.run("deleted "+t.Name, func() error { return m.engine.DeleteTasks(t.ID) })
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.pending = nil
		m.view = TaskListView
	}
	return m, nil
}

func (m *Model) selected() (models.Task, bool) {
	item, ok := m.taskList.SelectedItem().(taskItem)
	if !ok {
		return models.Task{}, false
	}
	return item.task, true
}

func (m *Model) loadTasks() tea.Cmd {
	return func() tea.Msg {
		return tasksLoadedMsg(m.engine.Tasks())
	}
}

// waitForEvent blocks on the engine event channel and delivers one event.
func (m *Model) waitForEvent() tea.Cmd {
	events := m.engine.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg()
		}
		return engineEventMsg(ev)
	}
}

func (m *Model) run(action string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(action, op())
	}
}

func (m *Model) renderList() string {
	out := m.taskList.View()

	if m.playing != nil {
		p := m.playing
		line := fmt.Sprintf("▶ %s  %s / %s", p.TaskName, shared.FormatDuration(p.Elapsed), shared.FormatDuration(p.Duration))
		if p.Status == models.StatusPaused {
			line += "  " + styles.warn.Render("(paused)")
		}
		out += fmt.Sprintf("\n\n%s\n%s", line, m.progress.ViewAs(p.Percent/100))
	}

	if m.err != nil {
		out += "\n\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	} else if m.status != "" {
		out += "\n\n" + styles.help.Render(m.status)
	}
	if m.closed {
		out += "\n" + styles.warn.Render("engine stopped")
	}

	return fmt.Sprintf("%s\n\n%s", out, m.help.View(m.keys))
}

func (m *Model) renderConfirm() string {
	if m.pending == nil {
		return ""
	}
	title := styles.title.Render(fmt.Sprintf("Delete '%s'?", m.pending.Name))
	info := fmt.Sprintf("\nStart: %s\nSchedule: %s\n", m.pending.StartTime, m.pending.Schedule)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
