package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTasksLoaded MsgKind = iota
	MsgEngineEvent
	MsgEventsClosed
	MsgActionDone
)

// tasksLoadedMsg is the constructor for [MsgTasksLoaded]
func tasksLoadedMsg(tasks []models.Task) Msg {
	return Msg{kind: MsgTasksLoaded, data: tasks}
}

// engineEventMsg is the constructor for [MsgEngineEvent]
func engineEventMsg(ev engine.Event) Msg {
	return Msg{kind: MsgEngineEvent, data: ev}
}

// eventsClosedMsg is the constructor for [MsgEventsClosed]
func eventsClosedMsg() Msg {
	return Msg{kind: MsgEventsClosed}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action string, err error) Msg {
	return Msg{
		kind: MsgActionDone,
		data: actionResult{action: action, err: err},
	}
}

type actionResult struct {
	action string
	err    error
}
