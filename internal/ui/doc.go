// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI shows the task list with live status and playback progress:
//  1. [TaskListView] : Browse tasks, play, pause, stop or pause them for today
//  2. [ConfirmDeleteView] : Confirm removal of the selected task
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Engine events arrive through a channel read by a single pending command; engine operations run as
// separate commands so the event reader never waits on the engine.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, space, s, t, d, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
