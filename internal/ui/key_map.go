package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up         key.Binding
	down       key.Binding
	play       key.Binding
	pause      key.Binding
	stop       key.Binding
	pauseToday key.Binding
	remove     key.Binding
	yes        key.Binding
	no         key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		play:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		pause:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space/p", "pause/resume")),
		stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		pauseToday: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "pause today")),
		remove:     key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		yes:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:         key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.play, k.pause, k.stop, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.play},
		{k.pause, k.stop, k.pauseToday},
		{k.remove, k.help, k.quit},
	}
}
