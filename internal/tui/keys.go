package tui

import "github.com/charmbracelet/bubbles/key"

// DashboardKeyMap holds the dashboard bindings.
type DashboardKeyMap struct {
	TabQueued key.Binding
	TabActive key.Binding
	TabDone   key.Binding
	Up        key.Binding
	Down      key.Binding
	Details   key.Binding
	Add       key.Binding
	Pause     key.Binding
	Resume    key.Binding
	Delete    key.Binding
	Clear     key.Binding
	Settings  key.Binding
	Devices   key.Binding
	Quit      key.Binding
}

// ShortHelp implements help.KeyMap.
func (k DashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Pause, k.Resume, k.Delete, k.Clear, k.Devices, k.Settings, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k DashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TabQueued, k.TabActive, k.TabDone},
		{k.Up, k.Down, k.Details},
		k.ShortHelp(),
	}
}

// InputKeyMap holds the add-download form bindings.
type InputKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Cancel key.Binding
}

// ShortHelp implements help.KeyMap.
func (k InputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k InputKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var Keys = DashboardKeyMap{
	TabQueued: key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "queued")),
	TabActive: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "active")),
	TabDone:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "done")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Details:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Pause:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Resume:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume/retry")),
	Delete:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
	Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear done")),
	Settings:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "settings")),
	Devices:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "devices")),
	Quit:      key.NewBinding(key.WithKeys("ctrl+q", "ctrl+c"), key.WithHelp("ctrl+q", "quit")),
}

var InputKeys = InputKeyMap{
	Next:   key.NewBinding(key.WithKeys("enter", "down"), key.WithHelp("enter", "next/start")),
	Prev:   key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "back")),
	Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}
