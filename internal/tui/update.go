package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/engine"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// Update handles messages and updates the model
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.SpeedHistory = append(m.SpeedHistory, m.totalSpeed())
		if len(m.SpeedHistory) > SpeedHistoryLength {
			m.SpeedHistory = m.SpeedHistory[len(m.SpeedHistory)-SpeedHistoryLength:]
		}
		if m.notification != "" && m.now().After(m.notificationExpires) {
			m.notification = ""
		}
		return m, tea.Batch(tick(), refreshRecords(m.Service))

	case recordsMsg:
		m.records = msg
		m.clampCursor()
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			utils.Debug("TUI %s failed: %v", msg.action, msg.err)
			m.notify(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
			return m, nil
		}
		return m, refreshRecords(m.Service)

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case events.RegistryChangedMsg:
		m.records = msg.Records
		m.clampCursor()
		return m, listenForEvents(m.events)

	case events.DeviceChangedMsg:
		m.devices = msg.Ports
		return m, listenForEvents(m.events)

	case events.DownloadCompleteMsg:
		m.notify("Completed: " + msg.Filename)
		return m, listenForEvents(m.events)

	case events.DownloadErrorMsg:
		m.notify(fmt.Sprintf("Failed: %s (%s)", msg.Filename, msg.Kind))
		return m, listenForEvents(m.events)

	case events.ProgressMsg, events.DownloadStartedMsg, events.DownloadPausedMsg,
		events.DownloadResumedMsg, events.DownloadQueuedMsg, events.DownloadRemovedMsg:
		return m, listenForEvents(m.events)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case DashboardState:
			return m.updateDashboard(msg)
		case DetailState, DevicesState:
			if msg.String() == "esc" || msg.String() == "enter" || msg.String() == "q" {
				m.state = DashboardState
			}
			return m, nil
		case InputState:
			return m.updateInput(msg)
		case SettingsState:
			return m.updateSettings(msg)
		}

	case progress.FrameMsg:
		newModel, cmd := m.progress.Update(msg)
		if p, ok := newModel.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd
	}

	return m, nil
}

func (m RootModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		if m.stopEvents != nil {
			m.stopEvents()
		}
		return m, tea.Quit

	case key.Matches(msg, Keys.TabQueued):
		m.activeTab, m.cursor = TabQueued, 0
	case key.Matches(msg, Keys.TabActive):
		m.activeTab, m.cursor = TabActive, 0
	case key.Matches(msg, Keys.TabDone):
		m.activeTab, m.cursor = TabDone, 0

	case key.Matches(msg, Keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, Keys.Down):
		if m.cursor < len(m.visibleRecords())-1 {
			m.cursor++
		}

	case key.Matches(msg, Keys.Details):
		if m.GetSelectedDownload() != nil {
			m.state = DetailState
		}

	case key.Matches(msg, Keys.Add):
		m.state = InputState
		m.focusedInput = 0
		m.inputs[0].SetValue("")
		m.inputs[0].Focus()
		m.inputs[1].SetValue(m.Settings.General.DefaultDownloadDir)
		m.inputs[1].Blur()
		m.inputs[2].SetValue("")
		m.inputs[2].Blur()

	case key.Matches(msg, Keys.Pause):
		if d := m.GetSelectedDownload(); d != nil {
			return m, m.act("pause", d.ID, m.Service.Pause)
		}
	case key.Matches(msg, Keys.Resume):
		if d := m.GetSelectedDownload(); d != nil {
			return m, m.act("resume", d.ID, m.Service.Resume)
		}
	case key.Matches(msg, Keys.Delete):
		if d := m.GetSelectedDownload(); d != nil {
			return m, m.act("delete", d.ID, m.Service.Delete)
		}
	case key.Matches(msg, Keys.Clear):
		svc := m.Service
		return m, func() tea.Msg {
			return actionResultMsg{action: "clear", err: svc.ClearCompleted()}
		}

	case key.Matches(msg, Keys.Settings):
		m.state = SettingsState
		m.SettingsActiveTab, m.SettingsSelectedRow, m.SettingsIsEditing = 0, 0, false
	case key.Matches(msg, Keys.Devices):
		m.state = DevicesState
	}
	return m, nil
}

func (m RootModel) act(action, id string, fn func(string) error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{action: action, err: fn(id)}
	}
}

func (m RootModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, InputKeys.Cancel):
		m.state = DashboardState
		return m, nil

	case msg.String() == "enter":
		// URL -> Path -> Filename -> Start
		if m.focusedInput < len(m.inputs)-1 {
			m.inputs[m.focusedInput].Blur()
			m.focusedInput++
			m.inputs[m.focusedInput].Focus()
			return m, nil
		}
		item, ok := m.itemFromInputs()
		if !ok {
			// URL is mandatory
			m.inputs[m.focusedInput].Blur()
			m.focusedInput = 0
			m.inputs[0].Focus()
			return m, nil
		}
		m.state = DashboardState
		m.activeTab = TabQueued
		svc := m.Service
		return m, func() tea.Msg {
			_, err := svc.DownloadFile(item)
			return actionResultMsg{action: "add", err: err}
		}

	case msg.String() == "up" && m.focusedInput > 0:
		m.inputs[m.focusedInput].Blur()
		m.focusedInput--
		m.inputs[m.focusedInput].Focus()
		return m, nil

	case msg.String() == "down" && m.focusedInput < len(m.inputs)-1:
		m.inputs[m.focusedInput].Blur()
		m.focusedInput++
		m.inputs[m.focusedInput].Focus()
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusedInput], cmd = m.inputs[m.focusedInput].Update(msg)
	return m, cmd
}

// itemFromInputs builds the item for the add form. The name falls back to
// the URL's file name.
func (m RootModel) itemFromInputs() (types.Item, bool) {
	rawurl := strings.TrimSpace(m.inputs[0].Value())
	if rawurl == "" {
		return types.Item{}, false
	}
	path := strings.TrimSpace(m.inputs[1].Value())
	if path != "" {
		path = filepath.Clean(path)
	}
	name := strings.TrimSpace(m.inputs[2].Value())
	if name == "" {
		name = engine.DetermineFilename("", rawurl, nil)
	}
	return types.Item{
		ID:          m.newID(),
		Name:        name,
		DownloadURL: rawurl,
		Path:        path,
	}, true
}

func (m RootModel) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	categories := config.CategoryOrder()

	if m.SettingsIsEditing {
		switch msg.String() {
		case "esc":
			m.SettingsIsEditing = false
			m.SettingsInput.Blur()
		case "enter":
			cat := categories[m.SettingsActiveTab]
			if err := m.setSettingValue(cat, m.getCurrentSettingKey(), m.SettingsInput.Value()); err != nil {
				m.notify(err.Error())
			}
			m.SettingsIsEditing = false
			m.SettingsInput.Blur()
		default:
			var cmd tea.Cmd
			m.SettingsInput, cmd = m.SettingsInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.state = DashboardState
		settings := m.Settings
		return m, func() tea.Msg {
			return actionResultMsg{action: "save settings", err: config.SaveSettings(settings)}
		}
	case "1", "2", "3", "4":
		tab := int(msg.String()[0] - '1')
		if tab < len(categories) {
			m.SettingsActiveTab, m.SettingsSelectedRow = tab, 0
		}
	case "up", "k":
		if m.SettingsSelectedRow > 0 {
			m.SettingsSelectedRow--
		}
	case "down", "j":
		if m.SettingsSelectedRow < m.getSettingsCount()-1 {
			m.SettingsSelectedRow++
		}
	case "r":
		m.resetSettingToDefault(categories[m.SettingsActiveTab], m.getCurrentSettingKey(), config.DefaultSettings())
	case "enter":
		cat := categories[m.SettingsActiveTab]
		if m.getCurrentSettingType() == "bool" {
			_ = m.setSettingValue(cat, m.getCurrentSettingKey(), "")
			return m, nil
		}
		value := m.getSettingsValues(cat)[m.getCurrentSettingKey()]
		m.SettingsInput.SetValue(formatSettingValue(value, "raw"))
		m.SettingsInput.Focus()
		m.SettingsIsEditing = true
	}
	return m, nil
}
