package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
)

type UIState int //Defines UIState as int to be used in rootModel

const (
	DashboardState UIState = iota //DashboardState is 0 increments after each line
	InputState                    //InputState is 1
	DetailState                   //DetailState is 2
	SettingsState
	DevicesState
)

// Dashboard tabs
const (
	TabQueued = iota
	TabActive
	TabDone
)

type (
	tickMsg         time.Time
	recordsMsg      []types.DownloadRecord
	eventsClosedMsg struct{}
	actionResultMsg struct {
		action string
		err    error
	}
)

type RootModel struct {
	Service  core.DownloadService
	Settings *config.Settings

	records []types.DownloadRecord
	devices []events.DevicePort

	width  int
	height int
	state  UIState

	inputs       []textinput.Model // URL, Path, Filename
	focusedInput int

	activeTab int
	cursor    int

	progress progress.Model
	help     help.Model

	// Aggregate speed samples in MB/s, newest last
	SpeedHistory []float64

	notification        string
	notificationExpires time.Time

	// Settings page
	SettingsActiveTab   int
	SettingsSelectedRow int
	SettingsIsEditing   bool
	SettingsInput       textinput.Model

	events     <-chan any
	stopEvents func()
	newID      func() string
	now        func() time.Time
}

// NewRootModel builds the dashboard around svc. settings may be nil when the
// dashboard is attached to a remote daemon.
func NewRootModel(svc core.DownloadService, settings *config.Settings) RootModel {
	urlInput := textinput.New()
	urlInput.Placeholder = "https://example.com/firmware.zip"
	urlInput.Focus()
	urlInput.Width = InputWidth
	urlInput.Prompt = ""

	pathInput := textinput.New()
	pathInput.Placeholder = "."
	pathInput.Width = InputWidth
	pathInput.Prompt = ""

	filenameInput := textinput.New()
	filenameInput.Placeholder = "(auto-detect)"
	filenameInput.Width = InputWidth
	filenameInput.Prompt = ""

	settingsInput := textinput.New()
	settingsInput.Width = InputWidth
	settingsInput.Prompt = ""

	if settings == nil {
		settings = config.DefaultSettings()
	}

	m := RootModel{
		Service:       svc,
		Settings:      settings,
		inputs:        []textinput.Model{urlInput, pathInput, filenameInput},
		state:         DashboardState,
		activeTab:     TabActive,
		progress:      progress.New(progress.WithDefaultGradient()),
		help:          help.New(),
		SettingsInput: settingsInput,
		newID:         uuid.NewString,
		now:           time.Now,
	}

	if svc != nil {
		if ch, stop, err := svc.StreamEvents(context.Background()); err == nil {
			m.events, m.stopEvents = ch, stop
		}
	}
	return m
}

func (m RootModel) Init() tea.Cmd {
	return tea.Batch(listenForEvents(m.events), refreshRecords(m.Service), tick())
}

func listenForEvents(sub <-chan any) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return eventsClosedMsg{}
		}
		return msg
	}
}

func refreshRecords(svc core.DownloadService) tea.Cmd {
	if svc == nil {
		return nil
	}
	return func() tea.Msg {
		records, err := svc.List()
		if err != nil {
			return actionResultMsg{action: "refresh", err: err}
		}
		return recordsMsg(records)
	}
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// visibleRecords returns the records of the active tab.
func (m RootModel) visibleRecords() []types.DownloadRecord {
	var out []types.DownloadRecord
	for _, r := range m.records {
		if tabOf(r.Status) == m.activeTab {
			out = append(out, r)
		}
	}
	return out
}

func tabOf(s types.Status) int {
	switch s {
	case types.StatusDownloading:
		return TabActive
	case types.StatusCompleted, types.StatusError:
		return TabDone
	default:
		return TabQueued
	}
}

// GetSelectedDownload returns the record under the cursor, or nil.
func (m RootModel) GetSelectedDownload() *types.DownloadRecord {
	visible := m.visibleRecords()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return nil
	}
	rec := visible[m.cursor]
	return &rec
}

// CalculateStats counts records per tab.
func (m RootModel) CalculateStats() (active, queued, done int) {
	for _, r := range m.records {
		switch tabOf(r.Status) {
		case TabActive:
			active++
		case TabDone:
			done++
		default:
			queued++
		}
	}
	return
}

// totalSpeed sums the speed of downloading records in MB/s.
func (m RootModel) totalSpeed() float64 {
	total := 0.0
	for _, r := range m.records {
		if r.Status == types.StatusDownloading {
			total += r.Speed
		}
	}
	return total / Megabyte
}

func (m *RootModel) clampCursor() {
	n := len(m.visibleRecords())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *RootModel) notify(text string) {
	m.notification = text
	m.notificationExpires = m.now().Add(NotificationDuration)
}
