package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/core"
)

// Run shows the dashboard until the user quits. It does not shut svc down.
func Run(svc core.DownloadService, settings *config.Settings) error {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())

	m := NewRootModel(svc, settings)
	defer func() {
		if m.stopEvents != nil {
			m.stopEvents()
		}
	}()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
