package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorNeonPurple = lipgloss.Color("#bd93f9")
	ColorNeonPink   = lipgloss.Color("#ff79c6")
	ColorNeonCyan   = lipgloss.Color("#8be9fd")
	ColorGray       = lipgloss.Color("#6272a4")
	ColorLightGray  = lipgloss.Color("#b4b8c8")
	ColorText       = lipgloss.Color("#f8f8f2")

	// Download states
	ColorStateDownloading = lipgloss.Color("#50fa7b")
	ColorStatePaused      = lipgloss.Color("#ffb86c")
	ColorStateQueued      = lipgloss.Color("#8be9fd")
	ColorStateDone        = lipgloss.Color("#bd93f9")
	ColorStateError       = lipgloss.Color("#ff5555")

	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPink).
			Bold(true)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Padding(DefaultPaddingY, DefaultPaddingX)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPink).
			Bold(true).
			Underline(true).
			Padding(DefaultPaddingY, DefaultPaddingX)

	ItemStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(ColorNeonPink).
				Bold(true)

	StatsLabelStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Width(12)

	StatsValueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	NotificationStyle = lipgloss.NewStyle().
				Foreground(ColorNeonCyan).
				Bold(true)
)
