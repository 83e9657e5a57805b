package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/registry"
)

// Define the Layout Ratios
const (
	ListWidthRatio = 0.6 // List takes 60% width
)

func (m RootModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.state {
	case InputState:
		return m.viewInput()
	case SettingsState:
		return m.viewSettings()
	case DevicesState:
		return m.viewDevices()
	case DetailState:
		if d := m.GetSelectedDownload(); d != nil {
			box := renderBtopBox("Download", m.renderFocusedDetails(d, 70), 74, 22, ColorNeonPink, false)
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
		}
	}

	// === MAIN DASHBOARD LAYOUT ===

	availableHeight := m.height - 2
	availableWidth := m.width - 4

	leftWidth := int(float64(availableWidth) * ListWidthRatio)
	rightWidth := availableWidth - leftWidth - 2

	headerHeight := 9
	listHeight := availableHeight - headerHeight
	if listHeight < 10 {
		listHeight = 10
	}

	graphHeight := availableHeight / 3
	if graphHeight < 9 {
		graphHeight = 9
	}
	detailHeight := availableHeight - graphHeight
	if detailHeight < 10 {
		detailHeight = 10
	}

	// --- HEADER ---
	logoText := `
██████   ██████   ██████ ██   ██ ██████  ██
██   ██ ██    ██ ██      ██  ██  ██   ██ ██
██████  ██    ██ ██      █████   ██   ██ ██
██   ██ ██    ██ ██      ██  ██  ██   ██ ██
██   ██  ██████   ██████ ██   ██ ██████  ███████`

	active, queued, done := m.CalculateStats()

	headerBox := lipgloss.NewStyle().
		Width(leftWidth).
		Height(headerHeight).
		Padding(1, 2).
		Render(LogoStyle.Render(logoText))

	graphBox := m.renderGraphBox(rightWidth, graphHeight)

	// --- DOWNLOAD LIST ---
	tabBar := renderTabs(m.activeTab, active, queued, done)

	var listContent string
	visible := m.visibleRecords()
	if len(visible) == 0 {
		listContent = lipgloss.Place(leftWidth-8, listHeight-6, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorNeonCyan).Render("No downloads"))
	} else {
		listContent = m.renderList(visible, leftWidth-8, listHeight-6)
	}

	listInner := lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		tabBar,
		"",
		listContent,
	))
	listBox := renderBtopBox("Downloads", listInner, leftWidth, listHeight, ColorNeonPink, true)

	// --- DETAILS PANE ---
	var detailContent string
	if d := m.GetSelectedDownload(); d != nil {
		detailContent = m.renderFocusedDetails(d, rightWidth-4)
	} else {
		detailContent = lipgloss.Place(rightWidth-4, detailHeight-4, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorNeonCyan).Render("No Download Selected"))
	}
	detailBox := renderBtopBox("File Details", detailContent, rightWidth, detailHeight, ColorGray, true)

	leftColumn := lipgloss.JoinVertical(lipgloss.Left, headerBox, listBox)
	rightColumn := lipgloss.JoinVertical(lipgloss.Left, graphBox, detailBox)
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftColumn, rightColumn)

	var footer string
	if m.notification != "" {
		footer = lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center,
			NotificationStyle.Render(m.notification))
	} else {
		footer = lipgloss.NewStyle().Padding(0, 1).Render(m.help.View(Keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m RootModel) viewInput() string {
	labelStyle := lipgloss.NewStyle().Width(10).Foreground(ColorLightGray)

	content := lipgloss.JoinVertical(lipgloss.Left,
		"",
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("URL:"), m.inputs[0].View()),
		"",
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Path:"), m.inputs[1].View()),
		"",
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Filename:"), m.inputs[2].View()),
		"",
		"",
		m.help.View(InputKeys),
	)
	paddedContent := lipgloss.NewStyle().Padding(0, 2).Render(content)

	box := renderBtopBox("Add Download", paddedContent, 80, 11, ColorNeonPink, false)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m RootModel) viewDevices() string {
	var lines []string
	if len(m.devices) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorNeonCyan).Render("No devices connected"))
	}
	for _, d := range m.devices {
		kind := lipgloss.NewStyle().Foreground(deviceColor(d.Kind)).Bold(true).Width(10).Render(d.Kind)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
			kind,
			ItemStyle.Width(24).Render(truncateString(d.Name, 20)),
			lipgloss.NewStyle().Foreground(ColorLightGray).Render(d.VendorID+":"+d.ProductID),
		))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(ColorGray).Render("[Esc] Back"))

	content := lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	box := renderBtopBox("Devices", content, 60, len(lines)+4, ColorNeonCyan, false)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func deviceColor(kind string) lipgloss.Color {
	switch kind {
	case "adb":
		return ColorStateDownloading
	case "fastboot":
		return ColorStatePaused
	}
	return ColorLightGray
}

func (m RootModel) renderGraphBox(width, height int) string {
	axisWidth := 6
	graphContentWidth := width - axisWidth - 5
	if graphContentWidth < 10 {
		graphContentWidth = 10
	}

	maxSpeed := graphScale(m.SpeedHistory)

	graphContentHeight := height - 4
	if graphContentHeight < 1 {
		graphContentHeight = 1
	}

	graphVisual := renderMultiLineGraph(m.SpeedHistory, graphContentWidth, graphContentHeight, maxSpeed, ColorNeonPink)

	axisStyle := lipgloss.NewStyle().Width(axisWidth).Foreground(ColorGray).Align(lipgloss.Right)
	labelTop := axisStyle.Render(fmt.Sprintf("%.0f", maxSpeed))
	labelMid := axisStyle.Render(fmt.Sprintf("%.1f", maxSpeed/2))
	labelBot := axisStyle.Render("0")

	var axisColumn string
	if graphContentHeight >= 5 {
		spacesTotal := graphContentHeight - 3
		spaceTop := spacesTotal / 2
		spaceBot := spacesTotal - spaceTop
		axisColumn = lipgloss.JoinVertical(lipgloss.Right,
			labelTop,
			strings.Repeat("\n", spaceTop),
			labelMid,
			strings.Repeat("\n", spaceBot),
			labelBot,
		)
	} else {
		spaces := max(graphContentHeight-2, 0)
		axisColumn = lipgloss.JoinVertical(lipgloss.Right,
			labelTop,
			strings.Repeat("\n", spaces),
			labelBot,
		)
	}

	fullGraphRow := lipgloss.JoinHorizontal(lipgloss.Top,
		axisColumn,
		lipgloss.NewStyle().MarginLeft(1).Render(graphVisual),
	)

	currentSpeed := 0.0
	if len(m.SpeedHistory) > 0 {
		currentSpeed = m.SpeedHistory[len(m.SpeedHistory)-1]
	}
	titleStyle := lipgloss.NewStyle().
		Width(width - 4).
		Align(lipgloss.Right).
		Foreground(ColorNeonPink).
		Bold(true)

	speedContent := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Current: %.2f MB/s", currentSpeed)),
		"",
		fullGraphRow,
	)
	return renderBtopBox("Network Activity", speedContent, width, height, ColorNeonCyan, false)
}

// graphScale picks the axis maximum: 10% headroom, rounded up to a multiple
// of 5 (or a whole number below 5).
func graphScale(history []float64) float64 {
	maxSpeed := 1.0
	for _, v := range history {
		if v > maxSpeed {
			maxSpeed = v
		}
	}
	maxSpeed *= 1.1
	if maxSpeed >= 5 {
		return float64(int((maxSpeed+4.99)/5) * 5)
	}
	return float64(int(maxSpeed + 0.99))
}

// renderList draws one row per record, scrolling to keep the cursor visible.
func (m RootModel) renderList(records []types.DownloadRecord, width, height int) string {
	rowsPerItem := 2
	capacity := max(height/rowsPerItem, 1)
	start := 0
	if m.cursor >= capacity {
		start = m.cursor - capacity + 1
	}
	end := min(start+capacity, len(records))

	nameWidth := max(width-22, 10)
	var rows []string
	for i := start; i < end; i++ {
		rec := records[i]
		nameStyle := ItemStyle
		prefix := "  "
		if i == m.cursor {
			nameStyle = SelectedItemStyle
			prefix = "> "
		}
		status := lipgloss.NewStyle().
			Foreground(statusColor(rec.Status)).
			Width(20).
			Align(lipgloss.Right).
			Render(registry.StatusText(rec))
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Left,
				nameStyle.Width(nameWidth).Render(prefix+truncateString(rec.Name, nameWidth-5)),
				status,
			),
			lipgloss.NewStyle().Foreground(ColorGray).Render("  "+registry.ProgressText(rec)+"  "+registry.SpeedText(rec)),
		)
	}
	return strings.Join(rows, "\n")
}

func statusColor(s types.Status) lipgloss.Color {
	switch s {
	case types.StatusDownloading:
		return ColorStateDownloading
	case types.StatusPaused:
		return ColorStatePaused
	case types.StatusCompleted:
		return ColorStateDone
	case types.StatusError:
		return ColorStateError
	}
	return ColorStateQueued
}

// Helper to render the detailed info pane
func (m RootModel) renderFocusedDetails(d *types.DownloadRecord, w int) string {
	pct := float64(d.Progress) / 100

	bar := m.progress
	bar.Width = max(w-12, 20)
	progView := bar.ViewAs(pct)

	contentWidth := w - 6
	divider := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render(strings.Repeat("─", max(contentWidth, 1)))

	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Left, StatsLabelStyle.Render(label), StatsValueStyle.Render(value))
	}

	fileInfo := lipgloss.JoinVertical(lipgloss.Left,
		row("Filename:", truncateString(d.Name, contentWidth-14)),
		row("Status:", lipgloss.NewStyle().Foreground(statusColor(d.Status)).Render(registry.StatusText(*d))),
		row("Size:", registry.ProgressText(*d)),
	)

	progressSection := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true).Render("Progress"),
		"",
		lipgloss.NewStyle().MarginLeft(1).Render(progView),
	)

	stats := []string{
		row("Speed:", registry.SpeedText(*d)),
		row("ETA:", registry.ETAText(*d)),
	}
	if d.StartTime > 0 {
		end := m.now()
		if d.EndTime > 0 {
			end = time.UnixMilli(d.EndTime)
		}
		elapsed := end.Sub(time.UnixMilli(d.StartTime)).Round(time.Second)
		stats = append(stats, row("Elapsed:", elapsed.String()))
	}
	if d.Error != "" {
		stats = append(stats, row("Error:", lipgloss.NewStyle().Foreground(ColorStateError).Render(truncateString(d.Error, contentWidth-14))))
	}

	location := d.DownloadPath
	if location == "" {
		location = "(default)"
	}
	urlSection := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Left,
			StatsLabelStyle.Render("URL:"),
			lipgloss.NewStyle().Foreground(ColorLightGray).Render(truncateString(d.DownloadURL, contentWidth-14)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			StatsLabelStyle.Render("Path:"),
			lipgloss.NewStyle().Foreground(ColorLightGray).Render(truncateString(location, contentWidth-14)),
		),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		"",
		fileInfo,
		divider,
		"",
		progressSection,
		divider,
		"",
		lipgloss.JoinVertical(lipgloss.Left, stats...),
		divider,
		"",
		urlSection,
	)

	return lipgloss.NewStyle().
		Padding(0, 2).
		Render(content)
}

func truncateString(s string, i int) string {
	if i < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > i {
		return string(runes[:i]) + "..."
	}
	return s
}

func renderTabs(activeTab, activeCount, queuedCount, doneCount int) string {
	tabs := []struct {
		Label string
		Count int
	}{
		{"Queued", queuedCount},
		{"Active", activeCount},
		{"Done", doneCount},
	}
	var rendered []string
	for i, t := range tabs {
		style := TabStyle
		if i == activeTab {
			style = ActiveTabStyle
		}
		rendered = append(rendered, style.Render(fmt.Sprintf("%s (%d)", t.Label, t.Count)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderBtopBox creates a btop-style box with title embedded in the top border
// titleRight: if true, title appears on the right side; if false, title appears on the left
// Example (left):  ╭─ TITLE ─────────────────────────────────╮
// Example (right): ╭─────────────────────────────────── TITLE ─╮
func renderBtopBox(title string, content string, width, height int, borderColor lipgloss.Color, titleRight bool) string {
	const (
		topLeft     = "╭"
		topRight    = "╮"
		bottomLeft  = "╰"
		bottomRight = "╯"
		horizontal  = "─"
		vertical    = "│"
	)

	innerWidth := max(width-2, 1)

	titleText := fmt.Sprintf(" %s ", title)
	remainingWidth := max(innerWidth-lipgloss.Width(titleText)-1, 0)

	border := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(ColorNeonCyan).Bold(true)

	var topBorder string
	if titleRight {
		topBorder = border.Render(topLeft+strings.Repeat(horizontal, remainingWidth)) +
			titleStyle.Render(titleText) +
			border.Render(horizontal+topRight)
	} else {
		topBorder = border.Render(topLeft+horizontal) +
			titleStyle.Render(titleText) +
			border.Render(strings.Repeat(horizontal, remainingWidth)+topRight)
	}

	bottomBorder := border.Render(bottomLeft + strings.Repeat(horizontal, innerWidth) + bottomRight)

	contentLines := strings.Split(content, "\n")
	innerHeight := height - 2

	var wrappedLines []string
	for i := 0; i < innerHeight; i++ {
		line := ""
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lineWidth := lipgloss.Width(line)
		if lineWidth < innerWidth {
			line += strings.Repeat(" ", innerWidth-lineWidth)
		} else if lineWidth > innerWidth {
			runes := []rune(line)
			if len(runes) > innerWidth {
				line = string(runes[:innerWidth])
			}
		}
		wrappedLines = append(wrappedLines, border.Render(vertical)+line+border.Render(vertical))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBorder,
		strings.Join(wrappedLines, "\n"),
		bottomBorder,
	)
}
