package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var graphBlocks = []string{" ", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// renderMultiLineGraph draws data as right-aligned bars over a dashed grid.
// Values are scaled against maxVal and clamped to the height.
func renderMultiLineGraph(data []float64, width, height int, maxVal float64, color lipgloss.Color) string {
	if width < 1 || height < 1 {
		return ""
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	grid := lipgloss.NewStyle().Foreground(ColorGray).Render("╌")
	bar := lipgloss.NewStyle().Foreground(color)

	rows := make([][]string, height)
	for i := range rows {
		rows[i] = make([]string, width)
		for j := range rows[i] {
			if i%2 == 0 {
				rows[i][j] = grid
			} else {
				rows[i][j] = " "
			}
		}
	}

	// Short histories leave the grid visible on the left.
	if len(data) > width {
		data = data[len(data)-width:]
	}
	offset := width - len(data)

	for x, val := range data {
		pct := min(max(val, 0)/maxVal, 1)
		eighths := pct * float64(height) * 8

		for y := 0; y < height; y++ {
			level := eighths - float64(y*8)
			if level <= 0 {
				break
			}
			char := "█"
			if level < 8 {
				char = graphBlocks[int(level)]
			}
			rows[height-1-y][offset+x] = bar.Render(char)
		}
	}

	lines := make([]string, height)
	for i, row := range rows {
		lines[i] = strings.Join(row, "")
	}
	return strings.Join(lines, "\n")
}
