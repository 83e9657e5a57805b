package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fixitrock/rockdl/internal/config"
	"github.com/fixitrock/rockdl/internal/utils"
)

// settingField reads and writes one setting. Bool fields toggle on set.
type settingField struct {
	get func(s *config.Settings) any
	set func(s *config.Settings, value string) error
}

func intSetter(dst func(s *config.Settings) *int) func(*config.Settings, string) error {
	return func(s *config.Settings, value string) error {
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("not a number: %q", value)
		}
		*dst(s) = v
		return nil
	}
}

func durationSetter(dst func(s *config.Settings) *time.Duration) func(*config.Settings, string) error {
	return func(s *config.Settings, value string) error {
		v, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("not a duration: %q", value)
		}
		*dst(s) = v
		return nil
	}
}

func stringSetter(dst func(s *config.Settings) *string) func(*config.Settings, string) error {
	return func(s *config.Settings, value string) error {
		*dst(s) = strings.TrimSpace(value)
		return nil
	}
}

func toggle(dst func(s *config.Settings) *bool) func(*config.Settings, string) error {
	return func(s *config.Settings, _ string) error {
		*dst(s) = !*dst(s)
		return nil
	}
}

var settingFields = map[string]settingField{
	"default_download_dir": {
		get: func(s *config.Settings) any { return s.General.DefaultDownloadDir },
		set: stringSetter(func(s *config.Settings) *string { return &s.General.DefaultDownloadDir }),
	},
	"auto_resume": {
		get: func(s *config.Settings) any { return s.General.AutoResume },
		set: toggle(func(s *config.Settings) *bool { return &s.General.AutoResume }),
	},
	"notifications": {
		get: func(s *config.Settings) any { return s.General.Notifications },
		set: toggle(func(s *config.Settings) *bool { return &s.General.Notifications }),
	},
	"archive_bucket": {
		get: func(s *config.Settings) any { return s.General.ArchiveBucket },
		set: stringSetter(func(s *config.Settings) *string { return &s.General.ArchiveBucket }),
	},
	"log_retention_count": {
		get: func(s *config.Settings) any { return s.General.LogRetentionCount },
		set: intSetter(func(s *config.Settings) *int { return &s.General.LogRetentionCount }),
	},
	"max_concurrent_downloads": {
		get: func(s *config.Settings) any { return s.Connections.MaxConcurrentDownloads },
		set: func(s *config.Settings, value string) error {
			v, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || v < 1 || v > 10 {
				return fmt.Errorf("max concurrent downloads must be 1-10")
			}
			s.Connections.MaxConcurrentDownloads = v
			return nil
		},
	},
	"user_agent": {
		get: func(s *config.Settings) any { return s.Connections.UserAgent },
		set: stringSetter(func(s *config.Settings) *string { return &s.Connections.UserAgent }),
	},
	"proxy_url": {
		get: func(s *config.Settings) any { return s.Connections.ProxyURL },
		set: stringSetter(func(s *config.Settings) *string { return &s.Connections.ProxyURL }),
	},
	"skip_tls_verification": {
		get: func(s *config.Settings) any { return s.Connections.SkipTLSVerification },
		set: toggle(func(s *config.Settings) *bool { return &s.Connections.SkipTLSVerification }),
	},
	"worker_buffer_size": {
		get: func(s *config.Settings) any { return s.Transfer.WorkerBufferSize },
		set: intSetter(func(s *config.Settings) *int { return &s.Transfer.WorkerBufferSize }),
	},
	"progress_interval": {
		get: func(s *config.Settings) any { return s.Transfer.ProgressInterval },
		set: durationSetter(func(s *config.Settings) *time.Duration { return &s.Transfer.ProgressInterval }),
	},
	"probe_timeout": {
		get: func(s *config.Settings) any { return s.Transfer.ProbeTimeout },
		set: durationSetter(func(s *config.Settings) *time.Duration { return &s.Transfer.ProbeTimeout }),
	},
	"probe_enabled": {
		get: func(s *config.Settings) any { return s.Devices.ProbeEnabled },
		set: toggle(func(s *config.Settings) *bool { return &s.Devices.ProbeEnabled }),
	},
	"baud_rate": {
		get: func(s *config.Settings) any { return s.Devices.BaudRate },
		set: intSetter(func(s *config.Settings) *int { return &s.Devices.BaudRate }),
	},
}

// viewSettings renders the Btop-style settings page
func (m RootModel) viewSettings() string {
	width := 70
	height := 18
	if m.width < width+4 {
		width = m.width - 4
	}
	if m.height < height+4 {
		height = m.height - 4
	}

	categories := config.CategoryOrder()
	metadata := config.GetSettingsMetadata()

	// === TAB BAR ===
	var tabItems []string
	for i, cat := range categories {
		label := fmt.Sprintf("[%d] %s", i+1, cat)
		if i == m.SettingsActiveTab {
			tabItems = append(tabItems, ActiveTabStyle.Render(label))
		} else {
			tabItems = append(tabItems, TabStyle.Render(label))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Left, tabItems...)

	currentCategory := categories[m.SettingsActiveTab]
	settingsMeta := metadata[currentCategory]
	settingsValues := m.getSettingsValues(currentCategory)

	leftWidth := 26
	rightWidth := width - leftWidth - 5

	// === LEFT COLUMN ===
	var listLines []string
	for i, meta := range settingsMeta {
		if i == m.SettingsSelectedRow {
			listLines = append(listLines, lipgloss.NewStyle().
				Foreground(ColorNeonPink).
				Bold(true).
				Render("> "+meta.Label))
			continue
		}
		listLines = append(listLines, lipgloss.NewStyle().
			Foreground(ColorLightGray).
			Render("  "+meta.Label))
	}
	listBox := lipgloss.NewStyle().
		Width(leftWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, listLines...))

	separator := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render(strings.TrimSuffix(strings.Repeat("│\n", len(settingsMeta)), "\n"))

	// === RIGHT COLUMN ===
	var rightContent string
	if m.SettingsSelectedRow < len(settingsMeta) {
		meta := settingsMeta[m.SettingsSelectedRow]

		valueStr := formatSettingValue(settingsValues[meta.Key], meta.Type)
		if meta.Key == "worker_buffer_size" {
			if n, ok := settingsValues[meta.Key].(int); ok {
				valueStr = utils.ConvertBytesToHumanReadable(int64(n))
			}
		}
		if m.SettingsIsEditing {
			valueStr = m.SettingsInput.View()
		}

		valueDisplay := lipgloss.NewStyle().
			Foreground(ColorNeonCyan).
			Bold(true).
			Render("Value: " + valueStr)
		descDisplay := lipgloss.NewStyle().
			Foreground(ColorGray).
			Width(rightWidth - 2).
			Render(meta.Description)

		rightContent = valueDisplay + "\n\n" + descDisplay
	}
	rightBox := lipgloss.NewStyle().
		Width(rightWidth).
		PaddingLeft(1).
		Render(rightContent)

	content := lipgloss.JoinHorizontal(lipgloss.Top, listBox, separator, rightBox)

	helpText := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render("[Enter] Edit [R] Reset [1-4] Tab [Esc] Save")

	fullContent := lipgloss.JoinVertical(lipgloss.Left,
		tabBar,
		"",
		content,
		"",
		helpText,
	)

	box := renderBtopBox("Settings", fullContent, width, height, ColorNeonPink, false)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// getSettingsValues returns a map of setting key -> value for a category
func (m RootModel) getSettingsValues(category string) map[string]any {
	values := make(map[string]any)
	for _, meta := range config.GetSettingsMetadata()[category] {
		if f, ok := settingFields[meta.Key]; ok {
			values[meta.Key] = f.get(m.Settings)
		}
	}
	return values
}

// setSettingValue parses value into the setting key of category.
func (m *RootModel) setSettingValue(category, key, value string) error {
	for _, meta := range config.GetSettingsMetadata()[category] {
		if meta.Key != key {
			continue
		}
		f, ok := settingFields[key]
		if !ok {
			return fmt.Errorf("unknown setting %q", key)
		}
		return f.set(m.Settings, value)
	}
	return fmt.Errorf("unknown setting %q", key)
}

// resetSettingToDefault copies one setting from defaults.
func (m *RootModel) resetSettingToDefault(category, key string, defaults *config.Settings) {
	f, ok := settingFields[key]
	if !ok {
		return
	}
	if _, isBool := f.get(defaults).(bool); isBool {
		if f.get(m.Settings) != f.get(defaults) {
			_ = f.set(m.Settings, "")
		}
		return
	}
	_ = m.setSettingValue(category, key, formatSettingValue(f.get(defaults), "raw"))
}

func (m RootModel) currentMeta() (config.SettingMeta, bool) {
	categories := config.CategoryOrder()
	settingsMeta := config.GetSettingsMetadata()[categories[m.SettingsActiveTab]]
	if m.SettingsSelectedRow < len(settingsMeta) {
		return settingsMeta[m.SettingsSelectedRow], true
	}
	return config.SettingMeta{}, false
}

// getCurrentSettingKey returns the key of the currently selected setting
func (m RootModel) getCurrentSettingKey() string {
	meta, _ := m.currentMeta()
	return meta.Key
}

// getCurrentSettingType returns the type of the currently selected setting
func (m RootModel) getCurrentSettingType() string {
	meta, _ := m.currentMeta()
	return meta.Type
}

// getSettingsCount returns the number of settings in the current category
func (m RootModel) getSettingsCount() int {
	categories := config.CategoryOrder()
	return len(config.GetSettingsMetadata()[categories[m.SettingsActiveTab]])
}

// formatSettingValue formats a setting value for display. The "raw" type
// yields text the setters parse back.
func formatSettingValue(value any, typ string) string {
	if value == nil {
		return "-"
	}

	switch v := value.(type) {
	case bool:
		if v {
			return "True"
		}
		return "False"
	case time.Duration:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case string:
		if typ == "raw" {
			return v
		}
		if v == "" {
			return "(default)"
		}
		return truncateString(v, 30)
	}
	return fmt.Sprintf("%v", value)
}
