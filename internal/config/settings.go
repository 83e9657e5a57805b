package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General     GeneralSettings    `json:"general" yaml:"general"`
	Connections ConnectionSettings `json:"connections" yaml:"connections"`
	Transfer    TransferSettings   `json:"transfer" yaml:"transfer"`
	Devices     DeviceSettings     `json:"devices" yaml:"devices"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir" yaml:"default_download_dir"`
	AutoResume         bool   `json:"auto_resume" yaml:"auto_resume"`
	Notifications      bool   `json:"notifications" yaml:"notifications"`
	ArchiveBucket      string `json:"archive_bucket" yaml:"archive_bucket"`
	LogRetentionCount  int    `json:"log_retention_count" yaml:"log_retention_count"`
}

// ConnectionSettings contains network connection parameters.
type ConnectionSettings struct {
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	UserAgent              string `json:"user_agent" yaml:"user_agent"`
	ProxyURL               string `json:"proxy_url" yaml:"proxy_url"`
	SkipTLSVerification    bool   `json:"skip_tls_verification" yaml:"skip_tls_verification"`
}

// TransferSettings tunes the single-connection transfer.
type TransferSettings struct {
	WorkerBufferSize int           `json:"worker_buffer_size" yaml:"worker_buffer_size"`
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`
	ProbeTimeout     time.Duration `json:"probe_timeout" yaml:"probe_timeout"`
}

// DeviceSettings controls USB/serial device probing.
type DeviceSettings struct {
	ProbeEnabled bool `json:"probe_enabled" yaml:"probe_enabled"`
	BaudRate     int  `json:"baud_rate" yaml:"baud_rate"`
}

// SettingMeta provides metadata for a single setting (for UI rendering).
type SettingMeta struct {
	Key         string // JSON key name
	Label       string // Human-readable label
	Description string // Help text
	Type        string // "string", "int", "bool", "duration"
}

// GetSettingsMetadata returns metadata for all settings organized by category.
func GetSettingsMetadata() map[string][]SettingMeta {
	return map[string][]SettingMeta{
		"General": {
			{Key: "default_download_dir", Label: "Default Download Dir", Description: "Directory for new downloads when the item has no path.", Type: "string"},
			{Key: "auto_resume", Label: "Auto Resume", Description: "Resume paused downloads on startup.", Type: "bool"},
			{Key: "notifications", Label: "Notifications", Description: "Emit a notification when a download is added.", Type: "bool"},
			{Key: "archive_bucket", Label: "Archive Bucket", Description: "Bucket URL (file:///..., mem://) receiving a copy of completed files. Empty disables archiving.", Type: "string"},
			{Key: "log_retention_count", Label: "Log Retention Count", Description: "Number of recent log files to keep.", Type: "int"},
		},
		"Network": {
			{Key: "max_concurrent_downloads", Label: "Max Concurrent Downloads", Description: "Maximum number of transfers running at once (1-10). Requires restart.", Type: "int"},
			{Key: "user_agent", Label: "User Agent", Description: "Custom User-Agent string. Leave empty for default.", Type: "string"},
			{Key: "proxy_url", Label: "Proxy URL", Description: "HTTP or SOCKS5 proxy URL. Leave empty to use the environment.", Type: "string"},
			{Key: "skip_tls_verification", Label: "Skip TLS Verification", Description: "Accept invalid certificates.", Type: "bool"},
		},
		"Transfer": {
			{Key: "worker_buffer_size", Label: "Buffer Size", Description: "I/O buffer size in bytes.", Type: "int"},
			{Key: "progress_interval", Label: "Progress Interval", Description: "How often progress is reported (e.g., 200ms).", Type: "duration"},
			{Key: "probe_timeout", Label: "Probe Timeout", Description: "Timeout of the metadata probe (e.g., 30s).", Type: "duration"},
		},
		"Devices": {
			{Key: "probe_enabled", Label: "Probe Devices", Description: "Send ADB/Fastboot probe commands to detected serial ports.", Type: "bool"},
			{Key: "baud_rate", Label: "Baud Rate", Description: "Baud rate used when opening serial ports.", Type: "int"},
		},
	}
}

// CategoryOrder returns the order of categories for UI tabs.
func CategoryOrder() []string {
	return []string{"General", "Network", "Transfer", "Devices"}
}

const (
	KB = 1024
	MB = 1024 * KB
)

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	defaultDir := filepath.Join(homeDir, "Downloads")

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: defaultDir,
			AutoResume:         false,
			Notifications:      true,
			LogRetentionCount:  5,
		},
		Connections: ConnectionSettings{
			MaxConcurrentDownloads: 3,
			UserAgent:              "", // Empty means use default UA
		},
		Transfer: TransferSettings{
			WorkerBufferSize: 512 * KB,
			ProgressInterval: 200 * time.Millisecond,
			ProbeTimeout:     30 * time.Second,
		},
		Devices: DeviceSettings{
			ProbeEnabled: true,
			BaudRate:     115200,
		},
	}
}

// GetSettingsPath returns the settings file in use. A settings.yaml takes
// precedence over settings.json when both exist.
func GetSettingsPath() string {
	yamlPath := filepath.Join(GetAppDir(), "settings.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return filepath.Join(GetAppDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFile(GetSettingsPath())
}

// LoadSettingsFile loads settings from path, picking the decoder from the
// extension. Missing fields keep their defaults.
func LoadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", filepath.Base(path), err)
	}

	settings.normalize()
	return settings, nil
}

// SaveSettings saves settings to the current settings file.
func SaveSettings(s *Settings) error {
	return SaveSettingsFile(GetSettingsPath(), s)
}

// SaveSettingsFile saves settings to path atomically.
func SaveSettingsFile(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// normalize clamps values a hand-edited file may get wrong.
func (s *Settings) normalize() {
	if s.Connections.MaxConcurrentDownloads < 1 {
		s.Connections.MaxConcurrentDownloads = 1
	}
	if s.Connections.MaxConcurrentDownloads > 10 {
		s.Connections.MaxConcurrentDownloads = 10
	}
	if s.General.LogRetentionCount < 1 {
		s.General.LogRetentionCount = 1
	}
}

// RuntimeConfig is the subset of settings the transfer engine consumes.
type RuntimeConfig struct {
	UserAgent           string
	ProxyURL            string
	SkipTLSVerification bool
	WorkerBufferSize    int
	ProgressInterval    time.Duration
	ProbeTimeout        time.Duration
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings
func (s *Settings) ToRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		UserAgent:           s.Connections.UserAgent,
		ProxyURL:            s.Connections.ProxyURL,
		SkipTLSVerification: s.Connections.SkipTLSVerification,
		WorkerBufferSize:    s.Transfer.WorkerBufferSize,
		ProgressInterval:    s.Transfer.ProgressInterval,
		ProbeTimeout:        s.Transfer.ProbeTimeout,
	}
}
