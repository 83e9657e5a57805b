package config

import (
	"os"
	"path/filepath"
)

// AppName is used for the config directory and file names.
const AppName = "rockdl"

// GetAppDir returns the root directory holding settings, state and logs.
// XDG_CONFIG_HOME is honoured so tests can redirect everything to a temp dir.
func GetAppDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// GetStateDir returns the directory holding the registry database.
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// GetLogsDir returns the directory for debug logs.
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// GetRuntimeDir returns the directory for port, pid, token and lock files.
func GetRuntimeDir() string {
	return GetAppDir()
}

// GetDBPath returns the path of the sqlite database.
func GetDBPath() string {
	return filepath.Join(GetStateDir(), AppName+".db")
}

// EnsureDirs creates all application directories.
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetStateDir(), GetLogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
