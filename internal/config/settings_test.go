package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings == nil {
		t.Fatal("DefaultSettings returned nil")
	}

	t.Run("GeneralSettings", func(t *testing.T) {
		if settings.General.DefaultDownloadDir == "" {
			t.Error("Default download directory should not be empty")
		}
		if !strings.Contains(strings.ToLower(settings.General.DefaultDownloadDir), "downloads") {
			t.Errorf("Default download dir should contain 'Downloads', got: %s", settings.General.DefaultDownloadDir)
		}
		if settings.General.AutoResume {
			t.Error("AutoResume should be false by default")
		}
		if settings.General.ArchiveBucket != "" {
			t.Error("Archiving should be disabled by default")
		}
	})

	t.Run("ConnectionSettings", func(t *testing.T) {
		if settings.Connections.MaxConcurrentDownloads <= 0 {
			t.Errorf("MaxConcurrentDownloads should be positive, got: %d", settings.Connections.MaxConcurrentDownloads)
		}
		if settings.Connections.SkipTLSVerification {
			t.Error("TLS verification should be on by default")
		}
	})

	t.Run("TransferSettings", func(t *testing.T) {
		if settings.Transfer.WorkerBufferSize <= 0 {
			t.Errorf("WorkerBufferSize should be positive, got: %d", settings.Transfer.WorkerBufferSize)
		}
		if settings.Transfer.ProgressInterval <= 0 {
			t.Errorf("ProgressInterval should be positive, got: %v", settings.Transfer.ProgressInterval)
		}
	})
}

func TestDefaultSettings_Consistency(t *testing.T) {
	s1 := DefaultSettings()
	s2 := DefaultSettings()

	if s1 == s2 {
		t.Error("DefaultSettings should return new instance each time")
	}
	assert.Equal(t, s1, s2)
}

func TestGetSettingsPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := GetSettingsPath()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, GetAppDir()), "settings path %s should be under %s", path, GetAppDir())
	assert.True(t, strings.HasSuffix(path, "settings.json"))
	assert.True(t, filepath.IsAbs(path))

	// A YAML file takes precedence once it exists.
	require.NoError(t, os.MkdirAll(GetAppDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(GetAppDir(), "settings.yaml"), []byte("general: {}\n"), 0o644))
	assert.True(t, strings.HasSuffix(GetSettingsPath(), "settings.yaml"))
}

func TestSaveAndLoadSettings(t *testing.T) {
	tmpDir := t.TempDir()

	original := DefaultSettings()
	original.General.DefaultDownloadDir = tmpDir
	original.General.AutoResume = true
	original.General.ArchiveBucket = "mem://"
	original.Connections.MaxConcurrentDownloads = 7
	original.Connections.UserAgent = "TestAgent/1.0"
	original.Transfer.ProgressInterval = 500 * time.Millisecond

	for _, name := range []string{"settings.json", "settings.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmpDir, name)
			require.NoError(t, SaveSettingsFile(path, original))

			loaded, err := LoadSettingsFile(path)
			require.NoError(t, err)
			assert.Equal(t, original, loaded)

			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	settings, err := LoadSettingsFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettings_CorruptedJSON(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(testPath, []byte("{invalid json"), 0o644))

	_, err := LoadSettingsFile(testPath)
	assert.Error(t, err)
}

func TestLoadSettings_PartialYAML(t *testing.T) {
	partial := `
general:
  default_download_dir: /custom/path
transfer:
  progress_interval: 1s
connections:
  max_concurrent_downloads: 50
`
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte(partial), 0o644))

	settings, err := LoadSettingsFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/custom/path", settings.General.DefaultDownloadDir)
	assert.Equal(t, time.Second, settings.Transfer.ProgressInterval)
	// Clamped to the supported range.
	assert.Equal(t, 10, settings.Connections.MaxConcurrentDownloads)
	// Untouched fields keep defaults.
	assert.Equal(t, DefaultSettings().Transfer.WorkerBufferSize, settings.Transfer.WorkerBufferSize)
}

func TestToRuntimeConfig(t *testing.T) {
	s := DefaultSettings()
	s.Connections.ProxyURL = "socks5://127.0.0.1:1080"
	s.Connections.SkipTLSVerification = true

	rc := s.ToRuntimeConfig()
	assert.Equal(t, s.Connections.ProxyURL, rc.ProxyURL)
	assert.True(t, rc.SkipTLSVerification)
	assert.Equal(t, s.Transfer.WorkerBufferSize, rc.WorkerBufferSize)
	assert.Equal(t, s.Transfer.ProbeTimeout, rc.ProbeTimeout)
}

func TestSettingsMetadata_CoversCategories(t *testing.T) {
	meta := GetSettingsMetadata()
	for _, cat := range CategoryOrder() {
		assert.NotEmpty(t, meta[cat], "category %s has no settings", cat)
	}
}

func TestWatch_ReloadsOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, SaveSettingsFile(path, DefaultSettings()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Settings, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(s *Settings) { changes <- s }, nil)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := DefaultSettings()
	updated.Connections.UserAgent = "Watched/2.0"
	require.NoError(t, SaveSettingsFile(path, updated))

	select {
	case s := <-changes:
		assert.Equal(t, "Watched/2.0", s.Connections.UserAgent)
	case <-time.After(3 * time.Second):
		t.Fatal("settings change was not observed")
	}

	cancel()
	require.NoError(t, <-done)
}
