package types

import (
	"testing"
	"time"

	"github.com/fixitrock/rockdl/internal/config"
)

// TestConvertRuntimeConfig_AllFieldsCopied verifies that every field in
// config.RuntimeConfig is mapped to types.RuntimeConfig.
func TestConvertRuntimeConfig_AllFieldsCopied(t *testing.T) {
	input := &config.RuntimeConfig{
		UserAgent:           "TestAgent/1.0",
		ProxyURL:            "socks5://127.0.0.1:1080",
		SkipTLSVerification: true,
		WorkerBufferSize:    64 * 1024,
		ProgressInterval:    time.Second,
		ProbeTimeout:        5 * time.Second,
	}

	result := ConvertRuntimeConfig(input)

	if result == nil {
		t.Fatal("ConvertRuntimeConfig returned nil")
	}
	if result.UserAgent != input.UserAgent {
		t.Errorf("UserAgent: got %q, want %q", result.UserAgent, input.UserAgent)
	}
	if result.ProxyURL != input.ProxyURL {
		t.Errorf("ProxyURL: got %q, want %q", result.ProxyURL, input.ProxyURL)
	}
	if result.SkipTLSVerification != input.SkipTLSVerification {
		t.Errorf("SkipTLSVerification: got %v, want %v", result.SkipTLSVerification, input.SkipTLSVerification)
	}
	if result.WorkerBufferSize != input.WorkerBufferSize {
		t.Errorf("WorkerBufferSize: got %d, want %d", result.WorkerBufferSize, input.WorkerBufferSize)
	}
	if result.ProgressInterval != input.ProgressInterval {
		t.Errorf("ProgressInterval: got %v, want %v", result.ProgressInterval, input.ProgressInterval)
	}
	if result.ProbeTimeout != input.ProbeTimeout {
		t.Errorf("ProbeTimeout: got %v, want %v", result.ProbeTimeout, input.ProbeTimeout)
	}
}

func TestConvertRuntimeConfig_Nil(t *testing.T) {
	result := ConvertRuntimeConfig(nil)
	if result == nil {
		t.Fatal("expected non-nil config for nil input")
	}
	if result.GetUserAgent() != DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", result.GetUserAgent())
	}
}

func TestRuntimeConfig_Defaults(t *testing.T) {
	var nilCfg *RuntimeConfig
	if got := nilCfg.GetWorkerBufferSize(); got != WorkerBuffer {
		t.Errorf("nil GetWorkerBufferSize = %d, want %d", got, WorkerBuffer)
	}
	if got := nilCfg.GetProgressInterval(); got != ProgressInterval {
		t.Errorf("nil GetProgressInterval = %v, want %v", got, ProgressInterval)
	}

	cfg := &RuntimeConfig{WorkerBufferSize: -1, ProbeTimeout: 0}
	if got := cfg.GetWorkerBufferSize(); got != WorkerBuffer {
		t.Errorf("negative buffer should fall back, got %d", got)
	}
	if got := cfg.GetProbeTimeout(); got != ProbeTimeout {
		t.Errorf("zero probe timeout should fall back, got %v", got)
	}
}

func TestProgressState_Percent(t *testing.T) {
	ps := NewProgressState("a", 200)
	ps.Downloaded.Store(50)
	if got := ps.Percent(); got != 25 {
		t.Errorf("Percent() = %d, want 25", got)
	}

	ps.Downloaded.Store(500)
	if got := ps.Percent(); got != 100 {
		t.Errorf("Percent() should clamp to 100, got %d", got)
	}

	unknown := NewProgressState("b", 0)
	unknown.Downloaded.Store(10)
	if got := unknown.Percent(); got != 0 {
		t.Errorf("Percent() with unknown size = %d, want 0", got)
	}
}

func TestProgressState_PauseResume(t *testing.T) {
	ps := NewProgressState("a", 10)
	if ps.IsPaused() {
		t.Fatal("new state should not be paused")
	}
	ps.Pause()
	if !ps.IsPaused() {
		t.Error("expected paused after Pause")
	}
	ps.Resume()
	if ps.IsPaused() {
		t.Error("expected not paused after Resume")
	}
}

func TestProgressState_SessionSpeed(t *testing.T) {
	ps := NewProgressState("a", 1000)
	if got := ps.SessionSpeed(); got != 0 {
		t.Errorf("speed before session = %v, want 0", got)
	}
	ps.StartSession(100)
	if got := ps.Downloaded.Load(); got != 100 {
		t.Errorf("StartSession should seed Downloaded, got %d", got)
	}
	time.Sleep(20 * time.Millisecond)
	ps.Downloaded.Store(300)
	if got := ps.SessionSpeed(); got <= 0 {
		t.Errorf("expected positive session speed, got %v", got)
	}
}

func TestDownloadRecord_Item(t *testing.T) {
	rec := DownloadRecord{ID: "x", Name: "rom.zip", Size: 42, DownloadURL: "http://h/rom.zip", DownloadPath: "/tmp", Destination: "/tmp/rom.zip"}
	item := rec.Item()
	want := Item{ID: "x", Name: "rom.zip", Size: 42, DownloadURL: "http://h/rom.zip", Path: "/tmp", Dest: "/tmp/rom.zip"}
	if item != want {
		t.Errorf("Item() = %+v, want %+v", item, want)
	}
}
