package registry

import (
	"testing"
	"time"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		rec  types.DownloadRecord
		want string
	}{
		{"queued with rank", types.DownloadRecord{Status: types.StatusQueued, QueuePosition: 2}, "Queued #2"},
		{"queued", types.DownloadRecord{Status: types.StatusQueued}, "Queued"},
		{"downloading", types.DownloadRecord{Status: types.StatusDownloading, Progress: 42}, "Downloading 42%"},
		{"paused", types.DownloadRecord{Status: types.StatusPaused, Progress: 7}, "Paused 7%"},
		{"completed", types.DownloadRecord{Status: types.StatusCompleted}, "Completed"},
		{"cancelled", types.DownloadRecord{Status: types.StatusError, ErrorKind: types.ErrorKindCancelled}, "Cancelled"},
		{"expired", types.DownloadRecord{Status: types.StatusError, ErrorKind: types.ErrorKindExpired}, "Link expired"},
		{"network", types.DownloadRecord{Status: types.StatusError, ErrorKind: types.ErrorKindNetwork}, "Network error"},
		{"generic", types.DownloadRecord{Status: types.StatusError}, "Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusText(tt.rec); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpeedText(t *testing.T) {
	if got := SpeedText(types.DownloadRecord{Status: types.StatusDownloading, Speed: 1024}); got != "1.0 KiB/s" {
		t.Errorf("SpeedText = %q", got)
	}
	if got := SpeedText(types.DownloadRecord{Status: types.StatusPaused, Speed: 1024}); got != "-" {
		t.Errorf("SpeedText for paused = %q, want -", got)
	}
	if got := SpeedText(types.DownloadRecord{Status: types.StatusDownloading}); got != "-" {
		t.Errorf("SpeedText with unknown speed = %q, want -", got)
	}
}

func TestETA(t *testing.T) {
	rec := types.DownloadRecord{Status: types.StatusDownloading, Size: 10_000, DownloadedBytes: 4_000, Speed: 100}
	eta, ok := ETA(rec)
	if !ok || eta != 60*time.Second {
		t.Errorf("ETA = %v, %v; want 60s, true", eta, ok)
	}
	if got := ETAText(rec); got != "01:00" {
		t.Errorf("ETAText = %q, want 01:00", got)
	}

	if _, ok := ETA(types.DownloadRecord{Status: types.StatusDownloading, Speed: 100}); ok {
		t.Error("ETA with unknown size should not be ok")
	}
	if got := ETAText(types.DownloadRecord{Status: types.StatusQueued}); got != "--:--" {
		t.Errorf("ETAText for queued = %q", got)
	}

	done := types.DownloadRecord{Status: types.StatusDownloading, Size: 10, DownloadedBytes: 10, Speed: 5}
	if got := ETAText(done); got != "00:00" {
		t.Errorf("ETAText when nothing remains = %q", got)
	}
}

func TestProgressText(t *testing.T) {
	if got := ProgressText(types.DownloadRecord{DownloadedBytes: 1024, Size: 2048}); got != "1.0 KiB / 2.0 KiB" {
		t.Errorf("ProgressText = %q", got)
	}
	if got := ProgressText(types.DownloadRecord{DownloadedBytes: 512}); got != "512 B" {
		t.Errorf("ProgressText without size = %q", got)
	}
}
