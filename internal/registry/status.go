package registry

import (
	"fmt"
	"time"

	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// StatusText renders the record's status for list views.
func StatusText(rec types.DownloadRecord) string {
	switch rec.Status {
	case types.StatusQueued:
		if rec.QueuePosition > 0 {
			return fmt.Sprintf("Queued #%d", rec.QueuePosition)
		}
		return "Queued"
	case types.StatusDownloading:
		return fmt.Sprintf("Downloading %d%%", rec.Progress)
	case types.StatusPaused:
		return fmt.Sprintf("Paused %d%%", rec.Progress)
	case types.StatusCompleted:
		return "Completed"
	case types.StatusError:
		switch rec.ErrorKind {
		case types.ErrorKindCancelled:
			return "Cancelled"
		case types.ErrorKindExpired:
			return "Link expired"
		case types.ErrorKindNetwork:
			return "Network error"
		}
		return "Failed"
	}
	return string(rec.Status)
}

// SpeedText renders the smoothed speed, or "-" when not downloading.
func SpeedText(rec types.DownloadRecord) string {
	if rec.Status != types.StatusDownloading {
		return "-"
	}
	return utils.FormatSpeed(rec.Speed)
}

// ETA estimates the remaining time. ok is false when size or speed is unknown.
func ETA(rec types.DownloadRecord) (time.Duration, bool) {
	if rec.Status != types.StatusDownloading || rec.Speed <= 0 || rec.Size <= 0 {
		return 0, false
	}
	remaining := rec.Size - rec.DownloadedBytes
	if remaining <= 0 {
		return 0, true
	}
	return time.Duration(float64(remaining) / rec.Speed * float64(time.Second)), true
}

// ETAText renders ETA as mm:ss, or "--:--" when unknown.
func ETAText(rec types.DownloadRecord) string {
	eta, ok := ETA(rec)
	if !ok {
		return "--:--"
	}
	if eta < time.Second {
		return "00:00"
	}
	return utils.FormatDuration(eta)
}

// ProgressText renders "done / total" bytes, or just the done part when the
// size is unknown.
func ProgressText(rec types.DownloadRecord) string {
	done := utils.ConvertBytesToHumanReadable(rec.DownloadedBytes)
	if rec.Size <= 0 {
		return done
	}
	return done + " / " + utils.ConvertBytesToHumanReadable(rec.Size)
}
