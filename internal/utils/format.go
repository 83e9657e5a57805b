package utils

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ConvertBytesToHumanReadable formats a byte count using IEC units (1.5 MiB).
func ConvertBytesToHumanReadable(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

// FormatSpeed formats a bytes/sec rate.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}

// FormatDuration renders a duration as mm:ss or hh:mm:ss.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
