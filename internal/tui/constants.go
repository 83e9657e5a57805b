package tui

import "time"

const (
	// Timeouts and Intervals
	TickInterval         = 500 * time.Millisecond
	NotificationDuration = 4 * time.Second

	// Input Dimensions
	InputWidth = 50

	// Layout Offsets and Padding
	DefaultPaddingX = 1
	DefaultPaddingY = 0

	// Units
	Megabyte = 1024.0 * 1024.0

	// SpeedHistoryLength is the number of samples the graph keeps.
	SpeedHistoryLength = 120
)
