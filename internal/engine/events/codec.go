package events

import (
	"encoding/json"
	"fmt"
)

// Event names used on the SSE stream.
const (
	NameProgress = "progress"
	NameStarted  = "started"
	NameComplete = "complete"
	NameError    = "error"
	NamePaused   = "paused"
	NameResumed  = "resumed"
	NameQueued   = "queued"
	NameRemoved  = "removed"
	NameRegistry = "registry"
	NameDevices  = "devices"
)

// Name returns the SSE event name for msg, or "" for unknown types.
func Name(msg any) string {
	switch msg.(type) {
	case ProgressMsg:
		return NameProgress
	case DownloadStartedMsg:
		return NameStarted
	case DownloadCompleteMsg:
		return NameComplete
	case DownloadErrorMsg:
		return NameError
	case DownloadPausedMsg:
		return NamePaused
	case DownloadResumedMsg:
		return NameResumed
	case DownloadQueuedMsg:
		return NameQueued
	case DownloadRemovedMsg:
		return NameRemoved
	case RegistryChangedMsg:
		return NameRegistry
	case DeviceChangedMsg:
		return NameDevices
	default:
		return ""
	}
}

// Decode parses an SSE payload back into its message type.
func Decode(name string, data []byte) (any, error) {
	switch name {
	case NameProgress:
		return decodeAs[ProgressMsg](data)
	case NameStarted:
		return decodeAs[DownloadStartedMsg](data)
	case NameComplete:
		return decodeAs[DownloadCompleteMsg](data)
	case NameError:
		return decodeAs[DownloadErrorMsg](data)
	case NamePaused:
		return decodeAs[DownloadPausedMsg](data)
	case NameResumed:
		return decodeAs[DownloadResumedMsg](data)
	case NameQueued:
		return decodeAs[DownloadQueuedMsg](data)
	case NameRemoved:
		return decodeAs[DownloadRemovedMsg](data)
	case NameRegistry:
		return decodeAs[RegistryChangedMsg](data)
	case NameDevices:
		return decodeAs[DeviceChangedMsg](data)
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
}

func decodeAs[T any](data []byte) (any, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// IsTerminal reports whether msg ends a transfer's event stream.
func IsTerminal(msg any) bool {
	switch msg.(type) {
	case DownloadCompleteMsg, DownloadErrorMsg, DownloadPausedMsg, DownloadRemovedMsg:
		return true
	}
	return false
}
