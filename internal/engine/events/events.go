package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

// ProgressMsg represents a progress update from the downloader
type ProgressMsg struct {
	DownloadID string
	Downloaded int64
	Total      int64   // 0 when the server did not report a size
	Speed      float64 // bytes per second
	Elapsed    time.Duration
}

// DownloadCompleteMsg signals that the download finished successfully
type DownloadCompleteMsg struct {
	DownloadID string
	Filename   string
	Path       string // final location on disk
	Elapsed    time.Duration
	Total      int64
}

// DownloadErrorMsg signals that an error occurred
type DownloadErrorMsg struct {
	DownloadID string
	Filename   string
	Kind       types.ErrorKind
	Err        error
}

func (m DownloadErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		DownloadID string          `json:"DownloadID"`
		Filename   string          `json:"Filename,omitempty"`
		Kind       types.ErrorKind `json:"Kind,omitempty"`
		Err        string          `json:"Err,omitempty"`
	}

	out := encoded{
		DownloadID: m.DownloadID,
		Filename:   m.Filename,
		Kind:       m.Kind,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *DownloadErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		DownloadID string          `json:"DownloadID"`
		Filename   string          `json:"Filename"`
		Kind       types.ErrorKind `json:"Kind"`
		Err        json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.DownloadID = aux.DownloadID
	m.Filename = aux.Filename
	m.Kind = aux.Kind
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}) from older servers.
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// DownloadStartedMsg is sent when a download actually starts (after metadata fetch)
type DownloadStartedMsg struct {
	DownloadID string
	URL        string
	Filename   string
	Total      int64
	Offset     int64                // bytes already on disk when the session began
	DestPath   string               // Full path to the destination file
	State      *types.ProgressState `json:"-"`
}

type DownloadPausedMsg struct {
	DownloadID string
	Filename   string
	Downloaded int64
}

type DownloadResumedMsg struct {
	DownloadID string
	Filename   string
}

type DownloadQueuedMsg struct {
	DownloadID string
	Filename   string
	Position   int
}

type DownloadRemovedMsg struct {
	DownloadID string
	Filename   string
}

// RegistryChangedMsg is broadcast after every registry mutation.
type RegistryChangedMsg struct {
	Records []types.DownloadRecord
}

// DeviceChangedMsg carries the latest USB classification.
type DeviceChangedMsg struct {
	Ports []DevicePort
}

// DevicePort mirrors the classifier result without importing the usb package.
type DevicePort struct {
	Name      string
	VendorID  string
	ProductID string
	Kind      string
}
