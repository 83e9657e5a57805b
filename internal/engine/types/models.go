package types

// Status is the lifecycle state of a DownloadRecord.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// IsFinished reports whether no further transfer will happen for the status.
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrorKind tags why a transfer failed.
type ErrorKind string

const (
	ErrorKindGeneric   ErrorKind = "generic"
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindExpired   ErrorKind = "expired" // signed download URL no longer valid
)

// Item describes a file to download, typically a drive entry.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Path        string `json:"path,omitempty"` // destination directory
	Dest        string `json:"dest,omitempty"` // file an earlier attempt wrote to
}

// DownloadRecord is the registry entry of a single download.
// Timestamps are milliseconds since the Unix epoch. Zero Speed and
// QueuePosition mean "not set".
type DownloadRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Status           Status    `json:"status"`
	Progress         int       `json:"progress"`
	Size             int64     `json:"size,omitempty"`
	DownloadedBytes  int64     `json:"downloadedBytes,omitempty"`
	Speed            float64   `json:"speed,omitempty"`
	QueuePosition    int       `json:"queuePosition,omitempty"`
	StartTime        int64     `json:"startTime"`
	EndTime          int64     `json:"endTime,omitempty"`
	NetworkStartTime int64     `json:"networkStartTime,omitempty"`
	LastUpdateTime   int64     `json:"lastUpdateTime,omitempty"`
	SampleBytes      int64     `json:"sampleBytes,omitempty"` // DownloadedBytes at LastUpdateTime
	DownloadPath     string    `json:"downloadPath,omitempty"`
	DownloadURL      string    `json:"downloadUrl,omitempty"`
	Destination      string    `json:"destination,omitempty"` // file the transfer writes, set once started
	Error            string    `json:"error,omitempty"`
	ErrorKind        ErrorKind `json:"errorKind,omitempty"`
}

// Item rebuilds the minimal transfer descriptor from a stored record.
func (r DownloadRecord) Item() Item {
	return Item{
		ID:          r.ID,
		Name:        r.Name,
		Size:        r.Size,
		DownloadURL: r.DownloadURL,
		Path:        r.DownloadPath,
		Dest:        r.Destination,
	}
}
