package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// IncompleteSuffix is appended to files while downloading
	IncompleteSuffix = ".rockdl"
)

// Transfer tuning
const (
	WorkerBuffer     = 512 * KB
	ProgressInterval = 200 * time.Millisecond
)

// HTTP Client Tuning
const (
	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
	ProbeTimeout                 = 30 * time.Second
)

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	UserAgent           string
	ProxyURL            string
	SkipTLSVerification bool
	WorkerBufferSize    int
	ProgressInterval    time.Duration
	ProbeTimeout        time.Duration
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return DefaultUserAgent
	}
	return r.UserAgent
}

// GetWorkerBufferSize returns configured value or default
func (r *RuntimeConfig) GetWorkerBufferSize() int {
	if r == nil || r.WorkerBufferSize <= 0 {
		return WorkerBuffer
	}
	return r.WorkerBufferSize
}

// GetProgressInterval returns configured value or default
func (r *RuntimeConfig) GetProgressInterval() time.Duration {
	if r == nil || r.ProgressInterval <= 0 {
		return ProgressInterval
	}
	return r.ProgressInterval
}

// GetProbeTimeout returns configured value or default
func (r *RuntimeConfig) GetProbeTimeout() time.Duration {
	if r == nil || r.ProbeTimeout <= 0 {
		return ProbeTimeout
	}
	return r.ProbeTimeout
}
