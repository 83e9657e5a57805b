package types

import (
	"sync"
	"sync/atomic"
	"time"
)

// ProgressState is shared between a running transfer and whoever polls it.
type ProgressState struct {
	ID         string
	Downloaded atomic.Int64
	TotalSize  atomic.Int64
	Done       atomic.Bool
	paused     atomic.Bool

	mu           sync.Mutex
	sessionStart time.Time
	sessionBase  int64 // Downloaded at sessionStart
}

// NewProgressState creates a new progress state
func NewProgressState(id string, totalSize int64) *ProgressState {
	ps := &ProgressState{ID: id}
	ps.TotalSize.Store(totalSize)
	return ps
}

// SetTotalSize records the size once the probe knows it.
func (ps *ProgressState) SetTotalSize(size int64) {
	ps.TotalSize.Store(size)
}

// Pause flags the transfer as paused; the transfer loop observes it on cancel.
func (ps *ProgressState) Pause() {
	ps.paused.Store(true)
}

// Resume clears the paused flag.
func (ps *ProgressState) Resume() {
	ps.paused.Store(false)
}

// IsPaused reports whether Pause was called since the last Resume.
func (ps *ProgressState) IsPaused() bool {
	return ps.paused.Load()
}

// StartSession marks the beginning of a network session at the given offset.
func (ps *ProgressState) StartSession(offset int64) {
	ps.mu.Lock()
	ps.sessionStart = time.Now()
	ps.sessionBase = offset
	ps.mu.Unlock()
	ps.Downloaded.Store(offset)
}

// SessionSpeed returns the average bytes/sec of the current session.
func (ps *ProgressState) SessionSpeed() float64 {
	ps.mu.Lock()
	start, base := ps.sessionStart, ps.sessionBase
	ps.mu.Unlock()

	if start.IsZero() {
		return 0
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(ps.Downloaded.Load()-base) / elapsed
}

// Percent returns integer progress in [0,100], or 0 when the size is unknown.
func (ps *ProgressState) Percent() int {
	total := ps.TotalSize.Load()
	if total <= 0 {
		return 0
	}
	p := int(ps.Downloaded.Load() * 100 / total)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}
