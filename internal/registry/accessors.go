package registry

import "github.com/fixitrock/rockdl/internal/engine/types"

// Get returns a copy of the record with id.
func (r *Registry) Get(id string) (types.DownloadRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return types.DownloadRecord{}, false
	}
	return *rec, true
}

// All returns copies of every record in insertion order.
func (r *Registry) All() []types.DownloadRecord {
	return r.filter(func(types.Status) bool { return true })
}

// Active returns downloading records.
func (r *Registry) Active() []types.DownloadRecord {
	return r.filter(func(s types.Status) bool { return s == types.StatusDownloading })
}

// Paused returns paused records.
func (r *Registry) Paused() []types.DownloadRecord {
	return r.filter(func(s types.Status) bool { return s == types.StatusPaused })
}

// Completed returns finished records, both completed and errored.
func (r *Registry) Completed() []types.DownloadRecord {
	return r.filter(types.Status.IsFinished)
}

// Queued returns queued records ordered by queue position.
func (r *Registry) Queued() []types.DownloadRecord {
	out := r.filter(func(s types.Status) bool { return s == types.StatusQueued })
	// Positions are 1..N over exactly these records.
	sorted := make([]types.DownloadRecord, len(out))
	for _, rec := range out {
		if rec.QueuePosition >= 1 && rec.QueuePosition <= len(out) {
			sorted[rec.QueuePosition-1] = rec
		} else {
			return out
		}
	}
	return sorted
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// HasDownloads reports whether the registry holds any record.
func (r *Registry) HasDownloads() bool {
	return r.Len() > 0
}

// Badge reports whether anything is still in flight: queued, downloading
// or paused.
func (r *Registry) Badge() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if !rec.Status.IsFinished() {
			return true
		}
	}
	return false
}

func (r *Registry) filter(keep func(types.Status) bool) []types.DownloadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.DownloadRecord, 0, len(r.order))
	for _, id := range r.order {
		if rec := r.records[id]; keep(rec.Status) {
			out = append(out, *rec)
		}
	}
	return out
}
