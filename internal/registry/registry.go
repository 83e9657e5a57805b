// Package registry holds the download registry: the persisted mapping of
// item id to DownloadRecord and the mutations the UI and service apply to it.
//
// Every mutator is total. Invalid input (unknown id, out of range progress,
// a transition from the wrong status) leaves the registry untouched.
package registry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// StorageKey is the key the registry snapshot is saved under.
const StorageKey = "download-storage"

// minSampleInterval is the shortest window used to derive speed.
const minSampleInterval = 200 * time.Millisecond

// Speed smoothing weights.
const (
	speedNewWeight  = 0.6
	speedPrevWeight = 0.4
)

// Storage persists the serialized registry. *state.Store satisfies it.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Registry is the download registry. The zero value is not usable; build
// one with New.
type Registry struct {
	mu      sync.Mutex
	records map[string]*types.DownloadRecord
	order   []string // insertion order

	storage Storage
	gen     uint64 // bumped per mutation, guarded by mu

	persistMu sync.Mutex
	persisted uint64 // generation last written, guarded by persistMu

	now func() time.Time
	log *zap.Logger

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int

	interruptedAsPaused bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the logger used for storage failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithInterruptedAsPaused turns records persisted as downloading into
// paused ones on load, since no transfer survives a restart.
func WithInterruptedAsPaused() Option {
	return func(r *Registry) {
		r.interruptedAsPaused = true
	}
}

// New builds a registry and rehydrates it from storage. A nil storage keeps
// the registry in memory only. A malformed snapshot yields an empty registry.
func New(storage Storage, opts ...Option) *Registry {
	r := &Registry{
		records: make(map[string]*types.DownloadRecord),
		storage: storage,
		now:     time.Now,
		log:     utils.Logger(),
		subs:    make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.load()
	return r
}

func (r *Registry) nowMillis() int64 {
	return r.now().UnixMilli()
}

// Add inserts a queued record for item unless its id is already present.
func (r *Registry) Add(item types.Item) {
	if item.ID == "" {
		return
	}

	r.mu.Lock()
	if _, exists := r.records[item.ID]; exists {
		r.mu.Unlock()
		return
	}
	size := item.Size
	if size < 0 {
		size = 0
	}
	r.records[item.ID] = &types.DownloadRecord{
		ID:           item.ID,
		Name:         item.Name,
		Status:       types.StatusQueued,
		Size:         size,
		StartTime:    r.nowMillis(),
		DownloadPath: item.Path,
		DownloadURL:  item.DownloadURL,
	}
	r.order = append(r.order, item.ID)
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// UpdateProgress records a progress sample. progress outside [0,100] is
// rejected. downloadedBytes < 0 means unknown. speed <= 0 asks the registry
// to derive a smoothed speed from the byte counter.
func (r *Registry) UpdateProgress(id string, progress int, downloadedBytes int64, speed float64) {
	if progress < 0 || progress > 100 {
		return
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status == types.StatusCompleted {
		r.mu.Unlock()
		return
	}

	now := r.nowMillis()
	rec.Progress = progress

	if downloadedBytes >= 0 {
		if rec.Size > 0 && downloadedBytes > rec.Size {
			downloadedBytes = rec.Size
		}
		rec.DownloadedBytes = downloadedBytes
	}

	switch {
	case speed > 0:
		rec.Speed = speed
		rec.LastUpdateTime = now
		rec.SampleBytes = rec.DownloadedBytes
	case downloadedBytes >= 0:
		r.sampleSpeedLocked(rec, now)
	}

	if progress > 0 || rec.DownloadedBytes > 0 {
		rec.QueuePosition = 0
	}
	r.commitLocked()
}

// sampleSpeedLocked folds the bytes moved since the last sample into the
// smoothed speed. Samples closer than minSampleInterval are skipped.
func (r *Registry) sampleSpeedLocked(rec *types.DownloadRecord, now int64) {
	baseTime, baseBytes := rec.LastUpdateTime, rec.SampleBytes
	if baseTime == 0 {
		if rec.NetworkStartTime == 0 {
			rec.LastUpdateTime = now
			rec.SampleBytes = rec.DownloadedBytes
			return
		}
		baseTime, baseBytes = rec.NetworkStartTime, 0
	}

	elapsed := now - baseTime
	if elapsed < minSampleInterval.Milliseconds() {
		return
	}

	delta := rec.DownloadedBytes - baseBytes
	if delta >= 0 {
		instant := float64(delta) * 1000 / float64(elapsed)
		if rec.Speed > 0 {
			rec.Speed = speedNewWeight*instant + speedPrevWeight*rec.Speed
		} else {
			rec.Speed = instant
		}
	}
	rec.LastUpdateTime = now
	rec.SampleBytes = rec.DownloadedBytes
}

// Start moves a queued or downloading record to downloading and stamps
// NetworkStartTime the first time.
func (r *Registry) Start(id string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || (rec.Status != types.StatusQueued && rec.Status != types.StatusDownloading) {
		r.mu.Unlock()
		return
	}
	rec.Status = types.StatusDownloading
	if rec.NetworkStartTime == 0 {
		rec.NetworkStartTime = r.nowMillis()
	}
	rec.QueuePosition = 0
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// SetSize records the total size once the transfer learns it. Finished
// records and non-positive sizes are ignored.
func (r *Registry) SetSize(id string, size int64) {
	if size <= 0 {
		return
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status.IsFinished() || rec.Size == size {
		r.mu.Unlock()
		return
	}
	rec.Size = size
	if rec.DownloadedBytes > size {
		rec.DownloadedBytes = size
	}
	r.commitLocked()
}

// SetDestination records the file the transfer writes to, so a later
// resume or delete finds the same partial file. Finished records are ignored.
func (r *Registry) SetDestination(id, path string) {
	if path == "" {
		return
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status.IsFinished() || rec.Destination == path {
		r.mu.Unlock()
		return
	}
	rec.Destination = path
	r.commitLocked()
}

// Pause moves a downloading record to paused.
func (r *Registry) Pause(id string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status != types.StatusDownloading {
		r.mu.Unlock()
		return
	}
	rec.Status = types.StatusPaused
	rec.Speed = 0
	r.commitLocked()
}

// Resume moves a paused record back to downloading. The speed sample
// restarts so the paused interval does not dilute it.
func (r *Registry) Resume(id string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status != types.StatusPaused {
		r.mu.Unlock()
		return
	}
	rec.Status = types.StatusDownloading
	rec.LastUpdateTime = r.nowMillis()
	rec.SampleBytes = rec.DownloadedBytes
	r.commitLocked()
}

// Retry puts a failed record back in the queue, keeping its byte counters
// so the transfer can resume.
func (r *Registry) Retry(id string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status != types.StatusError {
		r.mu.Unlock()
		return
	}
	rec.Status = types.StatusQueued
	rec.Error = ""
	rec.ErrorKind = ""
	rec.EndTime = 0
	rec.LastUpdateTime = 0
	rec.SampleBytes = 0
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// Complete marks a record completed with progress 100. path, when not
// empty, replaces the download path.
func (r *Registry) Complete(id, path string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status == types.StatusCompleted || rec.Status == types.StatusError {
		r.mu.Unlock()
		return
	}
	rec.Status = types.StatusCompleted
	rec.Progress = 100
	rec.Speed = 0
	rec.QueuePosition = 0
	rec.EndTime = r.nowMillis()
	if rec.Size > 0 {
		rec.DownloadedBytes = rec.Size
	}
	if path != "" {
		rec.DownloadPath = path
	}
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// Fail marks a record as errored. id and message must be non-empty.
// Completed records are left alone.
func (r *Registry) Fail(id string, kind types.ErrorKind, message string) {
	if id == "" || message == "" {
		return
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok || rec.Status == types.StatusCompleted {
		r.mu.Unlock()
		return
	}
	if kind == "" {
		kind = types.ErrorKindGeneric
	}
	rec.Status = types.StatusError
	rec.Error = message
	rec.ErrorKind = kind
	rec.EndTime = r.nowMillis()
	rec.Speed = 0
	rec.QueuePosition = 0
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// Cancel deletes the record unconditionally.
func (r *Registry) Cancel(id string) {
	r.Remove(id)
}

// Remove deletes the record unconditionally.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.records[id]; !ok {
		r.mu.Unlock()
		return
	}
	r.deleteLocked(id)
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// ClearCompleted deletes every completed or errored record.
func (r *Registry) ClearCompleted() {
	r.mu.Lock()
	var doomed []string
	for _, id := range r.order {
		if r.records[id].Status.IsFinished() {
			doomed = append(doomed, id)
		}
	}
	if len(doomed) == 0 {
		r.mu.Unlock()
		return
	}
	for _, id := range doomed {
		r.deleteLocked(id)
	}
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

// UpdateQueuePositions ranks queued records 1..N by StartTime, insertion
// order breaking ties. Other records lose their rank.
func (r *Registry) UpdateQueuePositions() {
	r.mu.Lock()
	r.updateQueuePositionsLocked()
	r.commitLocked()
}

func (r *Registry) updateQueuePositionsLocked() {
	queued := make([]*types.DownloadRecord, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		if rec.Status == types.StatusQueued {
			queued = append(queued, rec)
		} else {
			rec.QueuePosition = 0
		}
	}
	sort.SliceStable(queued, func(i, j int) bool {
		return queued[i].StartTime < queued[j].StartTime
	})
	for i, rec := range queued {
		rec.QueuePosition = i + 1
	}
}

func (r *Registry) deleteLocked(id string) {
	delete(r.records, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// commitLocked persists the snapshot, releases the lock and notifies
// subscribers. Callers must hold r.mu. Writes are serialized and a snapshot
// older than the last one written is dropped, so storage never regresses.
func (r *Registry) commitLocked() {
	r.gen++
	gen := r.gen
	payload, err := r.marshalLocked()
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("registry: serialize failed", zap.Error(err))
	} else if r.storage != nil {
		r.persist(gen, payload)
	}
	r.notify()
}

func (r *Registry) persist(gen uint64, payload []byte) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if gen <= r.persisted {
		return
	}
	if err := r.storage.Set(StorageKey, string(payload)); err != nil {
		r.log.Warn("registry: persist failed", zap.Error(err))
		return
	}
	r.persisted = gen
}

// Subscribe returns a channel that receives a signal after mutations.
// Signals coalesce; a slow reader sees one pending signal, not a backlog.
// Call cancel to unsubscribe.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

func (r *Registry) notify() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
