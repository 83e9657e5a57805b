// Package download runs transfers. WorkerPool is the orchestrator: it admits
// a bounded number of transfers, streams each one's events on its own
// channel and supports pause, resume and cancel by id.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fixitrock/rockdl/internal/engine"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/single"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

var (
	// ErrInvalidItem is returned for items without an id or URL.
	ErrInvalidItem = errors.New("item needs an id and a download url")
	// ErrAlreadyDownloading is returned when the id already has a transfer.
	ErrAlreadyDownloading = errors.New("download already in progress")
	// ErrNotActive is returned by Pause and Cancel for ids without a transfer.
	ErrNotActive = errors.New("download not active")
)

// DefaultMaxConcurrent is used when NewWorkerPool gets a non-positive limit.
const DefaultMaxConcurrent = 3

// stop reasons recorded before a transfer's context is cancelled
const (
	stopNone int32 = iota
	stopPaused
	stopRemoved
)

// activeDownload tracks a transfer that has not emitted its terminal event.
type activeDownload struct {
	item   types.Item
	cancel context.CancelFunc
	state  *types.ProgressState
	reason atomic.Int32

	mu   sync.Mutex
	dest string // known once probed
}

func (ad *activeDownload) setDest(p string) {
	ad.mu.Lock()
	ad.dest = p
	ad.mu.Unlock()
}

func (ad *activeDownload) getDest() string {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return ad.dest
}

// WorkerPool is the transfer orchestrator.
type WorkerPool struct {
	sem        *semaphore.Weighted
	maxWorkers int
	waiting    atomic.Int32

	mu         sync.RWMutex
	downloads  map[string]*activeDownload
	reserved   map[string]string // dest path -> id of the transfer writing it
	runtime    *types.RuntimeConfig
	client     *http.Client
	defaultDir string

	wg sync.WaitGroup // running transfer goroutines
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithRuntime sets the initial runtime config.
func WithRuntime(rc *types.RuntimeConfig) Option {
	return func(p *WorkerPool) {
		p.runtime = rc
	}
}

// WithDefaultDir sets where items without a Path are saved.
func WithDefaultDir(dir string) Option {
	return func(p *WorkerPool) {
		p.defaultDir = dir
	}
}

// WithHTTPClient overrides the client built from the runtime config.
func WithHTTPClient(c *http.Client) Option {
	return func(p *WorkerPool) {
		p.client = c
	}
}

// NewWorkerPool creates a pool admitting at most maxConcurrent transfers.
func NewWorkerPool(maxConcurrent int, opts ...Option) *WorkerPool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	p := &WorkerPool{
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		maxWorkers: maxConcurrent,
		downloads:  make(map[string]*activeDownload),
		reserved:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = engine.NewHTTPClient(p.runtime)
	}
	return p
}

// MaxConcurrent returns the admission limit.
func (p *WorkerPool) MaxConcurrent() int {
	return p.maxWorkers
}

// SetRuntime swaps the runtime config. Running transfers keep the old one.
func (p *WorkerPool) SetRuntime(rc *types.RuntimeConfig) {
	client := engine.NewHTTPClient(rc)
	p.mu.Lock()
	p.runtime = rc
	p.client = client
	p.mu.Unlock()
	utils.Debug("Worker pool runtime updated")
}

// SetDefaultDir changes where items without a Path are saved.
func (p *WorkerPool) SetDefaultDir(dir string) {
	p.mu.Lock()
	p.defaultDir = dir
	p.mu.Unlock()
}

// DefaultDir returns where items without a Path are saved.
func (p *WorkerPool) DefaultDir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaultDir
}

// Download starts a transfer for item. The returned channel yields
// DownloadQueuedMsg while waiting for a slot, DownloadStartedMsg, any number
// of ProgressMsg and exactly one terminal message, then closes. Callers must
// drain it.
func (p *WorkerPool) Download(item types.Item) (<-chan any, error) {
	return p.start(item, nil)
}

// Resume restarts a paused or failed item. The transfer continues from the
// partial file when the server supports ranges. The stream opens with
// DownloadResumedMsg.
func (p *WorkerPool) Resume(item types.Item) (<-chan any, error) {
	return p.start(item, events.DownloadResumedMsg{DownloadID: item.ID, Filename: item.Name})
}

func (p *WorkerPool) start(item types.Item, first any) (<-chan any, error) {
	if item.ID == "" || item.DownloadURL == "" {
		return nil, ErrInvalidItem
	}

	ctx, cancel := context.WithCancel(context.Background())
	ad := &activeDownload{
		item:   item,
		cancel: cancel,
		state:  types.NewProgressState(item.ID, item.Size),
	}

	p.mu.Lock()
	if _, exists := p.downloads[item.ID]; exists {
		p.mu.Unlock()
		cancel()
		return nil, ErrAlreadyDownloading
	}
	p.downloads[item.ID] = ad
	runtime, client, dir := p.runtime, p.client, p.defaultDir
	p.mu.Unlock()

	ch := make(chan any, types.ProgressChannelBuffer)
	if first != nil {
		ch <- first
	}

	p.wg.Add(1)
	go p.run(ctx, ad, ch, runtime, client, dir)
	return ch, nil
}

func (p *WorkerPool) run(ctx context.Context, ad *activeDownload, ch chan any, runtime *types.RuntimeConfig, client *http.Client, defaultDir string) {
	defer p.wg.Done()
	defer close(ch)

	msg := p.transfer(ctx, ad, ch, runtime, client, defaultDir)

	// Unregister before the terminal event so a consumer reacting to it can
	// immediately start the same id again.
	ad.cancel()
	p.unregister(ad)
	ch <- msg
}

// transfer runs one download and returns its terminal message.
func (p *WorkerPool) transfer(ctx context.Context, ad *activeDownload, ch chan<- any, runtime *types.RuntimeConfig, client *http.Client, defaultDir string) any {
	item := ad.item

	if !p.sem.TryAcquire(1) {
		pos := p.waiting.Add(1)
		ch <- events.DownloadQueuedMsg{DownloadID: item.ID, Filename: item.Name, Position: int(pos)}
		err := p.sem.Acquire(ctx, 1)
		p.waiting.Add(-1)
		if err != nil {
			return p.terminal(ad, 0, err)
		}
	}
	defer p.sem.Release(1)

	probe, err := engine.ProbeServer(ctx, client, runtime, item.DownloadURL, item.Name, nil)
	if err != nil {
		utils.Debug("Probe failed for %s: %v", item.ID, err)
		return p.terminal(ad, 0, err)
	}

	dir := item.Path
	if dir == "" {
		dir = defaultDir
	}
	if dir == "" {
		dir = "."
	}
	dest := p.reserve(ad, filepath.Join(utils.EnsureAbsPath(dir), probe.Filename))
	ad.state.SetTotalSize(probe.FileSize)

	ch <- events.DownloadStartedMsg{
		DownloadID: item.ID,
		URL:        item.DownloadURL,
		Filename:   filepath.Base(dest),
		Total:      probe.FileSize,
		Offset:     partialSize(dest, probe.SupportsRange),
		DestPath:   dest,
		State:      ad.state,
	}

	d := single.NewSingleDownloader(item.ID, ch, ad.state, runtime, client)
	res, err := d.Download(ctx, item.DownloadURL, dest, probe)
	if err != nil {
		return p.terminal(ad, ad.state.Downloaded.Load(), err)
	}

	return events.DownloadCompleteMsg{
		DownloadID: item.ID,
		Filename:   filepath.Base(res.Path),
		Path:       res.Path,
		Elapsed:    res.Elapsed,
		Total:      res.Written,
	}
}

// terminal picks the final message for a transfer that stopped early.
func (p *WorkerPool) terminal(ad *activeDownload, downloaded int64, err error) any {
	switch ad.reason.Load() {
	case stopPaused:
		return events.DownloadPausedMsg{DownloadID: ad.item.ID, Filename: ad.item.Name, Downloaded: downloaded}
	case stopRemoved:
		if dest := ad.getDest(); dest != "" {
			removePartial(dest)
		}
		return events.DownloadRemovedMsg{DownloadID: ad.item.ID, Filename: ad.item.Name}
	}
	return events.DownloadErrorMsg{
		DownloadID: ad.item.ID,
		Filename:   ad.item.Name,
		Kind:       engine.ClassifyError(err),
		Err:        err,
	}
}

// reserve picks the file a transfer writes and holds it until the transfer
// ends. An item that already wrote somewhere keeps that file so its partial
// data is reused. Otherwise the first name free of finished files, partial
// files and other reservations wins.
func (p *WorkerPool) reserve(ad *activeDownload, want string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := func(path string) bool {
		owner, held := p.reserved[path]
		return !held || owner == ad.item.ID
	}

	dest := ad.item.Dest
	if dest == "" || !free(dest) || (exists(dest) && !exists(dest+types.IncompleteSuffix)) {
		dest = utils.UniqueFilePathFunc(want, func(path string) bool {
			return !free(path) || exists(path) || exists(path+types.IncompleteSuffix)
		})
	}
	p.reserved[dest] = ad.item.ID
	ad.setDest(dest)
	return dest
}

func (p *WorkerPool) unregister(ad *activeDownload) {
	p.mu.Lock()
	if cur, ok := p.downloads[ad.item.ID]; ok && cur == ad {
		delete(p.downloads, ad.item.ID)
	}
	if dest := ad.getDest(); dest != "" && p.reserved[dest] == ad.item.ID {
		delete(p.reserved, dest)
	}
	p.mu.Unlock()
}

func (p *WorkerPool) lookup(id string) (*activeDownload, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ad, ok := p.downloads[id]
	return ad, ok
}

// Pause stops the transfer and keeps its partial file. The stream ends with
// DownloadPausedMsg.
func (p *WorkerPool) Pause(id string) error {
	ad, ok := p.lookup(id)
	if !ok {
		return fmt.Errorf("pause %s: %w", id, ErrNotActive)
	}
	ad.reason.CompareAndSwap(stopNone, stopPaused)
	ad.state.Pause()
	ad.cancel()
	return nil
}

// Cancel stops the transfer and deletes its partial file. The stream ends
// with DownloadRemovedMsg.
func (p *WorkerPool) Cancel(id string) error {
	ad, ok := p.lookup(id)
	if !ok {
		return fmt.Errorf("cancel %s: %w", id, ErrNotActive)
	}
	ad.reason.Store(stopRemoved)
	ad.cancel()
	return nil
}

// CancelAll cancels every active transfer.
func (p *WorkerPool) CancelAll() {
	for _, id := range p.activeIDs() {
		_ = p.Cancel(id)
	}
}

// PauseAll pauses every active transfer.
func (p *WorkerPool) PauseAll() {
	for _, id := range p.activeIDs() {
		_ = p.Pause(id)
	}
}

// IsDownloading reports whether id has a transfer that has not finished.
func (p *WorkerPool) IsDownloading(id string) bool {
	_, ok := p.lookup(id)
	return ok
}

// ActiveCount returns the number of transfers, admitted or waiting.
func (p *WorkerPool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.downloads)
}

// Progress returns the live progress state of an active transfer.
func (p *WorkerPool) Progress(id string) (*types.ProgressState, bool) {
	ad, ok := p.lookup(id)
	if !ok {
		return nil, false
	}
	return ad.state, true
}

// Discard deletes the partial file an inactive item left behind. The path
// comes from item.Dest, the file its last transfer wrote to.
func (p *WorkerPool) Discard(item types.Item) {
	if item.Dest == "" {
		return
	}
	p.mu.RLock()
	owner, held := p.reserved[item.Dest]
	p.mu.RUnlock()
	if held && owner != item.ID {
		return
	}
	removePartial(item.Dest)
}

// GracefulShutdown pauses all transfers and waits for them to stop, up to
// timeout. It reports whether every transfer stopped in time.
func (p *WorkerPool) GracefulShutdown(timeout time.Duration) bool {
	p.PauseAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *WorkerPool) activeIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.downloads))
	for id := range p.downloads {
		ids = append(ids, id)
	}
	return ids
}

func partialSize(dest string, supportsRange bool) int64 {
	if !supportsRange {
		return 0
	}
	info, err := os.Stat(dest + types.IncompleteSuffix)
	if err != nil {
		return 0
	}
	return info.Size()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removePartial(dest string) {
	if err := os.Remove(dest + types.IncompleteSuffix); err != nil && !os.IsNotExist(err) {
		utils.Debug("Failed to remove partial file %s: %v", dest, err)
	}
}
