package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fixitrock/rockdl/internal/download"
	"github.com/fixitrock/rockdl/internal/engine"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/notify"
	"github.com/fixitrock/rockdl/internal/registry"
	"github.com/fixitrock/rockdl/internal/utils"
)

// ErrClosed is returned by a service that has been shut down.
var ErrClosed = errors.New("service is shut down")

const (
	eventBuffer     = 100
	shutdownTimeout = 10 * time.Second
)

// Orchestrator performs the transfers. *download.WorkerPool implements it.
type Orchestrator interface {
	Download(item types.Item) (<-chan any, error)
	Resume(item types.Item) (<-chan any, error)
	Pause(id string) error
	Cancel(id string) error
	IsDownloading(id string) bool
	Discard(item types.Item)
	GracefulShutdown(timeout time.Duration) bool
}

// Archiver receives a copy of every completed file. *archive.Archiver
// implements it.
type Archiver interface {
	Archive(ctx context.Context, localPath string) error
}

// LocalDownloadService implements DownloadService on an in-process registry
// and orchestrator. It mirrors every transfer event into the registry and
// fans the events out to StreamEvents listeners.
type LocalDownloadService struct {
	reg      *registry.Registry
	pool     Orchestrator
	notifier notify.Notifier
	archiver Archiver
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	listenerMu   sync.Mutex
	listeners    map[int]chan any
	nextListener int

	closing      atomic.Bool
	shutdownOnce sync.Once
	pumps        sync.WaitGroup // one per transfer stream
	background   sync.WaitGroup // registry forwarder and archive uploads
	unsubscribe  func()
}

// LocalOption configures a LocalDownloadService.
type LocalOption func(*LocalDownloadService)

// WithNotifier sets where start and completion notifications go.
func WithNotifier(n notify.Notifier) LocalOption {
	return func(s *LocalDownloadService) {
		s.notifier = n
	}
}

// WithArchiver copies completed files to a bucket.
func WithArchiver(a Archiver) LocalOption {
	return func(s *LocalDownloadService) {
		s.archiver = a
	}
}

// WithLogger sets the logger for failures the service swallows.
func WithLogger(l *zap.Logger) LocalOption {
	return func(s *LocalDownloadService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewLocalDownloadService wires reg to pool.
func NewLocalDownloadService(reg *registry.Registry, pool Orchestrator, opts ...LocalOption) *LocalDownloadService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &LocalDownloadService{
		reg:       reg,
		pool:      pool,
		notifier:  notify.Nop{},
		log:       utils.Logger(),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]chan any),
	}
	for _, opt := range opts {
		opt(s)
	}

	changes, unsubscribe := reg.Subscribe()
	s.unsubscribe = unsubscribe
	s.background.Add(1)
	go s.forwardRegistry(changes)
	return s
}

// Registry exposes the underlying registry for in-process UIs.
func (s *LocalDownloadService) Registry() *registry.Registry {
	return s.reg
}

// List returns every record in insertion order.
func (s *LocalDownloadService) List() ([]types.DownloadRecord, error) {
	return s.reg.All(), nil
}

// GetStatus returns the record of id.
func (s *LocalDownloadService) GetStatus(id string) (*types.DownloadRecord, error) {
	rec, ok := s.reg.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// DownloadFile registers item and hands it to the orchestrator. Orchestrator
// errors and panics never reach the caller; they mark the record failed.
func (s *LocalDownloadService) DownloadFile(item types.Item) (string, error) {
	if item.ID == "" || item.Name == "" {
		return "", ErrInvalidItem
	}
	if s.closing.Load() {
		return "", ErrClosed
	}
	if _, exists := s.reg.Get(item.ID); exists {
		return item.ID, nil
	}

	s.reg.Add(item)
	notify.Safe(s.notifier, "Download started", item.Name)
	s.launch(item.ID, func() (<-chan any, error) {
		return s.pool.Download(item)
	})
	return item.ID, nil
}

// Pause stops an active transfer and keeps its partial file.
func (s *LocalDownloadService) Pause(id string) error {
	if _, ok := s.reg.Get(id); !ok {
		return ErrNotFound
	}
	if err := s.pool.Pause(id); err != nil {
		s.log.Debug("pause: orchestrator refused", zap.String("id", id), zap.Error(err))
	}
	s.reg.Pause(id)
	return nil
}

// Resume restarts a paused, failed or stalled record from its stored item.
func (s *LocalDownloadService) Resume(id string) error {
	if s.closing.Load() {
		return ErrClosed
	}
	rec, ok := s.reg.Get(id)
	if !ok {
		return ErrNotFound
	}
	if s.pool.IsDownloading(id) {
		return nil
	}

	switch rec.Status {
	case types.StatusCompleted:
		return nil
	case types.StatusPaused:
		s.reg.Resume(id)
	case types.StatusError:
		s.reg.Retry(id)
	}

	item := rec.Item()
	s.launch(id, func() (<-chan any, error) {
		return s.pool.Resume(item)
	})
	return nil
}

// ResumePending restarts every paused or queued record without a transfer,
// as left behind by a previous session. It returns how many were restarted.
func (s *LocalDownloadService) ResumePending() int {
	n := 0
	for _, rec := range s.reg.All() {
		if rec.Status != types.StatusPaused && rec.Status != types.StatusQueued {
			continue
		}
		if err := s.Resume(rec.ID); err == nil {
			n++
		}
	}
	return n
}

// Delete cancels the transfer of id, deletes its partial file and removes
// the record. Completed files stay on disk.
func (s *LocalDownloadService) Delete(id string) error {
	rec, ok := s.reg.Get(id)
	if !ok {
		return ErrNotFound
	}
	if err := s.pool.Cancel(id); err != nil {
		if errors.Is(err, download.ErrNotActive) {
			if rec.Status != types.StatusCompleted {
				s.pool.Discard(rec.Item())
			}
		} else {
			s.log.Debug("delete: orchestrator refused", zap.String("id", id), zap.Error(err))
		}
	}
	s.reg.Cancel(id)
	return nil
}

// ClearCompleted drops completed and failed records.
func (s *LocalDownloadService) ClearCompleted() error {
	s.reg.ClearCompleted()
	return nil
}

// StreamEvents subscribes to transfer events and registry snapshots. Slow
// listeners miss events rather than stalling transfers. The cleanup func and
// ctx both end the subscription.
func (s *LocalDownloadService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ch := make(chan any, eventBuffer)

	s.listenerMu.Lock()
	if s.closing.Load() {
		s.listenerMu.Unlock()
		return nil, nil, ErrClosed
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = ch
	s.listenerMu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(done)
			s.removeListener(id)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-s.ctx.Done():
		case <-done:
		}
	}()
	return ch, cleanup, nil
}

// Publish emits an event to every listener.
func (s *LocalDownloadService) Publish(msg any) error {
	if s.closing.Load() {
		return ErrClosed
	}
	s.broadcast(msg)
	return nil
}

// Shutdown pauses running transfers so they can resume later, waits for
// their final events to land in the registry and closes all listeners.
func (s *LocalDownloadService) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.closing.Store(true)

		if !s.pool.GracefulShutdown(shutdownTimeout) {
			s.log.Warn("shutdown: transfers still running after timeout")
		}
		if !waitTimeout(&s.pumps, shutdownTimeout) {
			s.log.Warn("shutdown: event pumps did not drain")
		}

		s.unsubscribe()
		s.background.Wait()
		s.cancel()

		s.listenerMu.Lock()
		for id, ch := range s.listeners {
			delete(s.listeners, id)
			close(ch)
		}
		s.listenerMu.Unlock()
	})
	return nil
}

func (s *LocalDownloadService) launch(id string, start func() (<-chan any, error)) {
	ch, err := safeStart(start)
	if err != nil {
		s.log.Warn("transfer did not start", zap.String("id", id), zap.Error(err))
		s.reg.Fail(id, engine.ClassifyError(err), err.Error())
		return
	}
	s.pumps.Add(1)
	go s.pump(id, ch)
}

func safeStart(start func() (<-chan any, error)) (ch <-chan any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ch, err = nil, fmt.Errorf("orchestrator panic: %v", r)
		}
	}()
	return start()
}

// pump mirrors one transfer stream into the registry until it closes.
func (s *LocalDownloadService) pump(id string, ch <-chan any) {
	defer s.pumps.Done()

	started := false
	for msg := range ch {
		switch m := msg.(type) {
		case events.DownloadStartedMsg:
			s.reg.SetDestination(id, m.DestPath)
			s.reg.SetSize(id, m.Total)
			s.reg.Start(id)
			started = true
			if m.Offset > 0 {
				s.reg.UpdateProgress(id, percent(m.Offset, m.Total), m.Offset, 0)
			}

		case events.ProgressMsg:
			if !started {
				s.reg.Start(id)
				started = true
			}
			s.reg.UpdateProgress(id, percent(m.Downloaded, m.Total), m.Downloaded, 0)

		case events.DownloadCompleteMsg:
			s.reg.Complete(id, m.Path)
			notify.Safe(s.notifier, "Download complete", m.Filename)
			s.archive(m.Path)

		case events.DownloadErrorMsg:
			text := "download failed"
			if m.Err != nil {
				text = m.Err.Error()
			}
			s.reg.Fail(id, m.Kind, text)

		case events.DownloadPausedMsg:
			s.reg.Pause(id)

		case events.DownloadRemovedMsg:
			s.reg.Cancel(id)
		}
		s.broadcast(msg)
	}
}

func (s *LocalDownloadService) archive(path string) {
	if s.archiver == nil || path == "" {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.archiver.Archive(s.ctx, path); err != nil {
			s.log.Warn("archive failed", zap.String("path", path), zap.Error(err))
		}
	}()
}

func (s *LocalDownloadService) forwardRegistry(changes <-chan struct{}) {
	defer s.background.Done()
	for range changes {
		s.broadcast(events.RegistryChangedMsg{Records: s.reg.All()})
	}
}

func (s *LocalDownloadService) broadcast(msg any) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (s *LocalDownloadService) removeListener(id int) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if ch, ok := s.listeners[id]; ok {
		delete(s.listeners, id)
		close(ch)
	}
}

// percent maps a byte count to [0,100]; unknown totals report 0.
func percent(done, total int64) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	p := done * 100 / total
	if p > 100 {
		p = 100
	}
	return int(p)
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
