package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
)

// DefaultDebounce is the quiet window collected into one batch save.
const DefaultDebounce = 3 * time.Second

// Saver persists a full scope snapshot at a known workflow version and
// returns the version produced by the write.
type Saver interface {
	SaveScope(ctx context.Context, scope graph.Scope, version int64, nodes []*models.Node, edges []*models.Edge) (int64, error)
}

// Synchronizer watches a graph store and flushes its snapshot after a
// debounce window. Every mutation restarts the window, so a burst of
// edits becomes a single batch write.
type Synchronizer struct {
	logger    *slog.Logger
	store     *graph.Store
	saver     Saver
	scheduler Scheduler
	debounce  time.Duration

	mu        sync.Mutex
	stop      func() bool
	status    models.SaveStatus
	lastErr   error
	version   int64
	suspended bool
	saving    bool
	rearm     bool
}

// NewSynchronizer wires a synchronizer to a store. A nil scheduler gets
// real timers and a non-positive debounce gets DefaultDebounce.
func NewSynchronizer(logger *slog.Logger, store *graph.Store, saver Saver, scheduler Scheduler, debounce time.Duration) *Synchronizer {
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Synchronizer{
		logger:    logger.With("module", "autosave"),
		store:     store,
		saver:     saver,
		scheduler: scheduler,
		debounce:  debounce,
		status:    models.SaveStatusIdle,
	}
}

// NoteChange restarts the debounce window. The graph store calls this
// from its mutation observer.
func (s *Synchronizer) NoteChange() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.suspended {
		return
	}

	if s.saving {
		// A save snapshot is in flight. Rearm once it lands so the
		// newer mutations get their own batch.
		s.rearm = true

		return
	}

	s.armLocked()
}

// Flush cancels any pending window and saves immediately. Switching
// layer views calls this so no mutation outlives its scope.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()

	if s.stop != nil {
		s.stop()
		s.stop = nil
	}

	if s.saving {
		s.rearm = true
		s.mu.Unlock()

		return nil
	}

	if !s.store.Dirty() {
		s.mu.Unlock()

		return nil
	}

	s.saving = true
	s.status = models.SaveStatusSaving
	version := s.version
	s.mu.Unlock()

	nodes, edges, seq := s.store.Snapshot()
	scope := s.store.Scope()

	newVersion, err := s.saver.SaveScope(ctx, scope, version, nodes, edges)

	s.mu.Lock()
	s.saving = false

	if err != nil {
		s.status = models.SaveStatusError
		s.lastErr = err
		s.rearm = false
		s.mu.Unlock()

		s.logger.Error("Batch save failed", "workflow_id", scope.WorkflowID, "layer", scope.Layer, "error", err)

		return err
	}

	s.version = newVersion
	s.status = models.SaveStatusSaved
	s.lastErr = nil
	s.store.AcknowledgeSave(seq)

	rearm := s.rearm
	s.rearm = false

	if rearm && !s.suspended {
		s.armLocked()
	}

	s.mu.Unlock()

	s.logger.Debug("Batch save complete", "workflow_id", scope.WorkflowID, "layer", scope.Layer, "version", newVersion)

	return nil
}

// Suspend stops scheduling until Resume. Template expansion wraps its
// batch in a suspend so the window cannot fire mid-operation.
func (s *Synchronizer) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suspended = true

	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// Resume re-enables scheduling and rearms if unsaved mutations exist.
func (s *Synchronizer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suspended = false

	if s.store.Dirty() {
		s.armLocked()
	}
}

// Reset prepares the synchronizer for a freshly loaded scope.
func (s *Synchronizer) Reset(version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.stop()
		s.stop = nil
	}

	s.version = version
	s.status = models.SaveStatusIdle
	s.lastErr = nil
	s.rearm = false
}

// Version returns the workflow version of the last successful save.
func (s *Synchronizer) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// Status returns the UI-visible save state.
func (s *Synchronizer) Status() models.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// LastError returns the error of the most recent failed save, if the
// synchronizer is in the error state.
func (s *Synchronizer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

func (s *Synchronizer) armLocked() {
	if s.stop != nil {
		s.stop()
	}

	s.stop = s.scheduler.Schedule(s.debounce, func() {
		// Errors surface through Status and LastError.
		_ = s.Flush(context.Background())
	})
}
