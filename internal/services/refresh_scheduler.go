package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tablero/internal/core"
	"tablero/internal/store"
)

// RowFetcher returns the raw sheet matrix, header row included.
type RowFetcher interface {
	FetchAll(ctx context.Context) ([][]string, error)
}

// StateWriter receives the results of a refresh.
type StateWriter interface {
	ReplaceTransactions(list []core.Transaction)
	UpdateConnectionStatus(u store.StatusUpdate)
}

// ErrSchedulerStopped is returned by Start after Stop.
var ErrSchedulerStopped = errors.New("refresh scheduler stopped")

// RefreshSchedulerConfig holds configuration for the refresh scheduler
type RefreshSchedulerConfig struct {
	// Interval between refreshes (default: 5s)
	Interval time.Duration
}

// DefaultRefreshSchedulerConfig returns sensible defaults
func DefaultRefreshSchedulerConfig() RefreshSchedulerConfig {
	return RefreshSchedulerConfig{Interval: 5 * time.Second}
}

// RefreshScheduler polls the sheet and publishes each result to the store.
// At most one fetch runs at a time: ticks and manual refreshes that arrive
// while a fetch is in flight are dropped, not queued.
type RefreshScheduler struct {
	fetcher RowFetcher
	state   StateWriter
	config  RefreshSchedulerConfig
	now     func() time.Time

	fetching atomic.Bool

	// applyMu orders store writes against Stop; once closed is set no
	// result reaches the store.
	applyMu sync.RWMutex
	closed  bool

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// NewRefreshScheduler creates a new refresh scheduler
func NewRefreshScheduler(fetcher RowFetcher, state StateWriter, config RefreshSchedulerConfig) *RefreshScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshSchedulerConfig().Interval
	}
	return &RefreshScheduler{
		fetcher: fetcher,
		state:   state,
		config:  config,
		now:     time.Now,
	}
}

// Start fetches once immediately, then on every interval tick. Returns an
// error if already running or stopped.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("refresh scheduler is already running")
	}
	if s.isClosed() {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(loopCtx)

	slog.InfoContext(ctx, "Refresh scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop ends the loop, cancels an in-flight fetch and waits for it. After
// Stop returns the store is never written again.
func (s *RefreshScheduler) Stop(ctx context.Context) error {
	s.applyMu.Lock()
	s.closed = true
	s.applyMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-s.doneCh
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "Refresh scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the loop is active
func (s *RefreshScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Fetching reports whether a fetch is in flight.
func (s *RefreshScheduler) Fetching() bool {
	return s.fetching.Load()
}

// Refresh runs one fetch on the calling goroutine. It returns false without
// fetching when another fetch is in flight or the scheduler was stopped.
func (s *RefreshScheduler) Refresh(ctx context.Context) bool {
	if s.isClosed() {
		return false
	}
	if !s.fetching.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "Refresh skipped, fetch already in flight")
		return false
	}
	defer s.fetching.Store(false)

	s.refresh(ctx)
	return true
}

func (s *RefreshScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	s.Refresh(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Ticks must not queue behind a slow fetch, so each one runs
			// on its own goroutine and loses to the in-flight guard.
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.Refresh(ctx)
			}()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *RefreshScheduler) refresh(ctx context.Context) {
	start := s.now()
	values, fetchErr := s.fetcher.FetchAll(ctx)

	s.applyMu.RLock()
	defer s.applyMu.RUnlock()
	if s.closed {
		slog.DebugContext(ctx, "Discarding fetch result after stop")
		return
	}

	if fetchErr != nil {
		s.state.UpdateConnectionStatus(store.StatusUpdate{
			Connected: store.Bool(false),
			Error:     store.String(fetchErr.Error()),
		})
		slog.WarnContext(ctx, "Sheet refresh failed",
			"error", fetchErr,
			"configuration_error", core.IsConfigurationError(fetchErr))
		return
	}

	now := s.now()
	txs, stats := core.TransformRows(core.DataRows(values), now)
	s.state.ReplaceTransactions(txs)
	s.state.UpdateConnectionStatus(store.StatusUpdate{
		Connected:  store.Bool(true),
		LastUpdate: store.Time(now),
		Error:      store.String(""),
	})

	if stats.Short > 0 || stats.InvalidAmount > 0 || stats.DefaultedDates > 0 {
		slog.WarnContext(ctx, "Sheet rows needed repair or were dropped",
			"rows", stats.Rows,
			"short_rows", stats.Short,
			"invalid_amounts", stats.InvalidAmount,
			"defaulted_dates", stats.DefaultedDates)
	}
	slog.DebugContext(ctx, "Sheet refresh completed",
		"transactions", len(txs),
		"duration_ms", now.Sub(start).Milliseconds())
}

func (s *RefreshScheduler) isClosed() bool {
	s.applyMu.RLock()
	defer s.applyMu.RUnlock()
	return s.closed
}
