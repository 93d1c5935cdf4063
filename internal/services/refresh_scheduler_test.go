package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tablero/internal/store"
)

var header = []string{"Fecha", "Tipo", "Categoria", "Importe", "Estado"}

type fakeFetcher struct {
	mu     sync.Mutex
	values [][]string
	err    error
	calls  atomic.Int32
	// block, when set, holds FetchAll until it is closed or ctx ends.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([][]string, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values, f.err
}

func (f *fakeFetcher) set(values [][]string, err error) {
	f.mu.Lock()
	f.values, f.err = values, err
	f.mu.Unlock()
}

func newTestScheduler(f RowFetcher, st *store.Store) *RefreshScheduler {
	s := NewRefreshScheduler(f, st, RefreshSchedulerConfig{Interval: time.Hour})
	s.now = func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestDefaultRefreshSchedulerConfig(t *testing.T) {
	if got := DefaultRefreshSchedulerConfig().Interval; got != 5*time.Second {
		t.Errorf("expected Interval 5s, got %v", got)
	}
	s := NewRefreshScheduler(nil, nil, RefreshSchedulerConfig{})
	if s.config.Interval != 5*time.Second {
		t.Errorf("zero interval should fall back to default, got %v", s.config.Interval)
	}
}

func TestRefreshScheduler_RefreshSuccess(t *testing.T) {
	f := &fakeFetcher{values: [][]string{
		header,
		{"15/03/2024", "Ingreso", "Publicidad", "100", "Pagado"},
		{"16/03/2024", "Gasto", "Agente", "40", "Pendiente", "api"},
		{"short"},
	}}
	st := store.New()
	s := newTestScheduler(f, st)

	if !s.Refresh(context.Background()) {
		t.Fatal("Refresh should run when idle")
	}

	state := st.State()
	if len(state.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(state.Transactions))
	}
	if state.Transactions[1].Category != "Agentes de IA" {
		t.Fatalf("category not normalized: %q", state.Transactions[1].Category)
	}
	if !state.Status.Connected || state.Status.Error != "" || state.Status.LastUpdate == nil {
		t.Fatalf("unexpected status %+v", state.Status)
	}
	if !state.Status.LastUpdate.Equal(s.now()) {
		t.Fatalf("last update = %v", state.Status.LastUpdate)
	}
}

func TestRefreshScheduler_FailureKeepsData(t *testing.T) {
	f := &fakeFetcher{values: [][]string{header, {"15/03/2024", "Ingreso", "Publicidad", "100", "Pagado"}}}
	st := store.New()
	s := newTestScheduler(f, st)
	s.Refresh(context.Background())

	f.set(nil, errors.New("fetch rows: status 503"))
	s.Refresh(context.Background())

	state := st.State()
	if len(state.Transactions) != 1 || state.Version != 1 {
		t.Fatalf("failed fetch must leave transactions untouched: %+v", state)
	}
	if state.Status.Connected || state.Status.Error != "fetch rows: status 503" {
		t.Fatalf("unexpected status %+v", state.Status)
	}
	if state.Status.LastUpdate == nil {
		t.Fatal("last update from the earlier success should be kept")
	}

	// The error stays until a later fetch succeeds.
	f.set([][]string{header}, nil)
	s.Refresh(context.Background())
	if st.Status().Error != "" || !st.Status().Connected {
		t.Fatalf("success should clear the error: %+v", st.Status())
	}
}

func TestRefreshScheduler_SkipsWhileFetching(t *testing.T) {
	f := &fakeFetcher{
		values:  [][]string{header},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newTestScheduler(f, store.New())

	done := make(chan bool)
	go func() { done <- s.Refresh(context.Background()) }()
	<-f.started

	if !s.Fetching() {
		t.Fatal("expected Fetching while blocked")
	}
	if s.Refresh(context.Background()) {
		t.Fatal("overlapping refresh must be skipped")
	}

	close(f.block)
	if !<-done {
		t.Fatal("first refresh should report it ran")
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
	if s.Fetching() {
		t.Fatal("expected idle after fetch")
	}
}

func TestRefreshScheduler_StopDiscardsInFlight(t *testing.T) {
	f := &fakeFetcher{
		values:  [][]string{header, {"15/03/2024", "Ingreso", "Publicidad", "100", "Pagado"}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	st := store.New()
	s := newTestScheduler(f, st)

	done := make(chan struct{})
	go func() {
		s.Refresh(context.Background())
		close(done)
	}()
	<-f.started

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(f.block)
	<-done

	if st.Version() != 0 || st.Status().Connected {
		t.Fatalf("result arriving after stop must not reach the store: %+v", st.State())
	}
	if s.Refresh(context.Background()) {
		t.Fatal("Refresh after Stop must be a no-op")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("Start after Stop = %v, want ErrSchedulerStopped", err)
	}
}

func TestRefreshScheduler_StartAndTick(t *testing.T) {
	f := &fakeFetcher{values: [][]string{header}}
	st := store.New()
	s := NewRefreshScheduler(f, st, RefreshSchedulerConfig{Interval: 10 * time.Millisecond})

	if s.IsRunning() {
		t.Fatal("scheduler should not be running initially")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.calls.Load() < 3 {
		t.Fatalf("expected periodic fetches, got %d", f.calls.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("scheduler should not be running after Stop")
	}
	if !st.Status().Connected {
		t.Fatal("expected connected status after successful ticks")
	}
}

func TestRefreshScheduler_StopCancelsBlockedFetch(t *testing.T) {
	f := &fakeFetcher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewRefreshScheduler(f, store.New(), RefreshSchedulerConfig{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-f.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop should cancel the in-flight fetch, got %v", err)
	}
}
