// Package store holds the current transaction list together with the
// metrics and category distribution derived from it.
package store

import (
	"sync"
	"time"

	"tablero/internal/core"
)

// ConnectionStatus describes the outcome of the latest sheet fetch.
type ConnectionStatus struct {
	Connected  bool       `json:"connected"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusUpdate is a partial ConnectionStatus. Nil fields are left as they
// are; an empty Error clears the current error.
type StatusUpdate struct {
	Connected  *bool
	LastUpdate *time.Time
	Error      *string
}

// State is a consistent view of the store. Its slices are copies owned by
// the caller.
type State struct {
	Version      uint64               `json:"version"`
	Transactions []core.Transaction   `json:"transactions"`
	Metrics      core.Metrics         `json:"metrics"`
	Distribution []core.CategoryShare `json:"distribution"`
	Status       ConnectionStatus     `json:"status"`
}

// snapshot is never modified after publication.
type snapshot struct {
	version      uint64
	transactions []core.Transaction
	metrics      core.Metrics
	distribution []core.CategoryShare
}

type Store struct {
	mu     sync.RWMutex
	snap   *snapshot
	status ConnectionStatus

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

func New() *Store {
	return &Store{
		snap: &snapshot{metrics: core.ComputeMetrics(nil)},
		subs: map[int]func(State){},
	}
}

// ReplaceTransactions swaps in list and recomputes every derived value from
// it. Readers see either the previous snapshot or the new one, never a mix.
func (s *Store) ReplaceTransactions(list []core.Transaction) {
	txs := append([]core.Transaction(nil), list...)
	next := &snapshot{
		transactions: txs,
		metrics:      core.ComputeMetrics(txs),
		distribution: core.ComputeDistribution(txs),
	}

	s.mu.Lock()
	next.version = s.snap.version + 1
	s.snap = next
	state := s.stateLocked()
	s.mu.Unlock()

	s.notify(state)
}

// UpdateConnectionStatus merges the non-nil fields of u into the status.
func (s *Store) UpdateConnectionStatus(u StatusUpdate) {
	s.mu.Lock()
	if u.Connected != nil {
		s.status.Connected = *u.Connected
	}
	if u.LastUpdate != nil {
		t := *u.LastUpdate
		s.status.LastUpdate = &t
	}
	if u.Error != nil {
		s.status.Error = *u.Error
	}
	state := s.stateLocked()
	s.mu.Unlock()

	s.notify(state)
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Transactions returns the current list and the snapshot version it
// belongs to. The slice must not be modified.
func (s *Store) Transactions() ([]core.Transaction, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.transactions, s.snap.version
}

// Status returns the connection status alone.
func (s *Store) Status() ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Version increases by one on every ReplaceTransactions.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.version
}

// Subscribe registers fn to run after every state transition. fn runs on
// the goroutine that caused the transition and must not call back into
// ReplaceTransactions or UpdateConnectionStatus.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) stateLocked() State {
	return State{
		Version:      s.snap.version,
		Transactions: append([]core.Transaction(nil), s.snap.transactions...),
		Metrics:      s.snap.metrics,
		Distribution: append([]core.CategoryShare(nil), s.snap.distribution...),
		Status:       s.status,
	}
}

func (s *Store) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Bool, Time and String build StatusUpdate fields.
func Bool(v bool) *bool           { return &v }
func Time(v time.Time) *time.Time { return &v }
func String(v string) *string     { return &v }
