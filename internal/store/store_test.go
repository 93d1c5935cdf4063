package store

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tablero/internal/core"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: "transaction-0", Kind: core.KindIncome, Category: "Publicidad", Amount: decimal.NewFromInt(100), Paid: true},
		{ID: "transaction-1", Kind: core.KindExpense, Category: "Software", Amount: decimal.NewFromInt(40), Paid: true},
		{ID: "transaction-2", Kind: core.KindExpense, Category: "Software", Amount: decimal.NewFromInt(10), Paid: false},
	}
}

func TestReplaceTransactions(t *testing.T) {
	s := New()
	if st := s.State(); st.Version != 0 || len(st.Transactions) != 0 || st.Metrics.TransactionCount != 0 {
		t.Fatalf("unexpected initial state %+v", st)
	}

	s.ReplaceTransactions(sample())
	st := s.State()
	if st.Version != 1 || len(st.Transactions) != 3 {
		t.Fatalf("unexpected state after replace: version=%d len=%d", st.Version, len(st.Transactions))
	}
	if !st.Metrics.Balance.Equal(decimal.NewFromInt(60)) || !st.Metrics.Pending.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected metrics %+v", st.Metrics)
	}
	if len(st.Distribution) != 2 || st.Distribution[0].Name != "Publicidad" {
		t.Fatalf("unexpected distribution %+v", st.Distribution)
	}
}

func TestReplaceTransactionsIdempotent(t *testing.T) {
	s := New()
	s.ReplaceTransactions(sample())
	first := s.State()
	s.ReplaceTransactions(sample())
	second := s.State()

	if !reflect.DeepEqual(first.Metrics, second.Metrics) {
		t.Fatalf("metrics differ: %+v vs %+v", first.Metrics, second.Metrics)
	}
	if !reflect.DeepEqual(first.Distribution, second.Distribution) {
		t.Fatalf("distribution differs: %+v vs %+v", first.Distribution, second.Distribution)
	}
	if second.Version != first.Version+1 {
		t.Fatalf("version should advance on every replace")
	}
}

func TestStateIsACopy(t *testing.T) {
	s := New()
	input := sample()
	s.ReplaceTransactions(input)

	input[0].Category = "changed by caller"
	st := s.State()
	st.Transactions[1].Category = "changed by reader"

	again := s.State()
	if again.Transactions[0].Category != "Publicidad" || again.Transactions[1].Category != "Software" {
		t.Fatalf("store state was mutated from outside: %+v", again.Transactions)
	}
}

func TestUpdateConnectionStatusMerges(t *testing.T) {
	s := New()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	s.UpdateConnectionStatus(StatusUpdate{Connected: Bool(true), LastUpdate: Time(now)})
	s.UpdateConnectionStatus(StatusUpdate{Error: String("boom")})

	st := s.Status()
	if !st.Connected || st.LastUpdate == nil || !st.LastUpdate.Equal(now) || st.Error != "boom" {
		t.Fatalf("unexpected merged status %+v", st)
	}

	s.UpdateConnectionStatus(StatusUpdate{Connected: Bool(false)})
	st = s.Status()
	if st.Connected || st.Error != "boom" || st.LastUpdate == nil {
		t.Fatalf("unspecified fields must be left untouched: %+v", st)
	}

	s.UpdateConnectionStatus(StatusUpdate{Error: String("")})
	if s.Status().Error != "" {
		t.Fatal("empty error should clear it")
	}
}

func TestFailedFetchKeepsList(t *testing.T) {
	s := New()
	s.ReplaceTransactions(sample())
	s.UpdateConnectionStatus(StatusUpdate{Connected: Bool(false), Error: String("fetch rows: timeout")})
	if st := s.State(); len(st.Transactions) != 3 || st.Version != 1 {
		t.Fatalf("status update must not touch transactions: %+v", st)
	}
}

func TestSubscribe(t *testing.T) {
	s := New()
	var (
		mu       sync.Mutex
		versions []uint64
	)
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		versions = append(versions, st.Version)
		mu.Unlock()
	})

	s.ReplaceTransactions(sample())
	s.UpdateConnectionStatus(StatusUpdate{Connected: Bool(true)})
	unsubscribe()
	unsubscribe()
	s.ReplaceTransactions(nil)

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(versions, []uint64{1, 1}) {
		t.Fatalf("unexpected notifications %v", versions)
	}
}

func TestConcurrentReaders(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st := s.State()
				// List and metrics always belong to the same snapshot.
				if st.Metrics.TransactionCount != len(st.Transactions) {
					t.Errorf("inconsistent snapshot: count=%d len=%d", st.Metrics.TransactionCount, len(st.Transactions))
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			s.ReplaceTransactions(sample())
		} else {
			s.ReplaceTransactions(sample()[:1])
		}
	}
	wg.Wait()
}
