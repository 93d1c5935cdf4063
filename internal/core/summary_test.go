package core

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func tx(kind Kind, category string, amount int64, paid bool) Transaction {
	return Transaction{Kind: kind, Category: category, Amount: decimal.NewFromInt(amount), Paid: paid, Date: NewDate(2024, 3, 1)}
}

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics([]Transaction{
		tx(KindIncome, "Publicidad", 100, true),
		tx(KindExpense, "Software", 40, true),
		tx(KindExpense, "Software", 10, false),
	})
	check := func(name string, got decimal.Decimal, want int64) {
		t.Helper()
		if !got.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("%s = %s, want %d", name, got, want)
		}
	}
	check("balance", m.Balance, 60)
	check("totalIncome", m.TotalIncome, 100)
	check("totalExpense", m.TotalExpense, 50)
	check("pending", m.Pending, 10)
	if m.TransactionCount != 3 {
		t.Fatalf("count = %d", m.TransactionCount)
	}
}

func TestComputeMetricsPendingIgnoresKind(t *testing.T) {
	m := ComputeMetrics([]Transaction{
		tx(KindIncome, "Publicidad", 70, false),
		tx(KindExpense, "Software", 30, false),
	})
	if !m.Pending.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pending = %s, want 100", m.Pending)
	}
}

func TestComputeDistribution(t *testing.T) {
	txs := []Transaction{
		tx(KindExpense, "Viajes", 10, true),
		tx(KindExpense, "Agente", 30, true),
		tx(KindIncome, "Agentes de IA", 20, true),
		tx(KindExpense, "Software", 40, true),
		tx(KindExpense, "Comida", 10, true),
	}
	got := ComputeDistribution(txs)

	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Name
	}
	wantNames := []string{CategoryAIAgents, "Software", "Viajes", "Comida"}
	if !reflect.DeepEqual(names, wantNames) {
		t.Fatalf("order = %v, want %v", names, wantNames)
	}
	if !got[0].Total.Equal(decimal.NewFromInt(50)) || got[0].Percentage != 50 {
		t.Fatalf("unexpected aggregated share %+v", got[0])
	}
	if got[0].Color != "#F54180" || got[1].Color != "#17C964" {
		t.Fatalf("explicit colors not applied: %+v", got[:2])
	}
	// Colors for unknown categories follow first appearance, not the sort.
	if got[2].Color != "#E11D48" || got[3].Color != "#7828C8" {
		t.Fatalf("unexpected fallback colors: %s %s", got[2].Color, got[3].Color)
	}
}

func TestComputeDistributionIdempotent(t *testing.T) {
	txs := []Transaction{
		tx(KindExpense, "Hobbie", 5, true),
		tx(KindIncome, "Mentoria", 15, false),
	}
	a, b := ComputeDistribution(txs), ComputeDistribution(txs)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("distribution not deterministic: %+v vs %+v", a, b)
	}
	if ComputeDistribution(nil) != nil {
		t.Fatalf("expected empty distribution for no transactions")
	}
}
