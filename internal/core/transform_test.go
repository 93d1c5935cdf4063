package core

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTransformRows(t *testing.T) {
	rows := [][]string{
		{"15/03/2024", "Gasto", "Software", "100", "Pagado", "licencias"},
		{"16/03/2024", "Ingreso", "Publicidad"},
		{"17/03/2024", "Ingreso", "Agente IA", "1.234,56", "no"},
		{"18/03/2024", "Gasto", "Servidores", "Infinity", "si"},
		{"no es fecha", "Gasto", "Hobbie", "abc", "sí"},
	}

	txs, stats := TransformRows(rows, fixedNow)

	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d: %+v", len(txs), txs)
	}
	if stats.Short != 1 || stats.InvalidAmount != 1 || stats.DefaultedDates != 1 || stats.Kept() != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	first := txs[0]
	if first.ID != "transaction-0" || first.Kind != KindExpense || first.Category != "Software" ||
		first.Amount.String() != "100" || !first.Paid || first.Note != "licencias" ||
		first.Date.String() != "15/03/2024" {
		t.Fatalf("unexpected first transaction %+v", first)
	}

	second := txs[1]
	if second.ID != "transaction-1" {
		t.Fatalf("ids count rows that passed the length check, got %q", second.ID)
	}
	if second.Category != CategoryAIAgents {
		t.Fatalf("expected alias normalized, got %q", second.Category)
	}
	if second.Amount.String() != "1234.56" || second.Paid || second.Note != "" {
		t.Fatalf("unexpected second transaction %+v", second)
	}

	// transaction-2 was dropped for its infinite amount; the unparsable
	// amount still becomes 0 and survives with a defaulted date.
	third := txs[2]
	if third.ID != "transaction-3" {
		t.Fatalf("expected pre-filter index, got %q", third.ID)
	}
	if !third.Amount.IsZero() || !third.Date.Equal(DateOf(fixedNow).Time) {
		t.Fatalf("unexpected third transaction %+v", third)
	}
}

func TestTransformRowsKeepsUnknownKind(t *testing.T) {
	txs, _ := TransformRows([][]string{{"01/01/2024", "Transferencia", "Otra", "5", ""}}, fixedNow)
	if len(txs) != 1 || txs[0].Kind != "Transferencia" || txs[0].Category != "Otra" {
		t.Fatalf("expected row kept verbatim, got %+v", txs)
	}
}

func TestTransformRowsYield(t *testing.T) {
	// Every row with at least five cells and a finite amount yields exactly
	// one transaction.
	var rows [][]string
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{"01/01/2024", "Gasto", "Software", "1", "Pagado"})
	}
	rows = append(rows, []string{"01/01/2024", "Gasto", "Software", "1"})
	txs, stats := TransformRows(rows, fixedNow)
	if len(txs) != 50 || stats.Short != 1 {
		t.Fatalf("expected 50 transactions and one short row, got %d / %+v", len(txs), stats)
	}
	seen := map[string]bool{}
	for _, tx := range txs {
		if seen[tx.ID] {
			t.Fatalf("duplicate id %q", tx.ID)
		}
		seen[tx.ID] = true
	}
}

func TestDataRows(t *testing.T) {
	if DataRows(nil) != nil {
		t.Fatalf("expected nil for empty values")
	}
	values := [][]string{{"Fecha", "Tipo"}, {"01/01/2024", "Gasto"}}
	if got := DataRows(values); len(got) != 1 || got[0][0] != "01/01/2024" {
		t.Fatalf("unexpected data rows %v", got)
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"Agente":        CategoryAIAgents,
		"Agente IA":     CategoryAIAgents,
		" agente ia ":   CategoryAIAgents,
		"Agentes de IA": CategoryAIAgents,
		"software":      CategorySoftware,
		"Mentoría":      CategoryMentoring,
		"Viajes":        "Viajes",
		"  Viajes  ":    "Viajes",
	}
	for in, want := range cases {
		if got := NormalizeCategory(in); got != want {
			t.Fatalf("NormalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPickColor(t *testing.T) {
	if got := PickColor("Software", nil); got != "#17C964" {
		t.Fatalf("explicit color expected, got %s", got)
	}
	if got := PickColor("Agente", nil); got != "#F54180" {
		t.Fatalf("alias should share the canonical color, got %s", got)
	}

	var assigned []string
	want := []string{"#E11D48", "#7828C8", "#FBBF24"}
	for i, w := range want {
		c := PickColor("extra", assigned)
		if c != w {
			t.Fatalf("unknown #%d: got %s, want %s", i, c, w)
		}
		assigned = append(assigned, c)
	}
	// Free slots exhausted: cycle the palette by count.
	if c := PickColor("extra", assigned); c != Palette[3] {
		t.Fatalf("expected palette cycling, got %s", c)
	}
	// Deterministic for the same input.
	if PickColor("x", assigned[:1]) != PickColor("y", assigned[:1]) {
		t.Fatalf("expected same color for same assignment state")
	}
}
