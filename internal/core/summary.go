package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Metrics are the dashboard totals for a list of transactions.
type Metrics struct {
	Balance          decimal.Decimal `json:"balance"`
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	TotalExpense     decimal.Decimal `json:"totalExpense"`
	Pending          decimal.Decimal `json:"pending"`
	TransactionCount int             `json:"transactionCount"`
}

// CategoryShare is one slice of the category distribution.
type CategoryShare struct {
	Name       string          `json:"name"`
	Total      decimal.Decimal `json:"total"`
	Percentage float64         `json:"percentage"`
	Color      string          `json:"color"`
}

// ComputeMetrics sums txs. Pending adds every unpaid amount regardless of
// kind.
func ComputeMetrics(txs []Transaction) Metrics {
	m := Metrics{TransactionCount: len(txs)}
	for _, tx := range txs {
		switch tx.Kind {
		case KindIncome:
			m.TotalIncome = m.TotalIncome.Add(tx.Amount)
		case KindExpense:
			m.TotalExpense = m.TotalExpense.Add(tx.Amount)
		}
		if !tx.Paid {
			m.Pending = m.Pending.Add(tx.Amount)
		}
	}
	m.Balance = m.TotalIncome.Sub(m.TotalExpense)
	return m
}

// ComputeDistribution groups txs by normalized category. Colors are
// assigned in order of first appearance, then shares are ordered by total,
// largest first, keeping first-appearance order on ties.
func ComputeDistribution(txs []Transaction) []CategoryShare {
	var (
		shares   []CategoryShare
		index    = map[string]int{}
		assigned []string
		grand    decimal.Decimal
	)
	for _, tx := range txs {
		name := NormalizeCategory(tx.Category)
		amount := tx.Amount.Abs()
		grand = grand.Add(amount)

		i, ok := index[name]
		if !ok {
			color := PickColor(name, assigned)
			if _, canonical := CategoryColor(name); !canonical {
				assigned = append(assigned, color)
			}
			i = len(shares)
			index[name] = i
			shares = append(shares, CategoryShare{Name: name, Color: color})
		}
		shares[i].Total = shares[i].Total.Add(amount)
	}

	for i := range shares {
		if grand.IsPositive() {
			shares[i].Percentage = shares[i].Total.Div(grand).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
	}
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].Total.GreaterThan(shares[b].Total)
	})
	return shares
}
