// Package views derives the per-view aggregations of the dashboard from a
// transaction list. Every function is pure and leaves its input untouched.
package views

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tablero/internal/core"
)

// MonthLayout is the layout of month keys, e.g. "2024-03".
const MonthLayout = "2006-01"

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// EvolutionPoint is the income and expense of one calendar day.
type EvolutionPoint struct {
	Date    core.Date       `json:"date"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// MonthOption is one entry of the month selector.
type MonthOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// FilterMonth keeps the transactions dated in month ("2006-01"). An empty
// month returns txs unchanged.
func FilterMonth(txs []core.Transaction, month string) []core.Transaction {
	if month == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.MonthKey() == month {
			out = append(out, tx)
		}
	}
	return out
}

// ValidMonth reports whether month is a well-formed month key.
func ValidMonth(month string) bool {
	_, err := time.Parse(MonthLayout, month)
	return err == nil
}

// Evolution groups txs by calendar date, oldest first. Any kind other than
// income counts as expense.
func Evolution(txs []core.Transaction) []EvolutionPoint {
	byDate := map[time.Time]*EvolutionPoint{}
	var points []*EvolutionPoint
	for _, tx := range txs {
		p, ok := byDate[tx.Date.Time]
		if !ok {
			p = &EvolutionPoint{Date: tx.Date, Label: tx.Date.String()}
			byDate[tx.Date.Time] = p
			points = append(points, p)
		}
		if tx.Kind.IsIncome() {
			p.Income = p.Income.Add(tx.Amount)
		} else {
			p.Expense = p.Expense.Add(tx.Amount)
		}
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date.Time)
	})

	out := make([]EvolutionPoint, len(points))
	for i, p := range points {
		p.Balance = p.Income.Sub(p.Expense)
		out[i] = *p
	}
	return out
}

// CategoryBreakdown is the category distribution of txs.
func CategoryBreakdown(txs []core.Transaction) []core.CategoryShare {
	return core.ComputeDistribution(txs)
}

// Metrics returns the totals of txs.
func Metrics(txs []core.Transaction) core.Metrics {
	return core.ComputeMetrics(txs)
}

// Months lists the distinct months of txs, newest first.
func Months(txs []core.Transaction) []MonthOption {
	seen := map[string]bool{}
	var keys []string
	for _, tx := range txs {
		k := tx.Date.MonthKey()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := make([]MonthOption, 0, len(keys))
	for _, k := range keys {
		out = append(out, MonthOption{Key: k, Label: MonthLabel(k)})
	}
	return out
}

// MonthLabel renders a month key as "Marzo 2024". Malformed keys are
// returned as-is.
func MonthLabel(key string) string {
	t, err := time.Parse(MonthLayout, key)
	if err != nil {
		return key
	}
	return monthLabel(t)
}

func monthLabel(t time.Time) string {
	label := spanishMonths[t.Month()-1] + " " + t.Format("2006")
	return cases.Title(language.Spanish).String(label)
}
