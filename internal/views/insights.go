package views

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tablero/internal/core"
)

const noChannel = "N/A"

// Insights are the headline figures of the whole transaction list.
type Insights struct {
	BestMonth          string          `json:"bestMonth"`
	BestMonthProfit    decimal.Decimal `json:"bestMonthProfit"`
	BestCategory       string          `json:"bestCategory"`
	BestCategoryIncome decimal.Decimal `json:"bestCategoryIncome"`
	TopChannel         string          `json:"topChannel"`
	TopChannelIncome   decimal.Decimal `json:"topChannelIncome"`
	ROI                string          `json:"roi"`
}

type bucket struct {
	key   string
	total decimal.Decimal
}

// ordered accumulates totals per key and remembers first-appearance order.
type ordered struct {
	index   map[string]int
	buckets []bucket
}

func (o *ordered) add(key string, v decimal.Decimal) {
	if o.index == nil {
		o.index = map[string]int{}
	}
	i, ok := o.index[key]
	if !ok {
		i = len(o.buckets)
		o.index[key] = i
		o.buckets = append(o.buckets, bucket{key: key})
	}
	o.buckets[i].total = o.buckets[i].total.Add(v)
}

// leader returns the bucket with the largest total. Only a strictly larger
// total replaces the current leader, so the earliest bucket wins ties.
func (o *ordered) leader() (bucket, bool) {
	if len(o.buckets) == 0 {
		return bucket{}, false
	}
	best := o.buckets[0]
	for _, b := range o.buckets[1:] {
		if b.total.GreaterThan(best.total) {
			best = b
		}
	}
	return best, true
}

// ComputeInsights reports the most profitable month, the category with the
// most income and the return on expenses. ok is false for an empty list.
//
// Month profit counts every non-income kind as a cost. ROI is
// (income-expense)/expense rendered as "1.5x", or "∞" without expenses.
func ComputeInsights(txs []core.Transaction) (Insights, bool) {
	if len(txs) == 0 {
		return Insights{}, false
	}

	var months, categories ordered
	var income, expense decimal.Decimal
	for _, tx := range txs {
		month := monthLabel(tx.Date.Time)
		if tx.Kind.IsIncome() {
			months.add(month, tx.Amount)
			categories.add(tx.Category, tx.Amount)
			income = income.Add(tx.Amount)
			continue
		}
		months.add(month, tx.Amount.Neg())
		if tx.Kind.IsExpense() {
			expense = expense.Add(tx.Amount)
		}
	}

	var in Insights
	if m, ok := months.leader(); ok {
		in.BestMonth, in.BestMonthProfit = m.key, m.total
	}
	in.TopChannel = noChannel
	if c, ok := categories.leader(); ok {
		in.BestCategory, in.BestCategoryIncome = c.key, c.total
		in.TopChannel, in.TopChannelIncome = c.key, c.total
	}
	in.ROI = formatROI(income, expense)
	return in, true
}

func formatROI(income, expense decimal.Decimal) string {
	if !expense.IsPositive() {
		return "∞"
	}
	roi := income.Sub(expense).Div(expense)
	return fmt.Sprintf("%sx", roi.StringFixed(1))
}
