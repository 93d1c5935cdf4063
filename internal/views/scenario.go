package views

import (
	"github.com/shopspring/decimal"

	"tablero/internal/core"
)

// Slider bounds of the scenario simulator, in percent.
const (
	MaxIncomeGrowth      = 100
	MinExpenseAdjustment = -50
	MaxExpenseAdjustment = 50
)

// Scenario is the projected profit after scaling income and expenses.
type Scenario struct {
	IncomeGrowth      int             `json:"incomeGrowth"`
	ExpenseAdjustment int             `json:"expenseAdjustment"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	TotalExpense      decimal.Decimal `json:"totalExpense"`
	BaseProfit        decimal.Decimal `json:"baseProfit"`
	Projection        decimal.Decimal `json:"projection"`
	Difference        decimal.Decimal `json:"difference"`
}

// Simulate projects profit with income grown by incomeGrowth percent and
// expenses changed by expenseAdjustment percent. Inputs are clamped to
// [0, 100] and [-50, 50].
func Simulate(txs []core.Transaction, incomeGrowth, expenseAdjustment int) Scenario {
	incomeGrowth = clamp(incomeGrowth, 0, MaxIncomeGrowth)
	expenseAdjustment = clamp(expenseAdjustment, MinExpenseAdjustment, MaxExpenseAdjustment)

	m := core.ComputeMetrics(txs)
	hundred := decimal.NewFromInt(100)
	income := m.TotalIncome.Mul(hundred.Add(decimal.NewFromInt(int64(incomeGrowth)))).Div(hundred)
	expense := m.TotalExpense.Mul(hundred.Add(decimal.NewFromInt(int64(expenseAdjustment)))).Div(hundred)

	s := Scenario{
		IncomeGrowth:      incomeGrowth,
		ExpenseAdjustment: expenseAdjustment,
		TotalIncome:       m.TotalIncome,
		TotalExpense:      m.TotalExpense,
		BaseProfit:        m.Balance,
		Projection:        income.Sub(expense),
	}
	s.Difference = s.Projection.Sub(s.BaseProfit)
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
