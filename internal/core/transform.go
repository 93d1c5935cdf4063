package core

import (
	"strconv"
	"strings"
	"time"
)

// MinRowCells is the number of cells a row needs to become a transaction:
// date, kind, category, amount and status. The note is optional.
const MinRowCells = 5

const (
	colDate = iota
	colKind
	colCategory
	colAmount
	colStatus
	colNote
)

// TransformStats counts what happened to the rows of one transform pass.
type TransformStats struct {
	Rows           int
	Short          int
	InvalidAmount  int
	DefaultedDates int
}

// Kept is the number of rows that became transactions.
func (s TransformStats) Kept() int {
	return s.Rows - s.Short - s.InvalidAmount
}

// DataRows returns values without its header row.
func DataRows(values [][]string) [][]string {
	if len(values) == 0 {
		return nil
	}
	return values[1:]
}

// TransformRows converts header-less sheet rows into transactions.
//
// Rows with fewer than MinRowCells cells are skipped. Ids take the form
// "transaction-{n}" where n counts the rows that passed the length check,
// including rows later dropped for a non-finite amount. An unreadable date
// falls back to now; kind and category are kept as written, apart from
// category normalization.
func TransformRows(rows [][]string, now time.Time) ([]Transaction, TransformStats) {
	stats := TransformStats{Rows: len(rows)}
	out := make([]Transaction, 0, len(rows))

	index := 0
	for _, row := range rows {
		if len(row) < MinRowCells {
			stats.Short++
			continue
		}
		id := "transaction-" + strconv.Itoa(index)
		index++

		amount, err := AmountFromFloat(ParseAmount(row[colAmount]))
		if err != nil {
			stats.InvalidAmount++
			continue
		}

		date, err := ParseDate(row[colDate])
		if err != nil {
			date = DateOf(now)
			stats.DefaultedDates++
		}

		tx := Transaction{
			ID:       id,
			Date:     date,
			Kind:     Kind(strings.TrimSpace(row[colKind])),
			Category: NormalizeCategory(row[colCategory]),
			Amount:   amount,
			Paid:     ParsePaidStatus(row[colStatus]),
		}
		if len(row) > colNote {
			tx.Note = strings.TrimSpace(row[colNote])
		}
		out = append(out, tx)
	}
	return out, stats
}
