package views

import (
	"fmt"
	"sort"
	"strings"

	"tablero/internal/core"
)

// PageSize is the number of rows per table page.
const PageSize = 10

// SortField names a sortable table column.
type SortField string

const (
	SortByDate     SortField = "fecha"
	SortByAmount   SortField = "importe"
	SortByCategory SortField = "categoria"
)

// SortDir is the direction of a table sort.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// PaidFilter restricts the table by payment status.
type PaidFilter string

const (
	PaidAll     PaidFilter = "all"
	PaidOnly    PaidFilter = "paid"
	PendingOnly PaidFilter = "pending"
)

// Sort is the active ordering of the table.
type Sort struct {
	Field SortField `json:"field"`
	Dir   SortDir   `json:"dir"`
}

// DefaultSort orders the table newest first.
var DefaultSort = Sort{Field: SortByDate, Dir: Desc}

// ToggleSort returns the ordering after clicking field's header: the
// current field flips direction, any other field starts descending.
func ToggleSort(current Sort, field SortField) Sort {
	if current.Field == field {
		if current.Dir == Asc {
			return Sort{Field: field, Dir: Desc}
		}
		return Sort{Field: field, Dir: Asc}
	}
	return Sort{Field: field, Dir: Desc}
}

// ParseSortField validates a column name.
func ParseSortField(raw string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(raw))); f {
	case SortByDate, SortByAmount, SortByCategory:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", raw)
}

// ParseSort validates a field and direction pair. Empty values take the
// defaults.
func ParseSort(field, dir string) (Sort, error) {
	s := DefaultSort
	if strings.TrimSpace(field) != "" {
		f, err := ParseSortField(field)
		if err != nil {
			return Sort{}, err
		}
		s.Field = f
	}
	switch d := SortDir(strings.ToLower(strings.TrimSpace(dir))); d {
	case "":
	case Asc, Desc:
		s.Dir = d
	default:
		return Sort{}, fmt.Errorf("unknown sort direction %q", dir)
	}
	return s, nil
}

// ParsePaidFilter maps "", all, paid and pending onto a PaidFilter.
func ParsePaidFilter(raw string) (PaidFilter, error) {
	switch p := PaidFilter(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", PaidAll:
		return PaidAll, nil
	case PaidOnly, PendingOnly:
		return p, nil
	}
	return "", fmt.Errorf("unknown paid filter %q", raw)
}

// TableQuery selects one page of the transaction table. Kind is empty for
// all kinds; Page is one-based.
type TableQuery struct {
	Search string
	Kind   core.Kind
	Paid   PaidFilter
	Sort   Sort
	Page   int
}

// TablePage is one page of filtered, sorted transactions.
type TablePage struct {
	Rows       []core.Transaction `json:"rows"`
	Page       int                `json:"page"`
	TotalPages int                `json:"totalPages"`
	TotalRows  int                `json:"totalRows"`
	Sort       Sort               `json:"sort"`
}

// Table filters, sorts and paginates txs. The search matches category and
// note ignoring case and accents. Sorting is stable, so equal keys keep
// fetch order. A page outside the result is clamped to the nearest one.
func Table(txs []core.Transaction, q TableQuery) TablePage {
	if q.Sort.Field == "" {
		q.Sort.Field = DefaultSort.Field
	}
	if q.Sort.Dir == "" {
		q.Sort.Dir = DefaultSort.Dir
	}

	needle := core.Fold(q.Search)
	rows := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if needle != "" &&
			!strings.Contains(core.Fold(tx.Category), needle) &&
			!strings.Contains(core.Fold(tx.Note), needle) {
			continue
		}
		if q.Kind != "" && tx.Kind != q.Kind {
			continue
		}
		switch q.Paid {
		case PaidOnly:
			if !tx.Paid {
				continue
			}
		case PendingOnly:
			if tx.Paid {
				continue
			}
		}
		rows = append(rows, tx)
	}

	less := lessFunc(q.Sort.Field)
	sort.SliceStable(rows, func(i, j int) bool {
		if q.Sort.Dir == Asc {
			return less(rows[i], rows[j])
		}
		return less(rows[j], rows[i])
	})

	total := len(rows)
	pages := (total + PageSize - 1) / PageSize
	page := q.Page
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return TablePage{
		Rows:       rows[start:end],
		Page:       page,
		TotalPages: pages,
		TotalRows:  total,
		Sort:       q.Sort,
	}
}

func lessFunc(field SortField) func(a, b core.Transaction) bool {
	switch field {
	case SortByAmount:
		return func(a, b core.Transaction) bool { return a.Amount.LessThan(b.Amount) }
	case SortByCategory:
		return func(a, b core.Transaction) bool { return a.Category < b.Category }
	default:
		return func(a, b core.Transaction) bool { return a.Date.Before(b.Date.Time) }
	}
}
