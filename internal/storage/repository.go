package storage

import (
	"context"
	"log/slog"
	"strings"

	"tablero/internal/core"
	ports "tablero/internal/sheets"
)

const (
	DefaultSheetName = "Hoja 1"
	DefaultDataRange = "A:F"

	// appendColumns is the fixed column span new rows are written to.
	appendColumns = "A:F"
)

// Target locates the transaction table inside a spreadsheet.
type Target struct {
	SpreadsheetID string
	SheetName     string
	DataRange     string
}

// WithDefaults fills an empty sheet name and data range.
func (t Target) WithDefaults() Target {
	if strings.TrimSpace(t.SheetName) == "" {
		t.SheetName = DefaultSheetName
	}
	if strings.TrimSpace(t.DataRange) == "" {
		t.DataRange = DefaultDataRange
	}
	return t
}

// ReadRange is the A1 range fetched by FetchAll.
func (t Target) ReadRange() string { return t.SheetName + "!" + t.DataRange }

// AppendRange is the A1 range new rows are appended to.
func (t Target) AppendRange() string { return t.SheetName + "!" + appendColumns }

func (t Target) missing() []string {
	var missing []string
	if strings.TrimSpace(t.SpreadsheetID) == "" {
		missing = append(missing, "GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(t.SheetName) == "" {
		missing = append(missing, "GOOGLE_SHEET_NAME")
	}
	if strings.TrimSpace(t.DataRange) == "" {
		missing = append(missing, "GOOGLE_DATA_RANGE")
	}
	return missing
}

// TransactionRepository reads and appends transaction rows through the
// sheet boundary. It holds no row state and never retries.
type TransactionRepository struct {
	boundary ports.Boundary
	target   Target
	// unavailable is set when the boundary could not be built.
	unavailable error
}

func NewTransactionRepository(boundary ports.Boundary, target Target) *TransactionRepository {
	return &TransactionRepository{boundary: boundary, target: target.WithDefaults()}
}

// NewUnavailableRepository returns a repository whose every operation
// fails with cause, typically a *core.ConfigurationError for missing
// credentials.
func NewUnavailableRepository(cause error, target Target) *TransactionRepository {
	return &TransactionRepository{target: target.WithDefaults(), unavailable: cause}
}

// Target returns the configured sheet location.
func (r *TransactionRepository) Target() Target { return r.target }

func (r *TransactionRepository) precondition() error {
	if r.unavailable != nil {
		return r.unavailable
	}
	missing := r.target.missing()
	if r.boundary == nil {
		missing = append(missing, "sheets credentials")
	}
	if len(missing) > 0 {
		return &core.ConfigurationError{Missing: missing}
	}
	return nil
}

// FetchAll returns the raw cell matrix of the data range, header row
// included.
func (r *TransactionRepository) FetchAll(ctx context.Context) ([][]string, error) {
	if err := r.precondition(); err != nil {
		return nil, err
	}
	rows, err := r.boundary.ReadValues(ctx, r.target.SpreadsheetID, r.target.ReadRange())
	if err != nil {
		return nil, &core.FetchError{Err: err}
	}
	slog.DebugContext(ctx, "Fetched sheet rows", "range", r.target.ReadRange(), "rows", len(rows))
	return rows, nil
}

// Append writes one entry after the last row of the sheet and returns the
// updated range reported by the boundary.
func (r *TransactionRepository) Append(ctx context.Context, e core.Entry) (string, error) {
	if err := r.precondition(); err != nil {
		return "", err
	}
	updated, err := r.boundary.AppendValues(ctx, r.target.SpreadsheetID, r.target.AppendRange(), e.Row())
	if err != nil {
		return "", &core.AppendError{Err: err}
	}
	slog.InfoContext(ctx, "Appended transaction row",
		"range", updated,
		"kind", e.Kind,
		"category", e.Category,
		"amount", e.Amount.String())
	return updated, nil
}
