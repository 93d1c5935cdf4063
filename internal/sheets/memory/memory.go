package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	ports "tablero/internal/sheets"
)

// DefaultHeader is the header row of a fresh in-memory sheet.
var DefaultHeader = []string{"Fecha", "Tipo", "Categoria", "Importe", "Estado de pago", "Descripcion adicional"}

// Store keeps sheets in process memory. Each spreadsheet id and sheet name
// pair is an independent table seeded with the same rows.
type Store struct {
	mu     sync.Mutex
	seed   [][]string
	tables map[string][][]string
}

var _ ports.Boundary = (*Store)(nil)

func New(seed [][]string) *Store {
	if len(seed) == 0 {
		seed = [][]string{DefaultHeader}
	}
	return &Store{seed: cloneRows(seed), tables: map[string][][]string{}}
}

// NewFromFile seeds the store from a CSV file whose first record is the
// header. A missing file yields an empty sheet with DefaultHeader.
func NewFromFile(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return New(records), nil
}

// ReadValues returns every row of the sheet named in rng; the column part
// of the range is ignored.
func (s *Store) ReadValues(_ context.Context, spreadsheetID, rng string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.table(spreadsheetID, rng)), nil
}

// AppendValues adds row to the sheet named in rng and returns an A1 range
// for the new row.
func (s *Store) AppendValues(_ context.Context, spreadsheetID, rng string, row []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tableKey(spreadsheetID, rng)
	rows := append(s.table(spreadsheetID, rng), append([]string(nil), row...))
	s.tables[key] = rows
	n := len(rows)
	return fmt.Sprintf("%s!A%d:F%d", sheetName(rng), n, n), nil
}

func (s *Store) table(spreadsheetID, rng string) [][]string {
	key := tableKey(spreadsheetID, rng)
	rows, ok := s.tables[key]
	if !ok {
		rows = cloneRows(s.seed)
		s.tables[key] = rows
	}
	return rows
}

func tableKey(spreadsheetID, rng string) string {
	return spreadsheetID + "\x00" + sheetName(rng)
}

func sheetName(rng string) string {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		return rng[:i]
	}
	return rng
}

func cloneRows(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = append([]string(nil), row...)
	}
	return out
}
