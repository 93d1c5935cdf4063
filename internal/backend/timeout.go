package backend

import (
	"context"
	"time"

	ports "tablero/internal/sheets"
)

// timeoutBoundary bounds every call to the wrapped boundary.
type timeoutBoundary struct {
	next    ports.Boundary
	timeout time.Duration
}

var _ ports.Boundary = (*timeoutBoundary)(nil)

func withTimeout(b ports.Boundary, timeout time.Duration) ports.Boundary {
	if timeout <= 0 {
		return b
	}
	return &timeoutBoundary{next: b, timeout: timeout}
}

func (t *timeoutBoundary) ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.ReadValues(ctx, spreadsheetID, rng)
}

func (t *timeoutBoundary) AppendValues(ctx context.Context, spreadsheetID, rng string, row []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.AppendValues(ctx, spreadsheetID, rng, row)
}
