package sheets

import "context"

// Ports for outbound adapters.
type (
	// ValuesReader reads a cell range as rows of strings, header included.
	ValuesReader interface {
		ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	}

	// ValuesAppender appends one row after the last row of rng. Values are
	// interpreted as if typed by a user. It returns the range written.
	ValuesAppender interface {
		AppendValues(ctx context.Context, spreadsheetID, rng string, row []string) (updatedRange string, err error)
	}

	// Boundary is the full read/append surface of a spreadsheet backend.
	Boundary interface {
		ValuesReader
		ValuesAppender
	}
)
