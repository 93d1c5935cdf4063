package worker

import (
	"context"
	"io"
	"testing"

	"tablero/internal/amqp"
	"tablero/internal/log"
)

type countingRefresher struct {
	calls  int
	result bool
}

func (r *countingRefresher) Refresh(context.Context) bool {
	r.calls++
	return r.result
}

func TestSyncWorker_HandleAppendedMessage(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		refreshed   bool
		wantCalls   int
		wantSkipped int64
	}{
		{"remote append refreshes", "instance-b", true, 1, 0},
		{"busy refresher is not an error", "instance-b", false, 1, 0},
		{"own append is skipped", "instance-a", true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRefresher{result: tt.refreshed}
			w := NewSyncWorker(r, "instance-a", log.New(log.Config{Output: io.Discard}))

			msg := amqp.NewTransactionAppendedMessage(tt.source, "Hoja 1!A10:F10", "Gasto", "Software", "12.50")
			if err := w.HandleAppendedMessage(context.Background(), msg); err != nil {
				t.Fatalf("HandleAppendedMessage: %v", err)
			}
			if r.calls != tt.wantCalls {
				t.Errorf("Refresh calls = %d, want %d", r.calls, tt.wantCalls)
			}
			if _, skipped := w.Stats(); skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
		})
	}
}
