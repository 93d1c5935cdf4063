package worker

import (
	"context"
	"sync/atomic"

	"tablero/internal/amqp"
	"tablero/internal/log"
)

// Refresher runs one immediate sheet refresh. It returns false when the
// refresh was skipped.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// SyncWorker keeps the local snapshot in step with appends made through
// other instances.
type SyncWorker struct {
	refresher  Refresher
	instanceID string
	logger     *log.Logger

	received atomic.Int64
	skipped  atomic.Int64
}

func NewSyncWorker(refresher Refresher, instanceID string, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		refresher:  refresher,
		instanceID: instanceID,
		logger:     logger.WithComponent(log.ComponentAMQP),
	}
}

// HandleAppendedMessage refreshes the snapshot for a row appended elsewhere.
// Messages published by this instance are ignored; the append already
// refreshed it. A refresh skipped because one is in flight is not an error:
// the next tick picks the row up.
func (w *SyncWorker) HandleAppendedMessage(ctx context.Context, msg *amqp.TransactionAppendedMessage) error {
	if msg.Source == w.instanceID {
		w.skipped.Add(1)
		return nil
	}
	w.received.Add(1)

	refreshed := w.refresher.Refresh(ctx)
	w.logger.InfoContext(ctx, "Remote append received",
		"message_id", msg.ID,
		"source", msg.Source,
		log.FieldUpdatedRange, msg.UpdatedRange,
		"refreshed", refreshed)
	return nil
}

// Stats reports how many remote messages were handled and how many of this
// instance's own messages were skipped.
func (w *SyncWorker) Stats() (received, skipped int64) {
	return w.received.Load(), w.skipped.Load()
}
