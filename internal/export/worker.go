package export

import (
	"context"
	"fmt"
	"log/slog"

	"statements/internal/amqp"
	"statements/internal/core"
)

// Worker turns transaction events into journal rows.
type Worker struct {
	appender RowAppender
}

func NewWorker(appender RowAppender) *Worker {
	return &Worker{appender: appender}
}

// HandleEvent processes one event from the AMQP stream. Errors propagate so
// the consumer can nack and requeue the delivery.
func (w *Worker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"kind", msg.Kind,
		"id", msg.ID)

	var tx core.Transaction
	if msg.Transaction != nil {
		tx = *msg.Transaction
	} else {
		// Deletions carry only the id; the row is a tombstone.
		tx = core.Transaction{ID: msg.ID}
	}

	ref, err := w.appender.Append(ctx, msg.Kind, tx)
	if err != nil {
		return fmt.Errorf("append journal row: %w", err)
	}

	slog.InfoContext(ctx, "Exported transaction event",
		"kind", msg.Kind,
		"id", msg.ID,
		"sheets_ref", ref)

	return nil
}
