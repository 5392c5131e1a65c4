package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sherlock/internal/platform/kafka/consumer"
	"sherlock/pkg/platform/audit"
)

// RecordHandler materializes decision records from the audit topic into a
// local store, typically the verdict index a standalone shadow worker reads.
type RecordHandler struct {
	store  audit.Store
	logger *slog.Logger
}

func NewRecordHandler(store audit.Store, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{store: store, logger: logger}
}

// Handle stores one record. Malformed payloads are logged and committed so
// they never block the partition; store failures are returned for redelivery.
func (h *RecordHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var rec audit.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		h.logger.Error("failed to unmarshal audit record",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if rec.TransactionID == "" {
		h.logger.Error("audit record missing transaction_id",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"user_id", rec.UserID,
		)
		return nil
	}

	if err := h.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("materialize audit record %s: %w", rec.TransactionID, err)
	}

	h.logger.Debug("materialized audit record",
		"transaction_id", rec.TransactionID,
		"outcome", rec.Outcome,
	)
	return nil
}
