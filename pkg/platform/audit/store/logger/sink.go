package logger

import (
	"context"
	"log/slog"

	"sherlock/pkg/platform/audit"
)

// Sink writes each record as a structured log line.
type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) Append(ctx context.Context, rec audit.Record) error {
	s.logger.InfoContext(ctx, "decision audit",
		"transaction_id", rec.TransactionID,
		"user_id", rec.UserID,
		"amount", rec.Amount.String(),
		"outcome", rec.Outcome,
		"risk_score", rec.RiskScore,
		"reasons", rec.Reasons,
		"velocity", rec.Velocity,
		"model_version", rec.ModelVersion,
		"degraded", rec.Degraded,
		"latency_ms", rec.LatencyMS,
		"request_id", rec.RequestID,
	)
	return nil
}
