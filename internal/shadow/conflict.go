package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ConflictRecord describes one transaction on which the production and
// shadow models reached different outcomes. It is only ever written to
// observability sinks.
type ConflictRecord struct {
	TransactionID      string          `json:"transaction_id"`
	UserID             string          `json:"user_id"`
	Amount             decimal.Decimal `json:"amount"`
	ProductionDecision string          `json:"production_decision"`
	ProductionScore    float64         `json:"production_score"`
	ProductionModel    string          `json:"production_model"`
	ShadowDecision     string          `json:"shadow_decision"`
	ShadowScore        float64         `json:"shadow_score"`
	ShadowModel        string          `json:"shadow_model"`
	ShadowReasons      []string        `json:"shadow_reasons"`
	DetectedAt         time.Time       `json:"detected_at"`
}

// ConflictSink receives conflict records.
type ConflictSink interface {
	Report(ctx context.Context, rec ConflictRecord) error
}

// LogSink writes conflicts as structured warnings.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(ctx context.Context, rec ConflictRecord) error {
	s.logger.WarnContext(ctx, "shadow conflict",
		"transaction_id", rec.TransactionID,
		"user_id", rec.UserID,
		"amount", rec.Amount.String(),
		"production_decision", rec.ProductionDecision,
		"production_score", rec.ProductionScore,
		"shadow_decision", rec.ShadowDecision,
		"shadow_score", rec.ShadowScore,
		"shadow_model", rec.ShadowModel,
	)
	return nil
}

// Producer is the subset of *kgo.Client the Kafka sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink publishes conflicts as JSON keyed by transaction id.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Report(ctx context.Context, rec ConflictRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode conflict: %w", err)
	}
	if err := s.producer.ProduceSync(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   []byte(rec.TransactionID),
		Value: value,
	}).FirstErr(); err != nil {
		return fmt.Errorf("publish conflict: %w", err)
	}
	return nil
}

// Sinks reports to every sink and joins their errors.
type Sinks []ConflictSink

func (s Sinks) Report(ctx context.Context, rec ConflictRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Report(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
