package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"sherlock/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink publishes records as JSON keyed by user ID, so a user's decisions stay
// ordered within one partition.
type Sink struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

func (s *Sink) Append(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	kr := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(rec.UserID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "transaction_id", Value: []byte(rec.TransactionID)},
		},
	}
	if err := s.producer.ProduceSync(ctx, kr).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}
