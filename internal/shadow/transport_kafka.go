package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaClient is the subset of *kgo.Client the transport uses. The producing
// side only needs TryProduce; the consuming side needs a client built with a
// consumer group.
type KafkaClient interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// KafkaTransport publishes envelopes keyed by user id and consumes them
// through a consumer group. Offsets are committed once every delivery of a
// fetch has been acknowledged, so a crash redelivers at most one batch.
type KafkaTransport struct {
	client KafkaClient
	topic  string
	logger *slog.Logger
	failed func(error)
}

type KafkaOption func(*KafkaTransport)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(t *KafkaTransport) {
		t.logger = logger
	}
}

// WithProduceFailureHook is called for every record the client failed to
// deliver, including ones that fail after Send has returned.
func WithProduceFailureHook(fn func(error)) KafkaOption {
	return func(t *KafkaTransport) {
		t.failed = fn
	}
}

func NewKafkaTransport(client KafkaClient, topic string, opts ...KafkaOption) *KafkaTransport {
	t := &KafkaTransport{
		client: client,
		topic:  topic,
		logger: slog.Default(),
		failed: func(error) {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send hands the record to the client's buffer. A full buffer fails
// synchronously with ErrQueueFull; broker failures surface later through
// the failure hook.
func (t *KafkaTransport) Send(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode shadow envelope: %w", err)
	}
	rec := &kgo.Record{
		Topic: t.topic,
		Key:   []byte(env.Transaction.UserID),
		Value: value,
	}

	immediate := make(chan error, 1)
	t.client.TryProduce(ctx, rec, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		t.failed(err)
		select {
		case immediate <- err:
		default:
		}
	})

	select {
	case err := <-immediate:
		if errors.Is(err, kgo.ErrMaxBuffered) {
			return ErrQueueFull
		}
		return fmt.Errorf("produce shadow envelope: %w", err)
	default:
		return nil
	}
}

func (t *KafkaTransport) Receive(ctx context.Context) (<-chan Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(chan Delivery)
	go t.consume(ctx, out)
	return out, nil
}

func (t *KafkaTransport) consume(ctx context.Context, out chan<- Delivery) {
	defer close(out)
	for {
		fetches := t.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			t.logger.WarnContext(ctx, "shadow fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}
		if !t.dispatchBatch(ctx, records, out) {
			return
		}
		if err := t.client.CommitRecords(ctx, records...); err != nil && ctx.Err() == nil {
			t.logger.WarnContext(ctx, "shadow offset commit failed",
				"records", len(records),
				"error", err,
			)
		}
	}
}

// dispatchBatch hands every decodable record to a worker and waits for all
// acknowledgements. It returns false if ctx ended first, leaving the batch
// uncommitted.
func (t *KafkaTransport) dispatchBatch(ctx context.Context, records []*kgo.Record, out chan<- Delivery) bool {
	var pending sync.WaitGroup
	for _, rec := range records {
		var env Envelope
		if err := json.Unmarshal(rec.Value, &env); err != nil {
			t.logger.WarnContext(ctx, "skipping malformed shadow envelope",
				"partition", rec.Partition,
				"offset", rec.Offset,
				"error", err,
			)
			continue
		}

		pending.Add(1)
		var once sync.Once
		d := Delivery{Envelope: env, ack: func() { once.Do(pending.Done) }}
		select {
		case out <- d:
		case <-ctx.Done():
			return false
		}
	}

	acked := make(chan struct{})
	go func() {
		pending.Wait()
		close(acked)
	}()
	select {
	case <-acked:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *KafkaTransport) Close() error {
	t.client.Close()
	return nil
}
