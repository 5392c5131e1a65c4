//go:build integration

package shadow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"sherlock/internal/decision/ports"
	"sherlock/internal/platform/config"
	platformkafka "sherlock/internal/platform/kafka"
	"sherlock/internal/platform/logger"
	"sherlock/pkg/testutil/containers"
)

const integrationTopic = "sherlock.shadow.it"

type KafkaTransportSuite struct {
	suite.Suite
	cfg config.KafkaConfig
}

func TestKafkaTransportSuite(t *testing.T) {
	suite.Run(t, new(KafkaTransportSuite))
}

func (s *KafkaTransportSuite) SetupSuite() {
	broker := containers.NewKafkaContainer(s.T())
	s.cfg = config.KafkaConfig{
		Brokers:     []string{broker.Broker},
		ClientID:    "sherlock-it",
		GroupID:     "sherlock-shadow-it",
		Partitions:  3,
		Replication: 1,
	}

	admin, err := platformkafka.New(s.cfg)
	s.Require().NoError(err)
	defer admin.Close()
	s.Require().NoError(platformkafka.EnsureTopics(context.Background(), admin, s.cfg, logger.Discard(), integrationTopic))
}

func (s *KafkaTransportSuite) TestProducedEnvelopesAreConsumed() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	producer, err := platformkafka.New(s.cfg)
	s.Require().NoError(err)
	defer producer.Close()

	consumerClient, err := platformkafka.New(s.cfg,
		kgo.ConsumerGroup(s.cfg.GroupID),
		kgo.ConsumeTopics(integrationTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	s.Require().NoError(err)

	sender := NewKafkaTransport(producer, integrationTopic)
	receiver := NewKafkaTransport(consumerClient, integrationTopic, WithKafkaLogger(logger.Discard()))
	defer receiver.Close()

	sent := map[string]bool{"tx-1": true, "tx-2": true, "tx-3": true}
	for id := range sent {
		s.Require().NoError(sender.Send(ctx, Envelope{
			Transaction: ports.TransactionMessage{
				TransactionID: id,
				UserID:        "u1",
				Amount:        decimal.RequireFromString("12.34"),
				Location:      "Lisbon",
			},
			DispatchedAt: time.Now().UTC(),
		}))
	}
	s.Require().NoError(producer.Flush(ctx))

	deliveries, err := receiver.Receive(ctx)
	s.Require().NoError(err)

	got := map[string]bool{}
	for len(got) < len(sent) {
		select {
		case d, ok := <-deliveries:
			s.Require().True(ok, "delivery channel closed early")
			s.Equal("u1", d.Envelope.Transaction.UserID)
			s.True(d.Envelope.Transaction.Amount.Equal(decimal.RequireFromString("12.34")))
			got[d.Envelope.Transaction.TransactionID] = true
			d.Ack()
		case <-ctx.Done():
			s.FailNow("timed out waiting for shadow envelopes", "received %v", got)
		}
	}
	s.Equal(sent, got)
}
