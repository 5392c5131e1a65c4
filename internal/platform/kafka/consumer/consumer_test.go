package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"sherlock/internal/platform/logger"
)

// fakeClient serves one batch, then cancels the loop.
type fakeClient struct {
	batch     kgo.Fetches
	cancel    context.CancelFunc
	polls     int
	committed []*kgo.Record
}

func (c *fakeClient) PollFetches(context.Context) kgo.Fetches {
	c.polls++
	if c.polls == 1 {
		return c.batch
	}
	c.cancel()
	return nil
}

func (c *fakeClient) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	c.committed = append(c.committed, rs...)
	return nil
}

func batch(topic string, partitions map[int32][]string) kgo.Fetches {
	ft := kgo.FetchTopic{Topic: topic}
	for p, values := range partitions {
		fp := kgo.FetchPartition{Partition: p}
		for i, v := range values {
			fp.Records = append(fp.Records, &kgo.Record{Topic: topic, Partition: p, Offset: int64(i), Value: []byte(v)})
		}
		ft.Partitions = append(ft.Partitions, fp)
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{ft}}}
}

func TestConsumer_Run(t *testing.T) {
	t.Run("commits every handled record", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		client := &fakeClient{batch: batch("audit", map[int32][]string{0: {"a", "b", "c"}}), cancel: cancel}

		var seen []string
		c := New(client, HandlerFunc(func(_ context.Context, msg *Message) error {
			seen = append(seen, string(msg.Value))
			return nil
		}), logger.Discard())

		require.NoError(t, c.Run(ctx))
		assert.Equal(t, []string{"a", "b", "c"}, seen)
		assert.Len(t, client.committed, 3)
	})

	t.Run("stops committing a partition at the first failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		client := &fakeClient{batch: batch("audit", map[int32][]string{0: {"a", "bad", "c"}}), cancel: cancel}

		c := New(client, HandlerFunc(func(_ context.Context, msg *Message) error {
			if string(msg.Value) == "bad" {
				return errors.New("store down")
			}
			return nil
		}), logger.Discard())

		require.NoError(t, c.Run(ctx))
		require.Len(t, client.committed, 1)
		assert.Equal(t, []byte("a"), client.committed[0].Value)
	})
}
