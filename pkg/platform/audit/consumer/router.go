package consumer

import (
	"context"
	"log/slog"
	"slices"

	"sherlock/internal/platform/kafka/consumer"
)

// Router sends each message to the handler registered for its topic.
// Messages from unregistered topics are committed without processing.
type Router struct {
	routes map[string]consumer.Handler
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{routes: make(map[string]consumer.Handler), logger: logger}
}

// Route registers h for topic and returns the router for chaining.
func (r *Router) Route(topic string, h consumer.Handler) *Router {
	r.routes[topic] = h
	return r
}

// Topics lists the registered topics in a stable order, for the consumer
// group subscription.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for topic := range r.routes {
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}

func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	h, ok := r.routes[msg.Topic]
	if !ok {
		r.logger.DebugContext(ctx, "skipping message from unrouted topic",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return nil
	}
	return h.Handle(ctx, msg)
}
