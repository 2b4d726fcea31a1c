package event

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// LogSubscriber writes one structured line per committed event.
func LogSubscriber(log *zap.Logger) Handler {
	return func(ctx context.Context, e domain.Event) error {
		logger.WithContext(log, ctx).Info("domain event",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID()),
			zap.String("aggregate_id", e.AggregateID()),
			zap.Time("occurred_on", e.OccurredOn()),
		)
		return nil
	}
}

// RedisPublisher is the pub/sub half of the Redis client.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// RedisForwarder fans events out on "<prefix>:<event type>" as encoded envelopes.
func RedisForwarder(pub RedisPublisher, prefix string) Handler {
	return func(ctx context.Context, e domain.Event) error {
		data, err := Encode(e)
		if err != nil {
			return err
		}
		return pub.Publish(ctx, RedisChannel(prefix, e.EventType()), data)
	}
}

func RedisChannel(prefix, eventType string) string {
	return fmt.Sprintf("%s:%s", prefix, eventType)
}

// KafkaSender is the send half of the Kafka producer.
type KafkaSender interface {
	Send(ctx context.Context, key, value []byte) error
}

// KafkaForwarder relays encoded envelopes keyed by aggregate id, so one
// aggregate's events stay on one partition in order.
func KafkaForwarder(sender KafkaSender) Handler {
	return func(ctx context.Context, e domain.Event) error {
		data, err := Encode(e)
		if err != nil {
			return err
		}
		return sender.Send(ctx, []byte(e.AggregateID()), data)
	}
}
