package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Gopher0727/ChatCore/config"
)

// Producer relays integration events to Kafka.
// It wraps a synchronous sarama producer so a send either lands or reports an error.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a producer connected to the brokers in cfg.
//
// Parameters:
//   - cfg: Kafka configuration containing broker addresses, topic and producer settings
//
// Returns:
//   - *Producer: The created producer instance
//   - error: Any error encountered during initialization
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWith(sp, cfg.Topic), nil
}

// NewSaramaConfig builds the sarama settings used by NewProducer: idempotent,
// acks from all replicas, snappy compression and bounded network timeouts.
func NewSaramaConfig(cfg *config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = cfg.Producer.MaxRetries
	sc.Producer.Retry.Backoff = time.Duration(cfg.Producer.RetryBackoffMs) * time.Millisecond
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Idempotent = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Net.MaxOpenRequests = 1

	// Set connection timeouts to prevent hanging
	sc.Net.DialTimeout = 10 * time.Second
	sc.Net.ReadTimeout = 10 * time.Second
	sc.Net.WriteTimeout = 10 * time.Second
	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond
	sc.Metadata.Timeout = 10 * time.Second
	return sc
}

// NewProducerWith adopts an existing sarama producer, e.g. sarama/mocks in tests.
func NewProducerWith(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: sp, topic: topic}
}

// Topic is the default topic used by Send.
func (p *Producer) Topic() string { return p.topic }

// Produce sends a message to the specified Kafka topic.
// Messages with the same key land on the same partition, which keeps per-aggregate order.
//
// Parameters:
//   - ctx: Checked before sending; a cancelled context sends nothing
//   - topic: The Kafka topic to send the message to
//   - key: Optional message key for partitioning (can be nil)
//   - value: The message payload as bytes
//
// Returns:
//   - partition: The partition the message was sent to
//   - offset: The offset of the message in the partition
//   - error: Any error encountered during sending
func (p *Producer) Produce(ctx context.Context, topic string, key []byte, value []byte) (partition int32, offset int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err = p.producer.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}
	return partition, offset, nil
}

// Send is Produce on the default topic.
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	_, _, err := p.Produce(ctx, p.topic, key, value)
	return err
}

// Close closes the Kafka producer and releases all resources.
func (p *Producer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close kafka producer: %w", err)
		}
	}
	return nil
}
