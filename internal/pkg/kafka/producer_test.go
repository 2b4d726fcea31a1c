package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Gopher0727/ChatCore/config"
)

func TestNewSaramaConfig(t *testing.T) {
	sc := NewSaramaConfig(&config.KafkaConfig{Producer: config.ProducerConfig{MaxRetries: 5, RetryBackoffMs: 200}})

	assert.Equal(t, 5, sc.Producer.Retry.Max)
	assert.Equal(t, int64(200), sc.Producer.Retry.Backoff.Milliseconds())
	assert.True(t, sc.Producer.Idempotent)
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.True(t, sc.Producer.Return.Successes)
	require.NoError(t, sc.Validate())
}

func TestProduce(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "payload" {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	p := NewProducerWith(sp, "chat.events")
	defer p.Close()

	require.NoError(t, p.Send(context.Background(), []byte("key"), []byte("payload")))
}

func TestProduce_Failure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerWith(sp, "chat.events")
	defer p.Close()

	_, _, err := p.Produce(context.Background(), "chat.events", nil, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestProduce_CancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(sp, "chat.events")
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Send(ctx, nil, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestProduce_Rapid sends random batches and checks every message is delivered
// exactly once through the mock.
func TestProduce_Rapid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payloads := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 1, 64), 1, 20).Draw(rt, "payloads")

		sp := mocks.NewSyncProducer(rt, nil)
		for range payloads {
			sp.ExpectSendMessageAndSucceed()
		}
		p := NewProducerWith(sp, "chat.events")

		for _, v := range payloads {
			if err := p.Send(context.Background(), []byte("agg"), v); err != nil {
				rt.Fatalf("send: %v", err)
			}
		}
		if err := p.Close(); err != nil {
			rt.Fatalf("close: %v", err)
		}
	})
}
