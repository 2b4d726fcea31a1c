package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/ChatCore/config"
)

// RedisClient is the slice of Redis the chat core relies on: per-channel message
// sequences and publishing of committed events.
type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
	NextSeqID(ctx context.Context, channelID string) (int64, error)
	CurrentSeqID(ctx context.Context, channelID string) (int64, error)
	SeedSeqID(ctx context.Context, channelID string, floor int64) error
	Publish(ctx context.Context, channel string, message any) error
}

type Client struct {
	client *redis.Client
}

var _ RedisClient = (*Client)(nil)

func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Client{client: rdb}, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(rdb *redis.Client) *Client {
	return &Client{client: rdb}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func seqKey(channelID string) string {
	return fmt.Sprintf("channel:%s:seq_id", channelID)
}

// NextSeqID atomically increments and returns the channel's message sequence.
// The first message of a channel gets 1.
func (c *Client) NextSeqID(ctx context.Context, channelID string) (int64, error) {
	seq, err := c.client.Incr(ctx, seqKey(channelID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to generate seq id for channel %s: %w", channelID, err)
	}
	return seq, nil
}

// CurrentSeqID returns the last issued sequence, 0 if none.
func (c *Client) CurrentSeqID(ctx context.Context, channelID string) (int64, error) {
	seq, err := c.client.Get(ctx, seqKey(channelID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read seq id for channel %s: %w", channelID, err)
	}
	return seq, nil
}

// SeedSeqID starts a channel's sequence at floor unless it already exists, so
// the next NextSeqID returns floor+1.
func (c *Client) SeedSeqID(ctx context.Context, channelID string, floor int64) error {
	if err := c.client.SetNX(ctx, seqKey(channelID), floor, 0).Err(); err != nil {
		return fmt.Errorf("failed to seed seq id for channel %s: %w", channelID, err)
	}
	return nil
}

func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// IncrWindow adds n to key and returns the new total. The key expires one
// second after window so that a fixed window always starts from zero.
func (c *Client) IncrWindow(ctx context.Context, key string, n int64, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", key, err)
	}
	return incr.Val(), nil
}
