package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/ChatCore/middleware/jwt"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// minRefreshTTL keeps revoked-but-expired tokens around briefly so a replay
// reads as inactive rather than unknown.
const minRefreshTTL = time.Minute

// RefreshStore keeps refresh-token state in Redis until the token expires.
type RefreshStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRefreshStore(c *Client) *RefreshStore {
	return &RefreshStore{client: c.client, now: time.Now}
}

func refreshKey(token string) string {
	return fmt.Sprintf("refresh:%s", token)
}

func (s *RefreshStore) Save(ctx context.Context, t *jwt.RefreshToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode refresh token: %w", err)
	}
	ttl := max(t.ExpiresAt.Sub(s.now()), minRefreshTTL)
	if err := s.client.Set(ctx, refreshKey(t.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (s *RefreshStore) Get(ctx context.Context, token string) (*jwt.RefreshToken, error) {
	data, err := s.client.Get(ctx, refreshKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	var t jwt.RefreshToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode refresh token: %w", err)
	}
	return &t, nil
}
