package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// RefreshToken is the server-side state of an opaque refresh token.
type RefreshToken struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func NewRefreshToken(userID string, now time.Time, ttl time.Duration) *RefreshToken {
	buf := make([]byte, 32)
	// crypto/rand.Read always fills buf and returns a nil error; it crashes the
	// program when the system source fails.
	_, _ = rand.Read(buf)
	return &RefreshToken{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (t *RefreshToken) IsExpiredAt(now time.Time) bool { return !now.Before(t.ExpiresAt) }
func (t *RefreshToken) IsExpired() bool                { return t.IsExpiredAt(time.Now()) }
func (t *RefreshToken) IsRevoked() bool                { return t.RevokedAt != nil }

// IsActiveAt: neither revoked nor expired.
func (t *RefreshToken) IsActiveAt(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpiredAt(now)
}

func (t *RefreshToken) IsActive() bool { return t.IsActiveAt(time.Now()) }

// Revoke is idempotent; the first revocation time is kept.
func (t *RefreshToken) Revoke(at time.Time) {
	if t.RevokedAt == nil {
		t.RevokedAt = &at
	}
}
