package service

import (
	"context"
	"errors"
	"time"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/pkg/redis"
	"github.com/Gopher0727/ChatCore/middleware/jwt"
)

var (
	ErrInvalidRefreshToken = domain.Forbidden("invalid_refresh_token", "refresh token is unknown, revoked or expired")
	ErrEmptyUserID         = domain.Validation("empty_user_id", "user id is required")
)

// RefreshStore persists refresh-token state.
type RefreshStore interface {
	Save(ctx context.Context, t *jwt.RefreshToken) error
	Get(ctx context.Context, token string) (*jwt.RefreshToken, error)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenPair is handed out on issue and on every rotation
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// IAuthService manages token issue and rotation. Credentials are checked
// upstream; this service starts from an already-established user id.
type IAuthService interface {
	IssueTokens(ctx context.Context, userID string) (*TokenPair, error)
	Refresh(ctx context.Context, req *RefreshRequest) (*TokenPair, error)
	Revoke(ctx context.Context, req *RefreshRequest) error
}

type AuthService struct {
	tokens *jwt.TokenManager
	store  RefreshStore
}

func NewAuthService(tokens *jwt.TokenManager, store RefreshStore) IAuthService {
	return &AuthService{tokens: tokens, store: store}
}

func (s *AuthService) IssueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	access, err := s.tokens.GenerateToken(userID)
	if err != nil {
		return nil, domain.Internal("failed to sign access token", err)
	}
	refresh := s.tokens.IssueRefreshToken(userID)
	if err := s.store.Save(ctx, refresh); err != nil {
		return nil, domain.Internal("failed to store refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh.Token, RefreshExpiresAt: refresh.ExpiresAt}, nil
}

// Refresh rotates an active refresh token: the presented one is revoked and a
// new pair issued.
func (s *AuthService) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPair, error) {
	old, err := s.lookup(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	access, next, err := s.tokens.Rotate(old)
	if errors.Is(err, jwt.ErrInactiveRefresh) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, domain.Internal("failed to rotate refresh token", err)
	}
	if err := s.store.Save(ctx, old); err != nil {
		return nil, domain.Internal("failed to revoke refresh token", err)
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, domain.Internal("failed to store refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: next.Token, RefreshExpiresAt: next.ExpiresAt}, nil
}

// Revoke ends a refresh token. Revoking twice is not an error.
func (s *AuthService) Revoke(ctx context.Context, req *RefreshRequest) error {
	t, err := s.lookup(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	if t.IsRevoked() {
		return nil
	}
	t.Revoke(time.Now())
	if err := s.store.Save(ctx, t); err != nil {
		return domain.Internal("failed to revoke refresh token", err)
	}
	return nil
}

func (s *AuthService) lookup(ctx context.Context, token string) (*jwt.RefreshToken, error) {
	t, err := s.store.Get(ctx, token)
	if errors.Is(err, redis.ErrRefreshTokenNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, domain.Internal("failed to load refresh token", err)
	}
	return t, nil
}
