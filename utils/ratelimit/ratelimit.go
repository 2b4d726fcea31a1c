// Package ratelimit throttles callers with fixed windows counted in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/config"
	"github.com/Gopher0727/ChatCore/middleware/jwt"
)

// Counter adds to a counter that lives for one window.
type Counter interface {
	IncrWindow(ctx context.Context, key string, n int64, window time.Duration) (int64, error)
}

// Rule allows Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// RulesFrom reads the configured rules; a zero limit disables that rule.
func RulesFrom(cfg *config.RateLimitConfig) (api, messages Rule) {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	return Rule{Limit: cfg.APIPerWindow, Window: window}, Rule{Limit: cfg.MessagesPerWindow, Window: window}
}

// Limiter implements fixed-window rate limiting on a shared Counter, so every
// instance behind a load balancer sees the same totals.
type Limiter struct {
	counter  Counter
	log      *zap.Logger
	failOpen bool
	now      func() time.Time
}

// NewLimiter creates a limiter. With failOpen, requests pass when the counter
// cannot be reached.
func NewLimiter(counter Counter, log *zap.Logger, failOpen bool) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{counter: counter, log: log.Named("ratelimit"), failOpen: failOpen, now: time.Now}
}

// Allow consumes one request from key's current window.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	return l.AllowN(ctx, key, 1, rule)
}

func (l *Limiter) AllowN(ctx context.Context, key string, n int, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return true, nil
	}
	bucket := bucketKey(key, l.now(), rule.Window)
	count, err := l.counter.IncrWindow(ctx, bucket, int64(n), rule.Window)
	if err != nil {
		if l.failOpen {
			l.log.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	if count > int64(rule.Limit) {
		l.log.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit),
		)
		return false, nil
	}
	return true, nil
}

func bucketKey(key string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, now.UnixNano()/int64(window))
}

// Middleware 按登录用户限流，未登录时按客户端 IP
func Middleware(l *Limiter, name string, rule Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := jwt.ActorID(c)
		if who == "" {
			who = "ip:" + c.ClientIP()
		}
		allowed, err := l.Allow(c.Request.Context(), name+":"+who, rule)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code":      "rate_limit_unavailable",
				"message":   "rate limiter unavailable",
				"retryable": true,
			})
			return
		}
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rule.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":      "rate_limited",
				"message":   "too many requests, please try again later",
				"retryable": true,
			})
			return
		}
		c.Next()
	}
}
