package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/pkg/redis"
	"github.com/Gopher0727/ChatCore/internal/repository"
	"github.com/Gopher0727/ChatCore/internal/storage"
	"github.com/Gopher0727/ChatCore/utils/snowflake"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(_ context.Context, events []domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type env struct {
	uows     *repository.Factory
	events   *recorder
	redis    *redis.Client
	mr       *miniredis.Miniredis
	channels IChannelService
	messages IMessageService
	files    IFileService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tickingClock(t)

	db, err := storage.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	rc := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	gen, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	events := &recorder{}
	uows := repository.NewFactory(db, events, zap.NewNop())
	return &env{
		uows:     uows,
		events:   events,
		redis:    rc,
		mr:       mr,
		channels: NewChannelService(uows, zap.NewNop()),
		messages: NewMessageService(uows, NewRedisSeq(rc, uows), gen, zap.NewNop()),
		files:    NewFileService(uows, zap.NewNop()),
	}
}

func tickingClock(t *testing.T) {
	t.Helper()
	orig := domain.Now
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	domain.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	t.Cleanup(func() { domain.Now = orig })
}

func requireKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "unexpected error: %v", err)
}

func ptr[T any](v T) *T { return &v }

// concurrently runs fn n times at once and returns each call's error.
func concurrently(n int, fn func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

// oneWinner asserts that exactly one error is nil and the others are of kind.
func oneWinner(t *testing.T, errs []error, kind domain.Kind) {
	t.Helper()
	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.Equal(t, kind, domain.KindOf(err), "unexpected error: %v", err)
	}
	require.Equal(t, 1, won)
}
