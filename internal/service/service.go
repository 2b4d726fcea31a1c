// Package service holds the command handlers. Each call works on its own
// UnitOfWork: load, mutate through the aggregate, save. Events go out only
// after the save has committed.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/repository"
)

// SeqGenerator hands out per-channel message sequence numbers.
type SeqGenerator interface {
	NextSeqID(ctx context.Context, channelID string) (int64, error)
}

// IDGenerator produces time-ordered message ids.
type IDGenerator interface {
	NextString() (string, error)
}

// StoreSeq is the SeqGenerator used without Redis: it seeds each channel from
// the highest stored sequence and counts up in process. It is only correct for a
// single instance.
type StoreSeq struct {
	factory *repository.Factory

	mu   sync.Mutex
	last map[string]int64
}

func NewStoreSeq(factory *repository.Factory) *StoreSeq {
	return &StoreSeq{factory: factory, last: make(map[string]int64)}
}

func (s *StoreSeq) NextSeqID(ctx context.Context, channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.last[channelID]
	if !ok {
		var err error
		last, err = s.factory.New().Messages().LastSeq(ctx, channelID)
		if err != nil {
			return 0, err
		}
	}
	last++
	s.last[channelID] = last
	return last, nil
}

// SeqCounter is a shared per-channel counter, Redis in production.
type SeqCounter interface {
	NextSeqID(ctx context.Context, channelID string) (int64, error)
	CurrentSeqID(ctx context.Context, channelID string) (int64, error)
	SeedSeqID(ctx context.Context, channelID string, floor int64) error
}

// RedisSeq is the SeqGenerator for multiple instances. A channel whose counter
// is missing, after a Redis flush or failover, is seeded from the highest
// stored sequence before counting on.
type RedisSeq struct {
	counter SeqCounter
	factory *repository.Factory
}

func NewRedisSeq(counter SeqCounter, factory *repository.Factory) *RedisSeq {
	return &RedisSeq{counter: counter, factory: factory}
}

func (s *RedisSeq) NextSeqID(ctx context.Context, channelID string) (int64, error) {
	cur, err := s.counter.CurrentSeqID(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if cur == 0 {
		last, err := s.factory.New().Messages().LastSeq(ctx, channelID)
		if err != nil {
			return 0, err
		}
		if last > 0 {
			if err := s.counter.SeedSeqID(ctx, channelID, last); err != nil {
				return 0, err
			}
		}
	}
	return s.counter.NextSeqID(ctx, channelID)
}

// wrapInternal keeps classified errors as they are and files anything else
// under Internal.
func wrapInternal(message string, err error) error {
	var de *domain.Error
	if err == nil || errors.As(err, &de) {
		return err
	}
	return domain.Internal(message, err)
}
