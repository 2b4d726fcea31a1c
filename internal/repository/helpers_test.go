package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/domain/channel"
	"github.com/Gopher0727/ChatCore/internal/storage"
)

var errInjected = errors.New("injected store failure")

// faults makes the next writes to one table fail.
type faults struct {
	mu    sync.Mutex
	table string
}

func (f *faults) failWritesTo(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table = table
}

func (f *faults) clear() { f.failWritesTo("") }

func (f *faults) hook(tx *gorm.DB) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.table != "" && tx.Statement.Table == f.table {
		_ = tx.AddError(errInjected)
	}
}

// recorder is an event.Publisher that remembers every batch.
type recorder struct {
	batches [][]domain.Event
}

func (r *recorder) Publish(_ context.Context, events []domain.Event) {
	r.batches = append(r.batches, events)
}

func (r *recorder) all() []domain.Event {
	var out []domain.Event
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *recorder) types() []string {
	var out []string
	for _, e := range r.all() {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	db     *gorm.DB
	faults *faults
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tickingClock(t)

	db, err := storage.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &faults{}
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fault_create", f.hook))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fault_update", f.hook))

	return &fixture{db: db, faults: f, events: &recorder{}}
}

func (fx *fixture) uow() *UnitOfWork {
	return NewUnitOfWork(fx.db, fx.events, zap.NewNop())
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

// seedChannel stores a public channel owned by owner and returns its id.
func (fx *fixture) seedChannel(t *testing.T, owner string) string {
	t.Helper()
	ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", owner)
	require.NoError(t, err)
	u := fx.uow()
	u.Channels().Add(ch)
	require.NoError(t, u.Save(context.Background()))
	fx.events.batches = nil
	return ch.ID
}

func (fx *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, fx.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
