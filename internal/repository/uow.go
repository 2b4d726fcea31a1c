// Package repository persists aggregates through a gorm-backed unit of work and
// publishes their domain events once the write has committed.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/event"
	"github.com/Gopher0727/ChatCore/internal/metrics"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// UnitOfWork tracks the aggregates of one request and writes them atomically.
// It is not safe for concurrent use; create one per request.
//
// Save outside an explicit transaction runs in its own transaction and publishes
// the collected events right after it commits. Inside BeginTransaction, Save
// flushes into the open transaction and the events wait for Commit; Rollback
// drops them. A failed Save rolls the store back, reverts every tracked
// aggregate to its checkpoint and publishes nothing; an explicit transaction
// then stays open as aborted until Commit (which reports the failure) or
// Rollback releases it. Rollback, or a failed Commit, returns every aggregate to
// the state it had before its first Save in the transaction.
//
// Rows are updated under optimistic locking on their version column. A row
// changed by someone else since it was loaded fails the Save with a retryable
// AlreadyExists.
type UnitOfWork struct {
	db        *gorm.DB
	publisher event.Publisher
	log       *zap.Logger

	tx      *gorm.DB
	aborted error
	pending []domain.Event

	entries []*entry

	channels *ChannelRepository
	messages *MessageRepository
	files    *FileRepository
}

func NewUnitOfWork(db *gorm.DB, publisher event.Publisher, log *zap.Logger) *UnitOfWork {
	if log == nil {
		log = zap.NewNop()
	}
	u := &UnitOfWork{db: db, publisher: publisher, log: log.Named("uow")}
	u.channels = &ChannelRepository{uow: u}
	u.messages = &MessageRepository{uow: u}
	u.files = &FileRepository{uow: u}
	return u
}

// Factory creates one UnitOfWork per request over a shared store and dispatcher.
type Factory struct {
	db        *gorm.DB
	publisher event.Publisher
	log       *zap.Logger
}

func NewFactory(db *gorm.DB, publisher event.Publisher, log *zap.Logger) *Factory {
	return &Factory{db: db, publisher: publisher, log: log}
}

func (f *Factory) New() *UnitOfWork {
	return NewUnitOfWork(f.db, f.publisher, f.log)
}

func (u *UnitOfWork) Channels() *ChannelRepository { return u.channels }
func (u *UnitOfWork) Messages() *MessageRepository { return u.messages }
func (u *UnitOfWork) Files() *FileRepository       { return u.files }

// InTransaction reports whether an explicit transaction is open (possibly aborted).
func (u *UnitOfWork) InTransaction() bool { return u.tx != nil }

func (u *UnitOfWork) BeginTransaction(ctx context.Context) error {
	if u.tx != nil {
		return ErrTransactionAlreadyActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return translate(tx.Error, nil)
	}
	u.tx = tx
	return nil
}

// Commit ends the explicit transaction and, if it committed, publishes the events
// collected by every Save made inside it.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoActiveTransaction
	}
	tx, aborted, pending := u.tx, u.aborted, u.pending
	defer u.release()

	if aborted != nil {
		u.detach()
		metrics.UnitOfWork.WithLabelValues(metrics.OutcomeRollback).Inc()
		return aborted
	}
	if err := ctx.Err(); err != nil {
		u.abandon(ctx, tx, err)
		return translate(err, nil)
	}
	if err := tx.Commit().Error; err != nil {
		u.abandon(ctx, tx, err)
		return translate(err, nil)
	}

	for _, e := range u.entries {
		e.leaveTx()
	}
	metrics.UnitOfWork.WithLabelValues(metrics.OutcomeCommit).Inc()
	u.publish(ctx, pending)
	return nil
}

// Rollback ends the explicit transaction without writing and drops its events.
// Tracked aggregates return to their state before the transaction's first Save
// and are detached.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoActiveTransaction
	}
	tx, aborted := u.tx, u.aborted
	defer u.release()

	var err error
	if aborted == nil {
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = translate(rbErr, nil)
		}
	}
	u.revertTx()
	u.detach()
	metrics.UnitOfWork.WithLabelValues(metrics.OutcomeRollback).Inc()
	logger.WithContext(u.log, ctx).Debug("transaction rolled back", zap.Int("discarded_events", len(u.pending)))
	return err
}

// WithTransaction runs fn inside an explicit transaction: commit when fn returns
// nil, rollback on error, panic or cancellation.
func (u *UnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := u.BeginTransaction(ctx); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = u.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if u.tx != nil {
			_ = u.Rollback(ctx)
		}
		return err
	}
	return u.Commit(ctx)
}

// Save writes every tracked aggregate in tracking order as one atomic unit.
func (u *UnitOfWork) Save(ctx context.Context) error {
	if u.aborted != nil {
		return u.aborted
	}
	if err := ctx.Err(); err != nil {
		return u.saveFailed(ctx, err)
	}

	start := time.Now()
	var err error
	if u.tx != nil {
		err = u.flushAll(u.tx.WithContext(ctx))
	} else {
		err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := u.flushAll(tx); err != nil {
				return err
			}
			// A context cancelled mid-flush must not commit.
			return ctx.Err()
		})
	}
	metrics.SaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return u.saveFailed(ctx, err)
	}

	events := u.collect()
	if u.tx != nil {
		u.pending = append(u.pending, events...)
		return nil
	}
	metrics.UnitOfWork.WithLabelValues(metrics.OutcomeCommit).Inc()
	u.publish(ctx, events)
	return nil
}

func (u *UnitOfWork) saveFailed(ctx context.Context, cause error) error {
	err := translate(cause, domain.Internal("record vanished during save", cause))
	metrics.UnitOfWork.WithLabelValues(metrics.OutcomeSaveFailed).Inc()
	logger.WithContext(u.log, ctx).Warn("save failed", zap.Error(cause))

	u.revertAll()
	if u.tx != nil {
		if rbErr := u.tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			u.log.Error("rollback after failed save", zap.Error(rbErr))
		}
		u.aborted = err
		u.pending = nil
	}
	return err
}

// abandon handles a Commit that could not complete.
func (u *UnitOfWork) abandon(ctx context.Context, tx *gorm.DB, cause error) {
	if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		u.log.Error("rollback after failed commit", zap.Error(rbErr))
	}
	u.revertTx()
	u.detach()
	metrics.UnitOfWork.WithLabelValues(metrics.OutcomeRollback).Inc()
	logger.WithContext(u.log, ctx).Warn("commit failed", zap.Error(cause))
}

func (u *UnitOfWork) release() {
	u.tx = nil
	u.aborted = nil
	u.pending = nil
}

func (u *UnitOfWork) detach() {
	u.entries = nil
}

func (u *UnitOfWork) revertAll() {
	for _, e := range u.entries {
		e.agg.Revert()
		e.reset()
	}
}

// revertTx undoes everything an explicit transaction did in memory: aggregates
// saved inside it go back to their savepoint, the others to their checkpoint.
func (u *UnitOfWork) revertTx() {
	for _, e := range u.entries {
		if e.inTx {
			e.agg.RevertTo(e.base)
			e.persisted = e.basePersisted
		} else {
			e.agg.Revert()
		}
		e.leaveTx()
		e.reset()
	}
}

// collect takes the queued events of every tracked aggregate in flush order,
// clearing each queue, and marks the aggregates clean. Inside an explicit
// transaction the first collect keeps a savepoint for Rollback.
func (u *UnitOfWork) collect() []domain.Event {
	var events []domain.Event
	for _, e := range u.entries {
		if u.tx != nil && !e.inTx {
			e.inTx = true
			e.base = e.agg.Savepoint()
			e.basePersisted = e.persisted
		}
		events = append(events, e.agg.PendingEvents()...)
		e.agg.ClearEvents()
		e.agg.Checkpoint()
		e.persisted = true
		e.reset()
	}
	return events
}

func (u *UnitOfWork) publish(ctx context.Context, events []domain.Event) {
	if len(events) == 0 || u.publisher == nil {
		return
	}
	u.publisher.Publish(ctx, events)
}

// conn is the handle repositories read through: the open transaction, if any.
func (u *UnitOfWork) conn(ctx context.Context) (*gorm.DB, error) {
	if u.aborted != nil {
		return nil, u.aborted
	}
	if u.tx != nil {
		return u.tx.WithContext(ctx), nil
	}
	return u.db.WithContext(ctx), nil
}

func (u *UnitOfWork) flushAll(tx *gorm.DB) error {
	for _, e := range u.entries {
		if err := e.flush(tx); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) entryFor(agg domain.Aggregate) *entry {
	for _, e := range u.entries {
		if e.agg == agg {
			return e
		}
	}
	return nil
}

// track registers agg once; later calls return the existing entry.
func (u *UnitOfWork) track(agg domain.Aggregate, persisted bool, shape aggregateShape) *entry {
	if e := u.entryFor(agg); e != nil {
		return e
	}
	e := &entry{agg: agg, persisted: persisted, shape: shape}
	e.reset()
	u.entries = append(u.entries, e)
	return e
}

// child is one row owned by an aggregate.
type child struct {
	id  string
	row any
}

// aggregateShape tells the flusher how an aggregate maps to rows.
type aggregateShape struct {
	root func() any
	// all lists every child row; used when the aggregate itself is new.
	all func() []child
	// changes lists children unknown at the last checkpoint and children that
	// differ from it.
	changes func() (added, modified []child)
}

type entry struct {
	agg       domain.Aggregate
	shape     aggregateShape
	persisted bool
	dirty     bool
	outcomes  map[string]domain.Outcome

	// set while an explicit transaction holds writes of this aggregate
	inTx          bool
	base          domain.Savepoint
	basePersisted bool
}

func (e *entry) reset() {
	e.dirty = false
	e.outcomes = make(map[string]domain.Outcome)
}

func (e *entry) leaveTx() {
	e.inTx = false
	e.base = domain.Savepoint{}
	e.basePersisted = false
}

func (e *entry) flush(tx *gorm.DB) error {
	root := e.shape.root()
	if !e.persisted {
		if err := tx.Omit(clause.Associations).Create(root).Error; err != nil {
			return err
		}
		for _, c := range e.shape.all() {
			if err := tx.Create(c.row).Error; err != nil {
				return err
			}
		}
		return nil
	}

	if e.dirty || len(e.agg.PendingEvents()) > 0 {
		if err := updateRow(tx, root); err != nil {
			return err
		}
	}
	if e.shape.changes == nil {
		return nil
	}

	added, modified := e.shape.changes()
	for _, c := range added {
		// A child unknown at checkpoint is only ever inserted on an explicit Created outcome.
		if e.outcomes[c.id] != domain.Created {
			return domain.Internal(fmt.Sprintf("child %s was added without a Created outcome", c.id), nil)
		}
		if err := tx.Create(c.row).Error; err != nil {
			return err
		}
	}
	for _, c := range modified {
		if err := updateRow(tx, c.row); err != nil {
			return err
		}
	}
	return nil
}

// versioned rows carry an optimistic-lock counter.
type versioned interface {
	NextVersion() int64
}

// updateRow rewrites every column of an existing row, zero values included.
// Versioned rows are only written while the stored version is the loaded one.
func updateRow(tx *gorm.DB, row any) error {
	q := tx.Model(row).Select("*").Omit(clause.Associations)
	v, guarded := row.(versioned)
	if guarded {
		q = q.Where("version = ?", v.NextVersion())
	}
	res := q.Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if guarded {
			return errStaleRow
		}
		return gorm.ErrRecordNotFound
	}
	return nil
}
