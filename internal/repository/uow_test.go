package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/domain/channel"
	"github.com/Gopher0727/ChatCore/internal/domain/file"
	"github.com/Gopher0727/ChatCore/internal/event"
)

func TestUnitOfWork_AddThenLoad(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	ch, err := fx.uow().Channels().Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, channel.Name("general"), ch.Name)
	assert.Equal(t, channel.TypePublic, ch.Type)
	require.Len(t, ch.Members, 1)
	assert.Equal(t, "alice", ch.Members[0].UserID)
	assert.Equal(t, channel.RoleOwner, ch.Members[0].Role)
	assert.Empty(t, ch.PendingEvents())

	_, err = fx.uow().Channels().Load(ctx, "missing")
	assert.ErrorIs(t, err, channel.ErrChannelNotFound)
}

func TestUnitOfWork_PublishesAfterCommitInFlushOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
	require.NoError(t, err)
	change, err := ch.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)
	f, err := file.New("alice", &ch.ID, "notes.txt", "text/plain", file.Size(10))
	require.NoError(t, err)

	u := fx.uow()
	u.Channels().Add(ch)
	u.Channels().TrackMember(ch, change)
	u.Files().Add(f)
	require.NoError(t, u.Save(ctx))

	assert.Equal(t, []string{channel.EventCreated, channel.EventMemberAdded, file.EventUploaded}, fx.events.types())
	require.Len(t, fx.events.batches, 1)
	assert.Empty(t, ch.PendingEvents())
	assert.Empty(t, f.PendingEvents())

	// nothing new to publish on a second save
	require.NoError(t, u.Save(ctx))
	assert.Len(t, fx.events.batches, 1)

	assert.EqualValues(t, 2, fx.count(t, &channel.Member{}, "channel_id = ?", ch.ID))
	assert.EqualValues(t, 1, fx.count(t, &file.File{}, "id = ?", f.ID))
}

func TestUnitOfWork_SubscriberPanicDoesNotFailSave(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	d := event.NewDispatcher(zap.NewNop())
	d.Subscribe(channel.EventCreated, func(context.Context, domain.Event) error {
		panic("boom")
	})
	var seen []string
	d.SubscribeAll(func(_ context.Context, e domain.Event) error {
		seen = append(seen, e.EventType())
		return errors.New("ignored")
	})

	ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
	require.NoError(t, err)
	u := NewUnitOfWork(fx.db, d, zap.NewNop())
	u.Channels().Add(ch)

	require.NoError(t, u.Save(ctx))
	assert.Equal(t, []string{channel.EventCreated}, seen)
	assert.Empty(t, ch.PendingEvents())
	assert.EqualValues(t, 1, fx.count(t, &channel.Channel{}, "id = ?", ch.ID))
}

func TestUnitOfWork_FailedSaveLeavesStoreAndAggregateUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	u := fx.uow()
	ch, err := u.Channels().Load(ctx, id)
	require.NoError(t, err)
	require.NoError(t, ch.Rename("alice", channel.Name("renamed")))
	change, err := ch.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)
	u.Channels().TrackMember(ch, change)

	fx.faults.failWritesTo("channel_members")
	err = u.Save(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.ErrorIs(t, err, errInjected)
	fx.faults.clear()

	assert.Empty(t, fx.events.batches)
	assert.Equal(t, channel.Name("general"), ch.Name)
	assert.Len(t, ch.Members, 1)
	assert.Empty(t, ch.PendingEvents())

	stored, err := fx.uow().Channels().Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, channel.Name("general"), stored.Name)
	assert.Len(t, stored.Members, 1)
}

func TestUnitOfWork_FailedInsertOfNewAggregateKeepsItsEvents(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
	require.NoError(t, err)
	u := fx.uow()
	u.Channels().Add(ch)

	fx.faults.failWritesTo("channels")
	require.Error(t, u.Save(ctx))
	fx.faults.clear()

	assert.Empty(t, fx.events.batches)
	assert.Len(t, ch.PendingEvents(), 1)
	assert.EqualValues(t, 0, fx.count(t, &channel.Channel{}, "id = ?", ch.ID))

	// the same unit of work can retry once the store recovers
	require.NoError(t, u.Save(ctx))
	assert.Equal(t, []string{channel.EventCreated}, fx.events.types())
}

func TestUnitOfWork_CancelledContextWritesNothing(t *testing.T) {
	fx := newFixture(t)

	ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
	require.NoError(t, err)
	u := fx.uow()
	u.Channels().Add(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = u.Save(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, fx.events.batches)
	assert.EqualValues(t, 0, fx.count(t, &channel.Channel{}, "id = ?", ch.ID))
}

func TestUnitOfWork_MemberAddRemoveAddKeepsOneRow(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	join := func() domain.Outcome {
		u := fx.uow()
		ch, err := u.Channels().Load(ctx, id)
		require.NoError(t, err)
		change, err := ch.AddMember("bob", "bob", channel.RoleMember)
		require.NoError(t, err)
		u.Channels().TrackMember(ch, change)
		require.NoError(t, u.Save(ctx))
		return change.Outcome
	}

	assert.Equal(t, domain.Created, join())

	u := fx.uow()
	ch, err := u.Channels().Load(ctx, id)
	require.NoError(t, err)
	_, err = ch.Leave("bob")
	require.NoError(t, err)
	require.NoError(t, u.Save(ctx))
	assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ? AND user_id = ? AND is_removed = ?", id, "bob", true))

	assert.Equal(t, domain.Restored, join())
	assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ? AND user_id = ?", id, "bob"))
	assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ? AND user_id = ? AND is_removed = ?", id, "bob", false))

	assert.Equal(t, []string{
		channel.EventMemberAdded,
		channel.EventMemberRemoved,
		channel.EventMemberAdded,
	}, fx.events.types())
}

func TestUnitOfWork_ConcurrentAddIsRetryableConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	first, second := fx.uow(), fx.uow()
	a, err := first.Channels().Load(ctx, id)
	require.NoError(t, err)
	b, err := second.Channels().Load(ctx, id)
	require.NoError(t, err)

	ca, err := a.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)
	first.Channels().TrackMember(a, ca)
	cb, err := b.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)
	second.Channels().TrackMember(b, cb)

	require.NoError(t, first.Save(ctx))
	err = second.Save(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Retryable)

	assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ? AND user_id = ?", id, "bob"))
	assert.Len(t, fx.events.batches, 1)
}

func TestUnitOfWork_ConcurrentRestoreIsRetryableConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	u := fx.uow()
	ch, err := u.Channels().Load(ctx, id)
	require.NoError(t, err)
	change, err := ch.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)
	u.Channels().TrackMember(ch, change)
	require.NoError(t, u.Save(ctx))
	_, err = ch.Leave("bob")
	require.NoError(t, err)
	require.NoError(t, u.Save(ctx))

	first, second := fx.uow(), fx.uow()
	a, err := first.Channels().Load(ctx, id)
	require.NoError(t, err)
	b, err := second.Channels().Load(ctx, id)
	require.NoError(t, err)

	ca, err := a.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, domain.Restored, ca.Outcome)
	first.Channels().TrackMember(a, ca)
	cb, err := b.AddMember("alice", "bob", channel.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, domain.Restored, cb.Outcome)
	second.Channels().TrackMember(b, cb)

	require.NoError(t, first.Save(ctx))
	err = second.Save(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Retryable)

	// the loser is back where it was loaded
	assert.False(t, b.IsActiveMember("bob"))
	assert.Empty(t, b.PendingEvents())

	assert.Equal(t, []string{
		channel.EventMemberAdded,
		channel.EventMemberRemoved,
		channel.EventMemberAdded,
	}, fx.events.types())

	stored, err := fx.uow().Channels().Load(ctx, id)
	require.NoError(t, err)
	bob, ok := stored.ActiveMember("bob")
	require.True(t, ok)
	assert.Equal(t, channel.RoleMember, bob.Role)
	assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ? AND user_id = ?", id, "bob"))
}

func TestUnitOfWork_ConcurrentOwnersLeavingKeepsOneOwner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	u := fx.uow()
	ch, err := u.Channels().Load(ctx, id)
	require.NoError(t, err)
	change, err := ch.AddMember("alice", "carol", channel.RoleOwner)
	require.NoError(t, err)
	u.Channels().TrackMember(ch, change)
	require.NoError(t, u.Save(ctx))

	first, second := fx.uow(), fx.uow()
	a, err := first.Channels().Load(ctx, id)
	require.NoError(t, err)
	b, err := second.Channels().Load(ctx, id)
	require.NoError(t, err)

	_, err = a.Leave("alice")
	require.NoError(t, err)
	_, err = b.Leave("carol")
	require.NoError(t, err)

	require.NoError(t, first.Save(ctx))
	err = second.Save(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists))

	assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ? AND role = ? AND is_removed = ?", id, channel.RoleOwner, false))
	stored, err := fx.uow().Channels().Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.IsOwner("carol"))
	assert.False(t, stored.IsActiveMember("alice"))
}

func TestUnitOfWork_UntrackedChildIsInternal(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.seedChannel(t, "alice")

	u := fx.uow()
	ch, err := u.Channels().Load(ctx, id)
	require.NoError(t, err)
	_, err = ch.AddMember("bob", "bob", channel.RoleMember)
	require.NoError(t, err)

	err = u.Save(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.Len(t, ch.Members, 1)
	assert.EqualValues(t, 0, fx.count(t, &channel.Member{}, "user_id = ?", "bob"))
}

func TestUnitOfWork_ExplicitTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("events wait for commit", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		require.NoError(t, u.BeginTransaction(ctx))
		assert.True(t, u.InTransaction())

		ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
		require.NoError(t, err)
		u.Channels().Add(ch)
		require.NoError(t, u.Save(ctx))
		assert.Empty(t, fx.events.batches)

		require.NoError(t, ch.Rename("alice", channel.Name("renamed")))
		u.Channels().Update(ch)
		require.NoError(t, u.Save(ctx))
		assert.Empty(t, fx.events.batches)

		require.NoError(t, u.Commit(ctx))
		assert.False(t, u.InTransaction())
		assert.Equal(t, []string{channel.EventCreated, channel.EventRenamed}, fx.events.types())

		stored, err := fx.uow().Channels().Load(ctx, ch.ID)
		require.NoError(t, err)
		assert.Equal(t, channel.Name("renamed"), stored.Name)
	})

	t.Run("rollback discards writes and events", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		require.NoError(t, u.BeginTransaction(ctx))

		ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
		require.NoError(t, err)
		u.Channels().Add(ch)
		require.NoError(t, u.Save(ctx))
		require.NoError(t, u.Rollback(ctx))

		assert.False(t, u.InTransaction())
		assert.Empty(t, fx.events.batches)
		assert.EqualValues(t, 0, fx.count(t, &channel.Channel{}, "id = ?", ch.ID))
	})

	t.Run("rollback after save restores the loaded state", func(t *testing.T) {
		fx := newFixture(t)
		id := fx.seedChannel(t, "alice")

		u := fx.uow()
		require.NoError(t, u.BeginTransaction(ctx))
		ch, err := u.Channels().Load(ctx, id)
		require.NoError(t, err)
		change, err := ch.AddMember("bob", "bob", channel.RoleMember)
		require.NoError(t, err)
		u.Channels().TrackMember(ch, change)
		require.NoError(t, u.Save(ctx))
		require.NoError(t, ch.Rename("alice", channel.Name("renamed")))
		u.Channels().Update(ch)
		require.NoError(t, u.Save(ctx))
		require.NoError(t, u.Rollback(ctx))

		assert.Len(t, ch.Members, 1)
		assert.False(t, ch.IsActiveMember("bob"))
		assert.Equal(t, channel.Name("general"), ch.Name)
		assert.Empty(t, ch.PendingEvents())
		assert.EqualValues(t, 1, fx.count(t, &channel.Member{}, "channel_id = ?", id))
		assert.Empty(t, fx.events.batches)

		// the reverted aggregate is still usable
		u = fx.uow()
		u.Channels().Update(ch)
		change, err = ch.AddMember("bob", "bob", channel.RoleMember)
		require.NoError(t, err)
		assert.Equal(t, domain.Created, change.Outcome)
		u.Channels().TrackMember(ch, change)
		require.NoError(t, u.Save(ctx))
		assert.Equal(t, []string{channel.EventMemberAdded}, fx.events.types())
		assert.EqualValues(t, 2, fx.count(t, &channel.Member{}, "channel_id = ?", id))
	})

	t.Run("rollback keeps the creation event of a new aggregate", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		require.NoError(t, u.BeginTransaction(ctx))

		ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
		require.NoError(t, err)
		u.Channels().Add(ch)
		require.NoError(t, u.Save(ctx))
		assert.Empty(t, ch.PendingEvents())
		require.NoError(t, u.Rollback(ctx))

		assert.Len(t, ch.PendingEvents(), 1)

		u = fx.uow()
		u.Channels().Add(ch)
		require.NoError(t, u.Save(ctx))
		assert.Equal(t, []string{channel.EventCreated}, fx.events.types())
		assert.EqualValues(t, 1, fx.count(t, &channel.Channel{}, "id = ?", ch.ID))
	})

	t.Run("misuse", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		assert.ErrorIs(t, u.Commit(ctx), ErrNoActiveTransaction)
		assert.ErrorIs(t, u.Rollback(ctx), ErrNoActiveTransaction)

		require.NoError(t, u.BeginTransaction(ctx))
		err := u.BeginTransaction(ctx)
		assert.ErrorIs(t, err, ErrTransactionAlreadyActive)
		assert.True(t, domain.IsKind(err, domain.KindTransactionMisuse))
		require.NoError(t, u.Rollback(ctx))
	})

	t.Run("failed save aborts until released", func(t *testing.T) {
		fx := newFixture(t)
		id := fx.seedChannel(t, "alice")

		u := fx.uow()
		require.NoError(t, u.BeginTransaction(ctx))
		ch, err := u.Channels().Load(ctx, id)
		require.NoError(t, err)
		require.NoError(t, ch.Rename("alice", channel.Name("renamed")))

		fx.faults.failWritesTo("channels")
		saveErr := u.Save(ctx)
		fx.faults.clear()
		require.Error(t, saveErr)
		assert.Equal(t, channel.Name("general"), ch.Name)

		// reads and saves report the same failure until the transaction ends
		_, err = u.Channels().Load(ctx, id)
		assert.Equal(t, saveErr, err)
		assert.Equal(t, saveErr, u.Save(ctx))

		assert.Equal(t, saveErr, u.Commit(ctx))
		assert.False(t, u.InTransaction())
		assert.Empty(t, fx.events.batches)

		require.NoError(t, u.BeginTransaction(ctx))
		require.NoError(t, u.Rollback(ctx))
	})

	t.Run("rollback releases an aborted transaction", func(t *testing.T) {
		fx := newFixture(t)
		id := fx.seedChannel(t, "alice")

		u := fx.uow()
		require.NoError(t, u.BeginTransaction(ctx))
		ch, err := u.Channels().Load(ctx, id)
		require.NoError(t, err)
		require.NoError(t, ch.Archive("alice"))

		fx.faults.failWritesTo("channels")
		require.Error(t, u.Save(ctx))
		fx.faults.clear()

		require.NoError(t, u.Rollback(ctx))
		assert.False(t, u.InTransaction())

		stored, err := fx.uow().Channels().Load(ctx, id)
		require.NoError(t, err)
		assert.False(t, stored.IsArchived)
	})
}

func TestUnitOfWork_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		var id string
		err := u.WithTransaction(ctx, func(ctx context.Context) error {
			ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
			if err != nil {
				return err
			}
			id = ch.ID
			u.Channels().Add(ch)
			return u.Save(ctx)
		})
		require.NoError(t, err)
		assert.Equal(t, []string{channel.EventCreated}, fx.events.types())
		assert.EqualValues(t, 1, fx.count(t, &channel.Channel{}, "id = ?", id))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		sentinel := errors.New("stop")
		var id string
		err := u.WithTransaction(ctx, func(ctx context.Context) error {
			ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
			if err != nil {
				return err
			}
			id = ch.ID
			u.Channels().Add(ch)
			if err := u.Save(ctx); err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.False(t, u.InTransaction())
		assert.Empty(t, fx.events.batches)
		assert.EqualValues(t, 0, fx.count(t, &channel.Channel{}, "id = ?", id))
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		fx := newFixture(t)
		u := fx.uow()
		var id string
		assert.PanicsWithValue(t, "boom", func() {
			_ = u.WithTransaction(ctx, func(ctx context.Context) error {
				ch, err := channel.New(channel.Name("general"), channel.TypePublic, "", "alice")
				if err != nil {
					return err
				}
				id = ch.ID
				u.Channels().Add(ch)
				if err := u.Save(ctx); err != nil {
					return err
				}
				panic("boom")
			})
		})
		assert.False(t, u.InTransaction())
		assert.Empty(t, fx.events.batches)
		assert.EqualValues(t, 0, fx.count(t, &channel.Channel{}, "id = ?", id))
	})
}

func TestChannelRepository_ListForUser(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	first := fx.seedChannel(t, "alice")
	second := fx.seedChannel(t, "carol")

	u := fx.uow()
	ch, err := u.Channels().Load(ctx, second)
	require.NoError(t, err)
	change, err := ch.AddMember("alice", "alice", channel.RoleMember)
	require.NoError(t, err)
	u.Channels().TrackMember(ch, change)
	require.NoError(t, u.Save(ctx))

	list, err := fx.uow().Channels().ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)

	list, err = fx.uow().Channels().ListForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}
