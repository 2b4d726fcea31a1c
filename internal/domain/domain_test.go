package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct {
	EventBase
}

func (pingEvent) EventType() string { return "test.ping" }

func TestSoftRemoval(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("remove then remove again fails", func(t *testing.T) {
		var s SoftRemoval
		require.NoError(t, s.MarkRemoved("u1", at))
		assert.True(t, s.IsRemoved)
		assert.Equal(t, at, *s.RemovedAt)
		assert.Equal(t, "u1", *s.RemovedBy)

		err := s.MarkRemoved("u2", at)
		assert.ErrorIs(t, err, ErrAlreadyRemoved)
		assert.Equal(t, KindInvalidState, KindOf(err))
		assert.Equal(t, "u1", *s.RemovedBy)
	})

	t.Run("clear of active record fails", func(t *testing.T) {
		var s SoftRemoval
		assert.ErrorIs(t, s.ClearRemoval(), ErrNotRemoved)
	})

	t.Run("clear resets audit fields", func(t *testing.T) {
		var s SoftRemoval
		require.NoError(t, s.MarkRemoved("u1", at))
		require.NoError(t, s.ClearRemoval())
		assert.False(t, s.IsRemoved)
		assert.Nil(t, s.RemovedAt)
		assert.Nil(t, s.RemovedBy)
	})
}

func TestSoftDeletion(t *testing.T) {
	var s SoftDeletion
	at := time.Now().UTC()

	assert.ErrorIs(t, s.ClearDeletion(), ErrNotDeleted)
	require.NoError(t, s.MarkDeleted("u1", at))
	assert.ErrorIs(t, s.MarkDeleted("u1", at), ErrAlreadyDeleted)
	require.NoError(t, s.ClearDeletion())
	assert.False(t, s.IsDeleted)
	assert.Nil(t, s.DeletedAt)
}

func TestAggregateRoot_Events(t *testing.T) {
	var root AggregateRoot
	first := pingEvent{NewEventBase("a1")}
	second := pingEvent{NewEventBase("a1")}
	root.Raise(first)
	root.Raise(second)

	pending := root.PendingEvents()
	require.Len(t, pending, 2)
	assert.Equal(t, first.EventID(), pending[0].EventID())
	assert.Equal(t, second.EventID(), pending[1].EventID())
	assert.NotEqual(t, first.EventID(), second.EventID())

	// the returned slice is a copy
	pending[0] = nil
	assert.NotNil(t, root.PendingEvents()[0])

	root.ClearEvents()
	assert.Empty(t, root.PendingEvents())
}

func TestAggregateRoot_MarkAndRevertEvents(t *testing.T) {
	var root AggregateRoot
	root.Raise(pingEvent{NewEventBase("a1")})
	root.MarkEvents()
	root.Raise(pingEvent{NewEventBase("a1")})
	root.Raise(pingEvent{NewEventBase("a1")})

	root.RevertEvents()
	assert.Len(t, root.PendingEvents(), 1)

	root.ClearEvents()
	root.RevertEvents()
	assert.Empty(t, root.PendingEvents())
}

func TestAggregateRoot_SavepointEvents(t *testing.T) {
	var root AggregateRoot
	created := pingEvent{NewEventBase("a1")}
	root.Raise(created)
	root.MarkEvents()
	root.Raise(pingEvent{NewEventBase("a1")})

	sp := root.SavepointOf("state")
	assert.Equal(t, "state", sp.State)
	require.Len(t, sp.Events, 1)

	root.ClearEvents()
	root.RestoreEvents(sp.Events)
	root.Raise(pingEvent{NewEventBase("a1")})
	root.RevertEvents()
	require.Len(t, root.PendingEvents(), 1)
	assert.Equal(t, created.EventID(), root.PendingEvents()[0].EventID())
}

func TestVersioned_NextVersion(t *testing.T) {
	var v Versioned
	assert.EqualValues(t, 0, v.NextVersion())
	assert.EqualValues(t, 1, v.NextVersion())
	assert.EqualValues(t, 2, v.Version)
}

func TestSoftRemoval_Equal(t *testing.T) {
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var a, b SoftRemoval
	assert.True(t, a.Equal(b))

	require.NoError(t, a.MarkRemoved("u1", at))
	assert.False(t, a.Equal(b))
	require.NoError(t, b.MarkRemoved("u1", at))
	assert.True(t, a.Equal(b), "equal by value, not by pointer")

	require.NoError(t, b.ClearRemoval())
	require.NoError(t, b.MarkRemoved("u2", at))
	assert.False(t, a.Equal(b))
}

func TestEventBase_UsesClock(t *testing.T) {
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	orig := Now
	Now = func() time.Time { return fixed }
	defer func() { Now = orig }()

	ev := pingEvent{NewEventBase("agg")}
	assert.Equal(t, fixed, ev.OccurredOn())
	assert.Equal(t, "agg", ev.AggregateID())
	assert.NotEmpty(t, ev.EventID())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("x", "x"), KindNotFound},
		{"wrapped forbidden", fmt.Errorf("failed to do: %w", Forbidden("x", "x")), KindForbidden},
		{"plain error", errors.New("boom"), KindInternal},
		{"retryable keeps kind", AsRetryable(AlreadyExists("dup", "dup")), KindAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAsRetryable_MatchesSentinel(t *testing.T) {
	sentinel := AlreadyExists("member_exists", "member exists")
	err := AsRetryable(sentinel)
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, err.Retryable)
}

func TestResultOf(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := ResultOf(42, nil)
		assert.True(t, r.IsSuccess())
		assert.Equal(t, 42, r.Value())
		assert.Nil(t, r.Err())
	})

	t.Run("domain failure keeps kind", func(t *testing.T) {
		r := ResultOf(0, Forbidden("nope", "nope"))
		assert.False(t, r.IsSuccess())
		assert.Equal(t, KindForbidden, r.Kind())
		assert.Equal(t, "nope", r.Err().Code)
	})

	t.Run("foreign error becomes internal", func(t *testing.T) {
		r := ResultOf("", errors.New("disk on fire"))
		assert.Equal(t, KindInternal, r.Kind())
		assert.Contains(t, r.Err().Error(), "disk on fire")
	})

	t.Run("transaction misuse panics", func(t *testing.T) {
		assert.Panics(t, func() {
			ResultOf(0, TransactionMisuse("tx", "no tx"))
		})
	})
}
