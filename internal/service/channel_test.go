package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/domain/channel"
)

func (e *env) createChannel(t *testing.T, owner, typ string) *channel.Channel {
	t.Helper()
	ch, err := e.channels.CreateChannel(context.Background(), owner, &CreateChannelRequest{Name: "general", Type: typ})
	require.NoError(t, err)
	e.events.reset()
	return ch
}

func memberSummary(ms []*channel.Member) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.UserID+":"+string(m.Role))
	}
	return out
}

func TestChannelService_CreateAndJoin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ch, err := e.channels.CreateChannel(ctx, "alice", &CreateChannelRequest{Name: "  general ", Type: "Public"})
	require.NoError(t, err)
	assert.Equal(t, channel.Name("general"), ch.Name)
	assert.Equal(t, []string{channel.EventCreated}, e.events.types())

	_, err = e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob", Role: "member"})
	require.NoError(t, err)

	members, err := e.channels.ListMembers(ctx, "bob", ch.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice:owner", "bob:member"}, memberSummary(members))

	_, err = e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob"})
	requireKind(t, err, domain.KindAlreadyExists)

	list, err := e.channels.ListChannels(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ch.ID, list[0].ID)
}

func TestChannelService_CreateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.channels.CreateChannel(ctx, "alice", &CreateChannelRequest{Name: "   ", Type: "public"})
	requireKind(t, err, domain.KindValidation)
	_, err = e.channels.CreateChannel(ctx, "alice", &CreateChannelRequest{Name: "ok", Type: "secret"})
	requireKind(t, err, domain.KindValidation)
	assert.Empty(t, e.events.types())
}

func TestChannelService_RemoveThenRestore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ch := e.createChannel(t, "alice", "public")

	first, err := e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)
	_, err = e.channels.RemoveMember(ctx, "alice", ch.ID, "bob")
	require.NoError(t, err)

	e.events.reset()
	again, err := e.channels.AddMember(ctx, "alice", ch.ID, &AddMemberRequest{UserID: "bob", Role: "member"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.False(t, again.IsRemoved)
	assert.Equal(t, []string{channel.EventMemberAdded}, e.events.types())

	all, err := e.channels.ListMembers(ctx, "alice", ch.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice:owner", "bob:member"}, memberSummary(all))
}

func TestChannelService_ConcurrentRestoreAddsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ch := e.createChannel(t, "alice", "public")

	_, err := e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)
	_, err = e.channels.RemoveMember(ctx, "bob", ch.ID, "bob")
	require.NoError(t, err)
	e.events.reset()

	errs := concurrently(4, func() error {
		_, err := e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob"})
		return err
	})
	oneWinner(t, errs, domain.KindAlreadyExists)
	assert.Equal(t, []string{channel.EventMemberAdded}, e.events.types())

	all, err := e.channels.ListMembers(ctx, "alice", ch.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice:owner", "bob:member"}, memberSummary(all))
}

func TestChannelService_Permissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	private := e.createChannel(t, "alice", "private")

	_, err := e.channels.GetChannel(ctx, "mallory", private.ID)
	requireKind(t, err, domain.KindForbidden)
	_, err = e.channels.AddMember(ctx, "mallory", private.ID, &AddMemberRequest{UserID: "mallory"})
	requireKind(t, err, domain.KindForbidden)

	_, err = e.channels.AddMember(ctx, "alice", private.ID, &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)
	_, err = e.channels.UpdateChannel(ctx, "bob", private.ID, &UpdateChannelRequest{Name: ptr("mine")})
	requireKind(t, err, domain.KindForbidden)
	_, err = e.channels.AddMember(ctx, "bob", private.ID, &AddMemberRequest{UserID: "carol", Role: "owner"})
	requireKind(t, err, domain.KindForbidden)

	// members may add others to a private channel
	_, err = e.channels.AddMember(ctx, "bob", private.ID, &AddMemberRequest{UserID: "carol"})
	require.NoError(t, err)

	_, err = e.channels.GetChannel(ctx, "missing", "nope")
	requireKind(t, err, domain.KindNotFound)
}

func TestChannelService_LastOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ch := e.createChannel(t, "alice", "public")

	_, err := e.channels.RemoveMember(ctx, "alice", ch.ID, "alice")
	requireKind(t, err, domain.KindInvalidState)
	_, err = e.channels.ChangeMemberRole(ctx, "alice", ch.ID, "alice", &ChangeRoleRequest{Role: "member"})
	requireKind(t, err, domain.KindInvalidState)

	_, err = e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob"})
	require.NoError(t, err)
	promoted, err := e.channels.ChangeMemberRole(ctx, "alice", ch.ID, "bob", &ChangeRoleRequest{Role: "owner"})
	require.NoError(t, err)
	assert.Equal(t, channel.RoleOwner, promoted.Role)

	left, err := e.channels.RemoveMember(ctx, "alice", ch.ID, "alice")
	require.NoError(t, err)
	assert.True(t, left.IsRemoved)
}

func TestChannelService_UpdateIsAllOrNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ch := e.createChannel(t, "alice", "public")

	long := make([]rune, channel.MaxDescriptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := e.channels.UpdateChannel(ctx, "alice", ch.ID, &UpdateChannelRequest{
		Name:        ptr("renamed"),
		Description: ptr(string(long)),
	})
	requireKind(t, err, domain.KindValidation)
	assert.Empty(t, e.events.types())

	stored, err := e.channels.GetChannel(ctx, "alice", ch.ID)
	require.NoError(t, err)
	assert.Equal(t, channel.Name("general"), stored.Name)

	updated, err := e.channels.UpdateChannel(ctx, "alice", ch.ID, &UpdateChannelRequest{
		Name:        ptr("renamed"),
		Description: ptr("about"),
	})
	require.NoError(t, err)
	assert.Equal(t, channel.Name("renamed"), updated.Name)
	assert.Equal(t, []string{channel.EventRenamed, channel.EventDescriptionChanged}, e.events.types())
}

func TestChannelService_Archive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ch := e.createChannel(t, "alice", "public")

	archived, err := e.channels.ArchiveChannel(ctx, "alice", ch.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	_, err = e.channels.AddMember(ctx, "bob", ch.ID, &AddMemberRequest{UserID: "bob"})
	requireKind(t, err, domain.KindInvalidState)
	_, err = e.channels.ArchiveChannel(ctx, "alice", ch.ID)
	requireKind(t, err, domain.KindInvalidState)
}
