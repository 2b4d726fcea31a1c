package channel

import "github.com/Gopher0727/ChatCore/internal/domain"

var (
	ErrChannelNotFound     = domain.NotFound("channel_not_found", "channel not found")
	ErrChannelArchived     = domain.InvalidState("channel_archived", "channel is archived")
	ErrMemberAlreadyExists = domain.AlreadyExists("member_already_exists", "user is already an active member of this channel")
	ErrMemberNotFound      = domain.NotFound("member_not_found", "user is not an active member of this channel")
	ErrOwnerRequired       = domain.Forbidden("owner_required", "only a channel owner may do this")
	ErrNotMember           = domain.Forbidden("not_a_member", "user is not a member of this channel")
	ErrLastOwner           = domain.InvalidState("last_owner", "the last owner cannot leave or be demoted")
	ErrEmptyName           = domain.Validation("invalid_channel_name", "channel name is required")
	ErrInvalidType         = domain.Validation("invalid_channel_type", "channel type must be public or private")
	ErrInvalidRole         = domain.Validation("invalid_role", "role must be owner or member")
	ErrEmptyUser           = domain.Validation("empty_user", "user id is required")
)
