package message

import "github.com/Gopher0727/ChatCore/internal/domain"

var (
	ErrMessageNotFound       = domain.NotFound("message_not_found", "message not found")
	ErrMessageDeleted        = domain.InvalidState("message_deleted", "message has been deleted")
	ErrNotSender             = domain.Forbidden("not_sender", "only the sender may change this message")
	ErrReactionAlreadyExists = domain.AlreadyExists("reaction_already_exists", "user already reacted with this emoji")
	ErrReactionNotFound      = domain.NotFound("reaction_not_found", "reaction not found")
	ErrNotReactionAuthor     = domain.Forbidden("not_reaction_author", "only the author may remove a reaction")
	ErrEmptyContent          = domain.Validation("empty_content", "message content is required")
	ErrInvalidEmoji          = domain.Validationf("invalid_emoji", "emoji must be 1 to %d characters without spaces", MaxEmojiLength)
	ErrParentNotFound        = domain.NotFound("parent_not_found", "thread parent not found in this channel")
	ErrEmptySender           = domain.Validation("empty_sender", "sender id is required")
	ErrEmptyChannel          = domain.Validation("empty_channel", "channel id is required")
)
