package message

import "github.com/Gopher0727/ChatCore/internal/domain"

const (
	EventSent            = "message.sent"
	EventEdited          = "message.edited"
	EventDeleted         = "message.deleted"
	EventReactionAdded   = "message.reaction_added"
	EventReactionRemoved = "message.reaction_removed"
)

type SentEvent struct {
	domain.EventBase
	ChannelID   string  `json:"channel_id"`
	SenderID    string  `json:"sender_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	SeqID       int64   `json:"seq_id"`
	Attachments int     `json:"attachments"`
}

func (SentEvent) EventType() string { return EventSent }

type EditedEvent struct {
	domain.EventBase
	ChannelID string `json:"channel_id"`
	EditedBy  string `json:"edited_by"`
}

func (EditedEvent) EventType() string { return EventEdited }

type DeletedEvent struct {
	domain.EventBase
	ChannelID string `json:"channel_id"`
	DeletedBy string `json:"deleted_by"`
}

func (DeletedEvent) EventType() string { return EventDeleted }

// ReactionAddedEvent is raised for new and restored reactions alike.
type ReactionAddedEvent struct {
	domain.EventBase
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Emoji     Emoji  `json:"emoji"`
	Restored  bool   `json:"restored"`
}

func (ReactionAddedEvent) EventType() string { return EventReactionAdded }

type ReactionRemovedEvent struct {
	domain.EventBase
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Emoji     Emoji  `json:"emoji"`
}

func (ReactionRemovedEvent) EventType() string { return EventReactionRemoved }
