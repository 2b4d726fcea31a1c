package message

import (
	"time"

	"github.com/samber/lo"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

// Message is the aggregate root for a posted message, its reactions and attachments.
// Deleted messages stay in place so threads and reactions keep their anchor.
type Message struct {
	domain.AggregateRoot `gorm:"-" json:"-"`

	ID        string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ChannelID string     `gorm:"not null;type:varchar(64);index:idx_channel_seq,priority:1" json:"channel_id"`
	SenderID  string     `gorm:"not null;type:varchar(64);index" json:"sender_id"`
	Content   Content    `gorm:"not null;type:text" json:"content"`
	ParentID  *string    `gorm:"type:varchar(64);index" json:"parent_id,omitempty"`
	SeqID     int64      `gorm:"not null;index:idx_channel_seq,priority:2" json:"seq_id"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	domain.SoftDeletion

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	domain.Versioned

	Reactions   []*Reaction   `gorm:"foreignKey:MessageID" json:"-"`
	Attachments []*Attachment `gorm:"foreignKey:MessageID" json:"-"`

	snapshot *snapshot
}

func (Message) TableName() string {
	return "messages"
}

type snapshot struct {
	content   Content
	editedAt  *time.Time
	deletion  domain.SoftDeletion
	updatedAt time.Time
	version   int64
	reactions map[string]*Reaction
}

// ReactionChange reports whether add-or-restore inserted or revived the reaction.
type ReactionChange struct {
	Reaction *Reaction
	Outcome  domain.Outcome
}

// New builds a message. id and seqID are assigned by the caller; parentID, when
// set, must already be checked to belong to the same channel.
func New(id, channelID, senderID string, content Content, parentID *string, seqID int64, attachments []AttachmentSpec) (*Message, error) {
	if channelID == "" {
		return nil, ErrEmptyChannel
	}
	if senderID == "" {
		return nil, ErrEmptySender
	}
	if content == "" {
		return nil, ErrEmptyContent
	}
	now := domain.Now()
	m := &Message{
		ID:        id,
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		ParentID:  parentID,
		SeqID:     seqID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, spec := range attachments {
		m.Attachments = append(m.Attachments, newAttachment(id, spec, now))
	}
	m.Raise(SentEvent{
		EventBase:   domain.NewEventBase(id),
		ChannelID:   channelID,
		SenderID:    senderID,
		ParentID:    parentID,
		SeqID:       seqID,
		Attachments: len(m.Attachments),
	})
	return m, nil
}

func (m *Message) IsReply() bool { return m.ParentID != nil }

// DisplayContent is what readers see: the text, or the placeholder once deleted.
func (m *Message) DisplayContent() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	return m.Content.String()
}

// Edit replaces the content. Only the sender may edit, and not after deletion.
func (m *Message) Edit(actorID string, content Content) error {
	if content == "" {
		return ErrEmptyContent
	}
	if actorID != m.SenderID {
		return ErrNotSender
	}
	if m.IsDeleted {
		return ErrMessageDeleted
	}
	if content == m.Content {
		return nil
	}
	now := domain.Now()
	m.Content = content
	m.EditedAt = &now
	m.UpdatedAt = now
	m.Raise(EditedEvent{
		EventBase: domain.NewEventBase(m.ID),
		ChannelID: m.ChannelID,
		EditedBy:  actorID,
	})
	return nil
}

// Delete soft-deletes the message. Only the sender may delete it.
func (m *Message) Delete(actorID string) error {
	if actorID != m.SenderID {
		return ErrNotSender
	}
	now := domain.Now()
	if err := m.MarkDeleted(actorID, now); err != nil {
		return ErrMessageDeleted
	}
	m.UpdatedAt = now
	m.Raise(DeletedEvent{
		EventBase: domain.NewEventBase(m.ID),
		ChannelID: m.ChannelID,
		DeletedBy: actorID,
	})
	return nil
}

// AddReaction adds actorID's emoji, or revives it if it was removed earlier.
func (m *Message) AddReaction(actorID string, emoji Emoji) (ReactionChange, error) {
	if actorID == "" {
		return ReactionChange{}, domain.ErrEmptyActor
	}
	if emoji == "" {
		return ReactionChange{}, ErrInvalidEmoji
	}
	if m.IsDeleted {
		return ReactionChange{}, ErrMessageDeleted
	}

	existing := m.findReaction(actorID, emoji)
	switch {
	case existing == nil:
		r, err := NewReaction(m.ID, actorID, emoji)
		if err != nil {
			return ReactionChange{}, err
		}
		m.Reactions = append(m.Reactions, r)
		m.raiseReactionAdded(r, false)
		return ReactionChange{Reaction: r, Outcome: domain.Created}, nil
	case existing.IsActive():
		return ReactionChange{}, ErrReactionAlreadyExists
	default:
		if err := existing.Restore(actorID); err != nil {
			return ReactionChange{}, err
		}
		m.raiseReactionAdded(existing, true)
		return ReactionChange{Reaction: existing, Outcome: domain.Restored}, nil
	}
}

func (m *Message) raiseReactionAdded(r *Reaction, restored bool) {
	m.Raise(ReactionAddedEvent{
		EventBase: domain.NewEventBase(m.ID),
		ChannelID: m.ChannelID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		Restored:  restored,
	})
}

// RemoveReaction removes userID's emoji. Only userID itself may do that.
func (m *Message) RemoveReaction(actorID, userID string, emoji Emoji) (*Reaction, error) {
	if actorID == "" {
		return nil, domain.ErrEmptyActor
	}
	if actorID != userID {
		return nil, ErrNotReactionAuthor
	}
	if m.IsDeleted {
		return nil, ErrMessageDeleted
	}
	r := m.findReaction(userID, emoji)
	if r == nil || r.IsRemoved {
		return nil, ErrReactionNotFound
	}
	if err := r.Remove(actorID); err != nil {
		return nil, err
	}
	m.Raise(ReactionRemovedEvent{
		EventBase: domain.NewEventBase(m.ID),
		ChannelID: m.ChannelID,
		UserID:    userID,
		Emoji:     emoji,
	})
	return r, nil
}

func (m *Message) ActiveReactions() []*Reaction {
	return lo.Filter(m.Reactions, func(r *Reaction, _ int) bool {
		return r.IsActive()
	})
}

// ReactionCounts tallies active reactions per emoji.
func (m *Message) ReactionCounts() map[Emoji]int {
	return lo.CountValuesBy(m.ActiveReactions(), func(r *Reaction) Emoji {
		return r.Emoji
	})
}

func (m *Message) Checkpoint() {
	s := &snapshot{
		content:   m.Content,
		deletion:  m.SoftDeletion,
		updatedAt: m.UpdatedAt,
		version:   m.Version,
		reactions: make(map[string]*Reaction, len(m.Reactions)),
	}
	if m.EditedAt != nil {
		at := *m.EditedAt
		s.editedAt = &at
	}
	for _, r := range m.Reactions {
		s.reactions[r.ID] = r.clone()
	}
	m.snapshot = s
	m.MarkEvents()
}

// Revert restores the last Checkpoint. Reactions added since are dropped.
func (m *Message) Revert() {
	m.RevertEvents()
	s := m.snapshot
	if s == nil {
		return
	}
	m.Content = s.content
	m.EditedAt = s.editedAt
	m.SoftDeletion = s.deletion
	m.UpdatedAt = s.updatedAt
	m.Version = s.version

	kept := m.Reactions[:0]
	for _, r := range m.Reactions {
		prev, ok := s.reactions[r.ID]
		if !ok {
			continue
		}
		*r = *prev.clone()
		kept = append(kept, r)
	}
	m.Reactions = kept
}

func (m *Message) Savepoint() domain.Savepoint { return m.SavepointOf(m.snapshot) }

func (m *Message) RevertTo(sp domain.Savepoint) {
	m.snapshot, _ = sp.State.(*snapshot)
	m.RestoreEvents(sp.Events)
	m.Revert()
}

// ReactionChanges compares reactions with the last Checkpoint: added were
// unknown then, modified differ from their checkpointed state.
func (m *Message) ReactionChanges() (added, modified []*Reaction) {
	for _, r := range m.Reactions {
		if m.snapshot == nil {
			added = append(added, r)
			continue
		}
		prev, ok := m.snapshot.reactions[r.ID]
		switch {
		case !ok:
			added = append(added, r)
		case !prev.equal(r):
			modified = append(modified, r)
		}
	}
	return added, modified
}

func (m *Message) findReaction(userID string, emoji Emoji) *Reaction {
	r, ok := lo.Find(m.Reactions, func(r *Reaction) bool {
		return r.UserID == userID && r.Emoji == emoji
	})
	if !ok {
		return nil
	}
	return r
}
