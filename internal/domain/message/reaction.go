package message

import (
	"time"

	"github.com/google/uuid"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

// Reaction is one user's emoji on a message, owned by the Message.
type Reaction struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MessageID string `gorm:"not null;type:varchar(64);uniqueIndex:idx_reaction_key" json:"message_id"`
	UserID    string `gorm:"not null;type:varchar(64);uniqueIndex:idx_reaction_key" json:"user_id"`
	Emoji     Emoji  `gorm:"not null;type:varchar(40);uniqueIndex:idx_reaction_key" json:"emoji"`

	CreatedAt time.Time `json:"created_at"`
	domain.SoftRemoval
	domain.Versioned
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func NewReaction(messageID, userID string, emoji Emoji) (*Reaction, error) {
	if userID == "" {
		return nil, domain.ErrEmptyActor
	}
	if emoji == "" {
		return nil, ErrInvalidEmoji
	}
	return &Reaction{
		ID:        uuid.New().String(),
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: domain.Now(),
	}, nil
}

func (r *Reaction) IsActive() bool { return !r.IsRemoved }

func (r *Reaction) Remove(actorID string) error {
	if actorID == "" {
		return domain.ErrEmptyActor
	}
	return r.MarkRemoved(actorID, domain.Now())
}

// Restore revives a removed reaction; CreatedAt moves to the restore time.
func (r *Reaction) Restore(actorID string) error {
	if actorID == "" {
		return domain.ErrEmptyActor
	}
	if err := r.ClearRemoval(); err != nil {
		return err
	}
	r.CreatedAt = domain.Now()
	return nil
}

func (r *Reaction) clone() *Reaction {
	c := *r
	if r.RemovedAt != nil {
		at := *r.RemovedAt
		c.RemovedAt = &at
	}
	if r.RemovedBy != nil {
		by := *r.RemovedBy
		c.RemovedBy = &by
	}
	return &c
}

func (r *Reaction) equal(o *Reaction) bool {
	return r.ID == o.ID && r.CreatedAt.Equal(o.CreatedAt) && r.SoftRemoval.Equal(o.SoftRemoval)
}
