package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/domain/message"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type MessageRepository struct {
	uow *UnitOfWork
}

func messageShape(m *message.Message) aggregateShape {
	reactions := func(rs []*message.Reaction) []child {
		out := make([]child, 0, len(rs))
		for _, r := range rs {
			out = append(out, child{id: r.ID, row: r})
		}
		return out
	}
	return aggregateShape{
		root: func() any { return m },
		all: func() []child {
			out := reactions(m.Reactions)
			for _, a := range m.Attachments {
				out = append(out, child{id: a.ID, row: a})
			}
			return out
		},
		changes: func() (added, modified []child) {
			a, mod := m.ReactionChanges()
			return reactions(a), reactions(mod)
		},
	}
}

func (r *MessageRepository) Add(m *message.Message) {
	m.Checkpoint()
	r.uow.track(m, false, messageShape(m))
}

// Load reads a message with every reaction and attachment and tracks it.
// A deleted message is NotFound unless includeDeleted is set.
func (r *MessageRepository) Load(ctx context.Context, id string, includeDeleted bool) (*message.Message, error) {
	m, err := r.find(ctx, id, includeDeleted)
	if err != nil {
		return nil, err
	}
	m.Checkpoint()
	r.uow.track(m, true, messageShape(m))
	return m, nil
}

// Find is Load without tracking, for reads.
func (r *MessageRepository) Find(ctx context.Context, id string, includeDeleted bool) (*message.Message, error) {
	return r.find(ctx, id, includeDeleted)
}

func (r *MessageRepository) find(ctx context.Context, id string, includeDeleted bool) (*message.Message, error) {
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Preload("Reactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Preload("Attachments").Where("id = ?", id)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var m message.Message
	if err := q.First(&m).Error; err != nil {
		return nil, translate(err, message.ErrMessageNotFound)
	}
	return &m, nil
}

func (r *MessageRepository) Update(m *message.Message) {
	r.uow.track(m, true, messageShape(m)).dirty = true
}

// TrackReaction records how add-or-restore changed a reaction.
func (r *MessageRepository) TrackReaction(m *message.Message, change message.ReactionChange) {
	e := r.uow.entryFor(m)
	if e == nil {
		e = r.uow.track(m, true, messageShape(m))
	}
	e.outcomes[change.Reaction.ID] = change.Outcome
}

// Page selects messages of one channel by sequence.
type Page struct {
	AfterSeq       int64
	Limit          int
	IncludeDeleted bool
}

// Normalize clamps Limit into [1, MaxPageSize], defaulting to DefaultPageSize.
func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	if p.AfterSeq < 0 {
		p.AfterSeq = 0
	}
	return p
}

// List returns a channel's messages with SeqID > AfterSeq in sequence order,
// with active reactions and attachments. Results are not tracked.
func (r *MessageRepository) List(ctx context.Context, channelID string, page Page) ([]*message.Message, error) {
	page = page.Normalize()
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Preload("Reactions", "is_removed = ?", false).
		Preload("Attachments").
		Where("channel_id = ? AND seq_id > ?", channelID, page.AfterSeq)
	if !page.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var out []*message.Message
	if err := q.Order("seq_id ASC").Limit(page.Limit).Find(&out).Error; err != nil {
		return nil, translate(err, nil)
	}
	return out, nil
}

var _ domain.Aggregate = (*message.Message)(nil)

// LastSeq returns the highest SeqID stored for a channel, deleted messages
// included, or 0 for an empty channel.
func (r *MessageRepository) LastSeq(ctx context.Context, channelID string) (int64, error) {
	db, err := r.uow.conn(ctx)
	if err != nil {
		return 0, err
	}
	var last int64
	err = db.Model(&message.Message{}).
		Where("channel_id = ?", channelID).
		Select("COALESCE(MAX(seq_id), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, translate(err, nil)
	}
	return last, nil
}
