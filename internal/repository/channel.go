package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/domain/channel"
)

// ChannelRepository loads and tracks Channel aggregates. Channels are never
// deleted, so there is no includeDeleted switch.
type ChannelRepository struct {
	uow *UnitOfWork
}

func channelShape(ch *channel.Channel) aggregateShape {
	toChildren := func(ms []*channel.Member) []child {
		out := make([]child, 0, len(ms))
		for _, m := range ms {
			out = append(out, child{id: m.ID, row: m})
		}
		return out
	}
	return aggregateShape{
		root: func() any { return ch },
		all:  func() []child { return toChildren(ch.Members) },
		changes: func() (added, modified []child) {
			a, m := ch.MemberChanges()
			return toChildren(a), toChildren(m)
		},
	}
}

// Add tracks a new channel; Save inserts it with its members.
func (r *ChannelRepository) Add(ch *channel.Channel) {
	ch.Checkpoint()
	r.uow.track(ch, false, channelShape(ch))
}

// Load reads a channel with all its memberships, removed ones included, and
// tracks it.
func (r *ChannelRepository) Load(ctx context.Context, id string) (*channel.Channel, error) {
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	var ch channel.Channel
	err = db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	}).Where("id = ?", id).First(&ch).Error
	if err != nil {
		return nil, translate(err, channel.ErrChannelNotFound)
	}
	ch.Checkpoint()
	r.uow.track(&ch, true, channelShape(&ch))
	return &ch, nil
}

// Update marks the channel row for rewriting on the next Save.
func (r *ChannelRepository) Update(ch *channel.Channel) {
	r.uow.track(ch, true, channelShape(ch)).dirty = true
}

// TrackMember records how add-or-restore changed a membership: a Created
// member is inserted, a Restored one updated in place.
func (r *ChannelRepository) TrackMember(ch *channel.Channel, change channel.MemberChange) {
	e := r.uow.entryFor(ch)
	if e == nil {
		e = r.uow.track(ch, true, channelShape(ch))
	}
	e.outcomes[change.Member.ID] = change.Outcome
}

// ListForUser returns the channels userID is an active member of, untracked.
func (r *ChannelRepository) ListForUser(ctx context.Context, userID string) ([]*channel.Channel, error) {
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []*channel.Channel
	err = db.Where("id IN (?)", db.Model(&channel.Member{}).
		Select("channel_id").
		Where("user_id = ? AND is_removed = ?", userID, false)).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, nil)
	}
	return out, nil
}

var _ domain.Aggregate = (*channel.Channel)(nil)
