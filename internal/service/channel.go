package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain/channel"
	"github.com/Gopher0727/ChatCore/internal/repository"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// CreateChannelRequest represents a request to create a channel
type CreateChannelRequest struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Description string `json:"description"`
}

// UpdateChannelRequest changes the fields that are set
type UpdateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AddMemberRequest adds a user, or brings back a removed one. Role defaults to member.
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// IChannelService defines the channel commands and queries
type IChannelService interface {
	CreateChannel(ctx context.Context, actorID string, req *CreateChannelRequest) (*channel.Channel, error)
	GetChannel(ctx context.Context, actorID, channelID string) (*channel.Channel, error)
	ListChannels(ctx context.Context, actorID string) ([]*channel.Channel, error)
	UpdateChannel(ctx context.Context, actorID, channelID string, req *UpdateChannelRequest) (*channel.Channel, error)
	ArchiveChannel(ctx context.Context, actorID, channelID string) (*channel.Channel, error)

	ListMembers(ctx context.Context, actorID, channelID string, includeRemoved bool) ([]*channel.Member, error)
	AddMember(ctx context.Context, actorID, channelID string, req *AddMemberRequest) (*channel.Member, error)
	RemoveMember(ctx context.Context, actorID, channelID, userID string) (*channel.Member, error)
	ChangeMemberRole(ctx context.Context, actorID, channelID, userID string, req *ChangeRoleRequest) (*channel.Member, error)
}

// ChannelService implements the IChannelService interface
type ChannelService struct {
	uows *repository.Factory
	log  *zap.Logger
}

// NewChannelService creates a new IChannelService instance
func NewChannelService(uows *repository.Factory, log *zap.Logger) IChannelService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChannelService{uows: uows, log: log.Named("channel")}
}

// CreateChannel creates a channel with the caller as its owner
func (s *ChannelService) CreateChannel(ctx context.Context, actorID string, req *CreateChannelRequest) (*channel.Channel, error) {
	name, err := channel.NewName(req.Name)
	if err != nil {
		return nil, err
	}
	typ, err := channel.ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	ch, err := channel.New(name, typ, req.Description, actorID)
	if err != nil {
		return nil, err
	}

	uow := s.uows.New()
	uow.Channels().Add(ch)
	if err := uow.Save(ctx); err != nil {
		return nil, err
	}

	logger.WithContext(s.log, ctx).Info("channel created",
		zap.String("channel_id", ch.ID),
		zap.String("type", string(ch.Type)),
		zap.String("created_by", actorID),
	)
	return ch, nil
}

// GetChannel returns a channel the caller may see
func (s *ChannelService) GetChannel(ctx context.Context, actorID, channelID string) (*channel.Channel, error) {
	ch, err := s.uows.New().Channels().Load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.CanView(actorID) {
		return nil, channel.ErrNotMember
	}
	return ch, nil
}

// ListChannels returns the channels the caller is an active member of
func (s *ChannelService) ListChannels(ctx context.Context, actorID string) ([]*channel.Channel, error) {
	return s.uows.New().Channels().ListForUser(ctx, actorID)
}

// UpdateChannel renames and/or re-describes the channel in one save
func (s *ChannelService) UpdateChannel(ctx context.Context, actorID, channelID string, req *UpdateChannelRequest) (*channel.Channel, error) {
	var name channel.Name
	if req.Name != nil {
		var err error
		if name, err = channel.NewName(*req.Name); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, channelID, func(ch *channel.Channel) error {
		if req.Name != nil {
			if err := ch.Rename(actorID, name); err != nil {
				return err
			}
		}
		if req.Description != nil {
			if err := ch.ChangeDescription(actorID, *req.Description); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ChannelService) ArchiveChannel(ctx context.Context, actorID, channelID string) (*channel.Channel, error) {
	return s.mutate(ctx, channelID, func(ch *channel.Channel) error {
		return ch.Archive(actorID)
	})
}

// ListMembers returns memberships by join time. Removed ones are included on request.
func (s *ChannelService) ListMembers(ctx context.Context, actorID, channelID string, includeRemoved bool) ([]*channel.Member, error) {
	ch, err := s.GetChannel(ctx, actorID, channelID)
	if err != nil {
		return nil, err
	}
	return ch.ListMembers(includeRemoved), nil
}

// AddMember adds a user, restoring their old membership if there is one
func (s *ChannelService) AddMember(ctx context.Context, actorID, channelID string, req *AddMemberRequest) (*channel.Member, error) {
	role, err := channel.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	// the membership read and the add-or-restore write share one transaction
	var change channel.MemberChange
	uow := s.uows.New()
	err = uow.WithTransaction(ctx, func(ctx context.Context) error {
		ch, err := uow.Channels().Load(ctx, channelID)
		if err != nil {
			return err
		}
		change, err = ch.AddMember(actorID, req.UserID, role)
		if err != nil {
			return err
		}
		uow.Channels().TrackMember(ch, change)
		return uow.Save(ctx)
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(s.log, ctx).Info("member added",
		zap.String("channel_id", channelID),
		zap.String("user_id", req.UserID),
		zap.Stringer("outcome", change.Outcome),
	)
	return change.Member, nil
}

// RemoveMember removes userID; when userID is the caller this is leaving
func (s *ChannelService) RemoveMember(ctx context.Context, actorID, channelID, userID string) (*channel.Member, error) {
	var removed *channel.Member
	_, err := s.mutate(ctx, channelID, func(ch *channel.Channel) error {
		m, err := ch.RemoveMember(actorID, userID)
		removed = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *ChannelService) ChangeMemberRole(ctx context.Context, actorID, channelID, userID string, req *ChangeRoleRequest) (*channel.Member, error) {
	role, err := channel.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	var changed *channel.Member
	_, err = s.mutate(ctx, channelID, func(ch *channel.Channel) error {
		m, err := ch.ChangeMemberRole(actorID, userID, role)
		changed = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// mutate loads a channel, applies fn and saves. Nothing is written when fn fails.
func (s *ChannelService) mutate(ctx context.Context, channelID string, fn func(ch *channel.Channel) error) (*channel.Channel, error) {
	uow := s.uows.New()
	ch, err := uow.Channels().Load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := fn(ch); err != nil {
		return nil, err
	}
	uow.Channels().Update(ch)
	if err := uow.Save(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}
