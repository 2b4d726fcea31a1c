package service

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain/channel"
	"github.com/Gopher0727/ChatCore/internal/domain/file"
	"github.com/Gopher0727/ChatCore/internal/domain/message"
	"github.com/Gopher0727/ChatCore/internal/repository"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// SendMessageRequest represents a request to post a message
type SendMessageRequest struct {
	Content  string   `json:"content" binding:"required"`
	ParentID *string  `json:"parent_id"`
	FileIDs  []string `json:"file_ids"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListMessagesRequest pages through a channel by sequence number
type ListMessagesRequest struct {
	AfterSeq       int64 `form:"after_seq"`
	Limit          int   `form:"limit"`
	IncludeDeleted bool  `form:"include_deleted"`
}

// MessageView is a message as readers see it: deleted content is replaced by a
// placeholder and reactions are counted per emoji.
type MessageView struct {
	ID          string                `json:"id"`
	ChannelID   string                `json:"channel_id"`
	SenderID    string                `json:"sender_id"`
	Content     string                `json:"content"`
	ParentID    *string               `json:"parent_id,omitempty"`
	SeqID       int64                 `json:"seq_id"`
	IsDeleted   bool                  `json:"is_deleted"`
	EditedAt    *time.Time            `json:"edited_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	Reactions   map[message.Emoji]int `json:"reactions"`
	Attachments []*message.Attachment `json:"attachments"`
}

func NewMessageView(m *message.Message) *MessageView {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []*message.Attachment{}
	}
	return &MessageView{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		SenderID:    m.SenderID,
		Content:     m.DisplayContent(),
		ParentID:    m.ParentID,
		SeqID:       m.SeqID,
		IsDeleted:   m.IsDeleted,
		EditedAt:    m.EditedAt,
		CreatedAt:   m.CreatedAt,
		Reactions:   m.ReactionCounts(),
		Attachments: attachments,
	}
}

// MessagePage is one page of a channel's history
type MessagePage struct {
	Messages []*MessageView `json:"messages"`
	// NextSeq is the cursor for the following page
	NextSeq int64 `json:"next_seq"`
	HasMore bool  `json:"has_more"`
}

// IMessageService defines the message commands and queries
type IMessageService interface {
	SendMessage(ctx context.Context, actorID, channelID string, req *SendMessageRequest) (*MessageView, error)
	EditMessage(ctx context.Context, actorID, messageID string, req *EditMessageRequest) (*MessageView, error)
	DeleteMessage(ctx context.Context, actorID, messageID string) error
	AddReaction(ctx context.Context, actorID, messageID, emoji string) (*MessageView, error)
	RemoveReaction(ctx context.Context, actorID, messageID, emoji string) (*MessageView, error)
	ListMessages(ctx context.Context, actorID, channelID string, req *ListMessagesRequest) (*MessagePage, error)
}

// MessageService implements the IMessageService interface
type MessageService struct {
	uows *repository.Factory
	seq  SeqGenerator
	ids  IDGenerator
	log  *zap.Logger
}

// NewMessageService creates a new IMessageService instance
func NewMessageService(uows *repository.Factory, seq SeqGenerator, ids IDGenerator, log *zap.Logger) IMessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{uows: uows, seq: seq, ids: ids, log: log.Named("message")}
}

// SendMessage posts a message into a channel the caller is an active member of.
// A thread parent must be a message of the same channel; attachments must
// be live files uploaded by the caller.
func (s *MessageService) SendMessage(ctx context.Context, actorID, channelID string, req *SendMessageRequest) (*MessageView, error) {
	content, err := message.NewContent(req.Content)
	if err != nil {
		return nil, err
	}

	uow := s.uows.New()
	ch, err := uow.Channels().Load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := ch.CanPost(actorID); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		// replies to a deleted message are fine; it keeps anchoring its thread
		parent, err := uow.Messages().Find(ctx, *req.ParentID, true)
		if err != nil {
			if errors.Is(err, message.ErrMessageNotFound) {
				return nil, message.ErrParentNotFound
			}
			return nil, err
		}
		if parent.ChannelID != channelID {
			return nil, message.ErrParentNotFound
		}
	}

	attachments, err := s.attachments(ctx, uow, actorID, req.FileIDs)
	if err != nil {
		return nil, err
	}

	seqID, err := s.seq.NextSeqID(ctx, channelID)
	if err != nil {
		return nil, wrapInternal("failed to allocate sequence id", err)
	}
	id, err := s.ids.NextString()
	if err != nil {
		return nil, wrapInternal("failed to generate message id", err)
	}

	m, err := message.New(id, channelID, actorID, content, req.ParentID, seqID, attachments)
	if err != nil {
		return nil, err
	}
	uow.Messages().Add(m)
	if err := uow.Save(ctx); err != nil {
		return nil, err
	}

	logger.WithContext(s.log, ctx).Debug("message sent",
		zap.String("message_id", m.ID),
		zap.String("channel_id", channelID),
		zap.Int64("seq_id", seqID),
	)
	return NewMessageView(m), nil
}

func (s *MessageService) attachments(ctx context.Context, uow *repository.UnitOfWork, actorID string, fileIDs []string) ([]message.AttachmentSpec, error) {
	ids := lo.Uniq(lo.Compact(fileIDs))
	if len(ids) == 0 {
		return nil, nil
	}
	files, err := uow.Files().FindMany(ctx, ids, false)
	if err != nil {
		return nil, err
	}

	specs := make([]message.AttachmentSpec, 0, len(ids))
	for _, id := range ids {
		f, ok := files[id]
		if !ok {
			return nil, file.ErrFileNotFound
		}
		if !f.AttachableBy(actorID) {
			return nil, file.ErrNotUploader
		}
		specs = append(specs, message.AttachmentSpec{
			FileID:      f.ID,
			FileName:    f.Name,
			ContentType: f.ContentType,
			Size:        f.Size.Int64(),
		})
	}
	return specs, nil
}

// EditMessage replaces the content; only the sender may do so
func (s *MessageService) EditMessage(ctx context.Context, actorID, messageID string, req *EditMessageRequest) (*MessageView, error) {
	content, err := message.NewContent(req.Content)
	if err != nil {
		return nil, err
	}
	m, err := s.mutate(ctx, messageID, func(_ *channel.Channel, m *message.Message) error {
		return m.Edit(actorID, content)
	})
	if err != nil {
		return nil, err
	}
	return NewMessageView(m), nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	_, err := s.mutate(ctx, messageID, func(_ *channel.Channel, m *message.Message) error {
		return m.Delete(actorID)
	})
	return err
}

// AddReaction adds the caller's emoji, reviving it if it was removed before.
// Reacting takes an active membership.
func (s *MessageService) AddReaction(ctx context.Context, actorID, messageID, emoji string) (*MessageView, error) {
	e, err := message.NewEmoji(emoji)
	if err != nil {
		return nil, err
	}

	var m *message.Message
	uow := s.uows.New()
	err = uow.WithTransaction(ctx, func(ctx context.Context) error {
		loaded, ch, err := s.load(ctx, uow, messageID)
		if err != nil {
			return err
		}
		if err := ch.CanPost(actorID); err != nil {
			return err
		}
		change, err := loaded.AddReaction(actorID, e)
		if err != nil {
			return err
		}
		uow.Messages().TrackReaction(loaded, change)
		m = loaded
		return uow.Save(ctx)
	})
	if err != nil {
		return nil, err
	}
	return NewMessageView(m), nil
}

// RemoveReaction removes the caller's own emoji
func (s *MessageService) RemoveReaction(ctx context.Context, actorID, messageID, emoji string) (*MessageView, error) {
	e, err := message.NewEmoji(emoji)
	if err != nil {
		return nil, err
	}
	m, err := s.mutate(ctx, messageID, func(_ *channel.Channel, m *message.Message) error {
		_, err := m.RemoveReaction(actorID, actorID, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return NewMessageView(m), nil
}

// ListMessages returns a page of history. Private channels are readable by
// active members only.
func (s *MessageService) ListMessages(ctx context.Context, actorID, channelID string, req *ListMessagesRequest) (*MessagePage, error) {
	uow := s.uows.New()
	ch, err := uow.Channels().Load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.CanView(actorID) {
		return nil, channel.ErrNotMember
	}

	page := repository.Page{
		AfterSeq:       req.AfterSeq,
		Limit:          req.Limit,
		IncludeDeleted: req.IncludeDeleted,
	}.Normalize()
	msgs, err := uow.Messages().List(ctx, channelID, page)
	if err != nil {
		return nil, err
	}

	out := &MessagePage{
		Messages: lo.Map(msgs, func(m *message.Message, _ int) *MessageView {
			return NewMessageView(m)
		}),
		NextSeq: page.AfterSeq,
		HasMore: len(msgs) == page.Limit,
	}
	if n := len(msgs); n > 0 {
		out.NextSeq = msgs[n-1].SeqID
	}
	return out, nil
}

// load reads a message, deleted ones included so writes on them fail as
// InvalidState, together with its channel. Writes into archived channels are
// rejected.
func (s *MessageService) load(ctx context.Context, uow *repository.UnitOfWork, messageID string) (*message.Message, *channel.Channel, error) {
	m, err := uow.Messages().Load(ctx, messageID, true)
	if err != nil {
		return nil, nil, err
	}
	ch, err := uow.Channels().Load(ctx, m.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	if ch.IsArchived {
		return nil, nil, channel.ErrChannelArchived
	}
	return m, ch, nil
}

func (s *MessageService) mutate(ctx context.Context, messageID string, fn func(ch *channel.Channel, m *message.Message) error) (*message.Message, error) {
	uow := s.uows.New()
	m, ch, err := s.load(ctx, uow, messageID)
	if err != nil {
		return nil, err
	}
	if err := fn(ch, m); err != nil {
		return nil, err
	}
	uow.Messages().Update(m)
	if err := uow.Save(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
