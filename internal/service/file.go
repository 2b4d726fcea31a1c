package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/domain/channel"
	"github.com/Gopher0727/ChatCore/internal/domain/file"
	"github.com/Gopher0727/ChatCore/internal/repository"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// UploadFileRequest registers an uploaded blob's metadata
type UploadFileRequest struct {
	Name        string  `json:"name" binding:"required"`
	ContentType string  `json:"content_type"`
	Size        int64   `json:"size" binding:"required"`
	ChannelID   *string `json:"channel_id"`
}

// IFileService defines the file commands and queries
type IFileService interface {
	UploadFile(ctx context.Context, actorID string, req *UploadFileRequest) (*file.File, error)
	GetFile(ctx context.Context, actorID, fileID string) (*file.File, error)
	DeleteFile(ctx context.Context, actorID, fileID string) (*file.File, error)
	RestoreFile(ctx context.Context, actorID, fileID string) (*file.File, error)
	ListChannelFiles(ctx context.Context, actorID, channelID string, includeDeleted bool) ([]*file.File, error)
}

type FileService struct {
	uows *repository.Factory
	log  *zap.Logger
}

func NewFileService(uows *repository.Factory, log *zap.Logger) IFileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileService{uows: uows, log: log.Named("file")}
}

// UploadFile records a file. Files bound to a channel need posting rights there.
func (s *FileService) UploadFile(ctx context.Context, actorID string, req *UploadFileRequest) (*file.File, error) {
	size, err := file.NewSize(req.Size)
	if err != nil {
		return nil, err
	}

	uow := s.uows.New()
	if req.ChannelID != nil {
		ch, err := uow.Channels().Load(ctx, *req.ChannelID)
		if err != nil {
			return nil, err
		}
		if err := ch.CanPost(actorID); err != nil {
			return nil, err
		}
	}

	f, err := file.New(actorID, req.ChannelID, req.Name, req.ContentType, size)
	if err != nil {
		return nil, err
	}
	uow.Files().Add(f)
	if err := uow.Save(ctx); err != nil {
		return nil, err
	}

	logger.WithContext(s.log, ctx).Info("file uploaded",
		zap.String("file_id", f.ID),
		zap.String("storage_key", f.StorageKey),
		zap.Int64("size", f.Size.Int64()),
	)
	return f, nil
}

// GetFile returns a live file to its uploader or to whoever may view its channel
func (s *FileService) GetFile(ctx context.Context, actorID, fileID string) (*file.File, error) {
	uow := s.uows.New()
	f, err := uow.Files().Find(ctx, fileID, false)
	if err != nil {
		return nil, err
	}
	if f.UploadedBy == actorID {
		return f, nil
	}
	if f.ChannelID == nil {
		return nil, file.ErrNotUploader
	}
	ch, err := uow.Channels().Load(ctx, *f.ChannelID)
	if err != nil {
		return nil, err
	}
	if !ch.CanView(actorID) {
		return nil, channel.ErrNotMember
	}
	return f, nil
}

func (s *FileService) DeleteFile(ctx context.Context, actorID, fileID string) (*file.File, error) {
	return s.mutate(ctx, fileID, func(f *file.File) error {
		return f.Delete(actorID)
	})
}

func (s *FileService) RestoreFile(ctx context.Context, actorID, fileID string) (*file.File, error) {
	return s.mutate(ctx, fileID, func(f *file.File) error {
		return f.Restore(actorID)
	})
}

// ListChannelFiles lists a channel's files, newest first
func (s *FileService) ListChannelFiles(ctx context.Context, actorID, channelID string, includeDeleted bool) ([]*file.File, error) {
	uow := s.uows.New()
	ch, err := uow.Channels().Load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.CanView(actorID) {
		return nil, channel.ErrNotMember
	}
	return uow.Files().ListByChannel(ctx, channelID, includeDeleted)
}

// mutate loads the file, deleted or not, so that state errors come from the aggregate
func (s *FileService) mutate(ctx context.Context, fileID string, fn func(f *file.File) error) (*file.File, error) {
	uow := s.uows.New()
	f, err := uow.Files().Load(ctx, fileID, true)
	if err != nil {
		return nil, err
	}
	if err := fn(f); err != nil {
		return nil, err
	}
	uow.Files().Update(f)
	if err := uow.Save(ctx); err != nil {
		return nil, err
	}
	return f, nil
}
