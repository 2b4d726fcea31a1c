package repository

import (
	"context"

	"github.com/Gopher0727/ChatCore/internal/domain"
	"github.com/Gopher0727/ChatCore/internal/domain/file"
)

type FileRepository struct {
	uow *UnitOfWork
}

func fileShape(f *file.File) aggregateShape {
	return aggregateShape{
		root: func() any { return f },
		all:  func() []child { return nil },
	}
}

func (r *FileRepository) Add(f *file.File) {
	f.Checkpoint()
	r.uow.track(f, false, fileShape(f))
}

// Load reads and tracks a file. A deleted file is NotFound unless includeDeleted is set.
func (r *FileRepository) Load(ctx context.Context, id string, includeDeleted bool) (*file.File, error) {
	f, err := r.Find(ctx, id, includeDeleted)
	if err != nil {
		return nil, err
	}
	f.Checkpoint()
	r.uow.track(f, true, fileShape(f))
	return f, nil
}

// Find reads a file without tracking it.
func (r *FileRepository) Find(ctx context.Context, id string, includeDeleted bool) (*file.File, error) {
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Where("id = ?", id)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var f file.File
	if err := q.First(&f).Error; err != nil {
		return nil, translate(err, file.ErrFileNotFound)
	}
	return &f, nil
}

func (r *FileRepository) Update(f *file.File) {
	r.uow.track(f, true, fileShape(f)).dirty = true
}

// FindMany returns the files among ids, keyed by id. Missing ids are simply absent.
func (r *FileRepository) FindMany(ctx context.Context, ids []string, includeDeleted bool) (map[string]*file.File, error) {
	out := make(map[string]*file.File, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Where("id IN ?", ids)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var files []*file.File
	if err := q.Find(&files).Error; err != nil {
		return nil, translate(err, nil)
	}
	for _, f := range files {
		out[f.ID] = f
	}
	return out, nil
}

// ListByChannel returns files uploaded to a channel, newest first.
func (r *FileRepository) ListByChannel(ctx context.Context, channelID string, includeDeleted bool) ([]*file.File, error) {
	db, err := r.uow.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Where("channel_id = ?", channelID)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var out []*file.File
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, translate(err, nil)
	}
	return out, nil
}

var _ domain.Aggregate = (*file.File)(nil)
