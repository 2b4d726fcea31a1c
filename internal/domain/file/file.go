package file

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

// File is an uploaded blob's metadata. The bytes live in external storage under StorageKey.
type File struct {
	domain.AggregateRoot `gorm:"-" json:"-"`

	ID          string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UploadedBy  string  `gorm:"not null;type:varchar(64);index" json:"uploaded_by"`
	ChannelID   *string `gorm:"type:varchar(64);index" json:"channel_id,omitempty"`
	Name        string  `gorm:"not null;type:varchar(255)" json:"name"`
	ContentType string  `gorm:"type:varchar(255)" json:"content_type"`
	Size        Size    `gorm:"not null" json:"size"`
	StorageKey  string  `gorm:"not null;type:varchar(255)" json:"-"`
	domain.SoftDeletion

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	domain.Versioned

	snapshot *snapshot
}

func (File) TableName() string {
	return "files"
}

type snapshot struct {
	deletion  domain.SoftDeletion
	updatedAt time.Time
	version   int64
}

func New(uploadedBy string, channelID *string, name, contentType string, size Size) (*File, error) {
	if uploadedBy == "" {
		return nil, ErrEmptyUploader
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if _, err := NewSize(size.Int64()); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := uuid.New().String()
	now := domain.Now()
	f := &File{
		ID:          id,
		UploadedBy:  uploadedBy,
		ChannelID:   channelID,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		StorageKey:  fmt.Sprintf("files/%s/%s", uploadedBy, id),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.Raise(UploadedEvent{
		EventBase:  domain.NewEventBase(id),
		UploadedBy: uploadedBy,
		ChannelID:  channelID,
		Name:       name,
		Size:       size.Int64(),
	})
	return f, nil
}

func (f *File) Delete(actorID string) error {
	if actorID != f.UploadedBy {
		return ErrNotUploader
	}
	now := domain.Now()
	if err := f.MarkDeleted(actorID, now); err != nil {
		return ErrFileDeleted
	}
	f.UpdatedAt = now
	f.Raise(DeletedEvent{EventBase: domain.NewEventBase(f.ID), DeletedBy: actorID})
	return nil
}

// Restore undoes Delete. It fails unless the file is currently deleted.
func (f *File) Restore(actorID string) error {
	if actorID != f.UploadedBy {
		return ErrNotUploader
	}
	if err := f.ClearDeletion(); err != nil {
		return ErrFileNotDeleted
	}
	f.UpdatedAt = domain.Now()
	f.Raise(RestoredEvent{EventBase: domain.NewEventBase(f.ID), RestoredBy: actorID})
	return nil
}

// AttachableBy reports whether userID may attach the file to a message.
func (f *File) AttachableBy(userID string) bool {
	return !f.IsDeleted && f.UploadedBy == userID
}

func (f *File) Checkpoint() {
	f.snapshot = &snapshot{deletion: f.SoftDeletion, updatedAt: f.UpdatedAt, version: f.Version}
	f.MarkEvents()
}

func (f *File) Revert() {
	f.RevertEvents()
	if f.snapshot == nil {
		return
	}
	f.SoftDeletion = f.snapshot.deletion
	f.UpdatedAt = f.snapshot.updatedAt
	f.Version = f.snapshot.version
}

func (f *File) Savepoint() domain.Savepoint { return f.SavepointOf(f.snapshot) }

func (f *File) RevertTo(sp domain.Savepoint) {
	f.snapshot, _ = sp.State.(*snapshot)
	f.RestoreEvents(sp.Events)
	f.Revert()
}
