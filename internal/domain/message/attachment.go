package message

import (
	"time"

	"github.com/google/uuid"
)

// Attachment links a message to an uploaded file. It is written with the message
// and never changes afterwards.
type Attachment struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MessageID   string `gorm:"not null;index;type:varchar(64)" json:"message_id"`
	FileID      string `gorm:"not null;type:varchar(64)" json:"file_id"`
	FileName    string `gorm:"not null;type:varchar(255)" json:"file_name"`
	ContentType string `gorm:"type:varchar(255)" json:"content_type"`
	Size        int64  `gorm:"not null" json:"size"`

	CreatedAt time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "message_attachments"
}

// AttachmentSpec describes a file to attach when sending.
type AttachmentSpec struct {
	FileID      string
	FileName    string
	ContentType string
	Size        int64
}

func newAttachment(messageID string, spec AttachmentSpec, at time.Time) *Attachment {
	return &Attachment{
		ID:          uuid.New().String(),
		MessageID:   messageID,
		FileID:      spec.FileID,
		FileName:    spec.FileName,
		ContentType: spec.ContentType,
		Size:        spec.Size,
		CreatedAt:   at,
	}
}
