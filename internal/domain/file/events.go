package file

import "github.com/Gopher0727/ChatCore/internal/domain"

const (
	EventUploaded = "file.uploaded"
	EventDeleted  = "file.deleted"
	EventRestored = "file.restored"
)

type UploadedEvent struct {
	domain.EventBase
	UploadedBy string  `json:"uploaded_by"`
	ChannelID  *string `json:"channel_id,omitempty"`
	Name       string  `json:"name"`
	Size       int64   `json:"size"`
}

func (UploadedEvent) EventType() string { return EventUploaded }

type DeletedEvent struct {
	domain.EventBase
	DeletedBy string `json:"deleted_by"`
}

func (DeletedEvent) EventType() string { return EventDeleted }

type RestoredEvent struct {
	domain.EventBase
	RestoredBy string `json:"restored_by"`
}

func (RestoredEvent) EventType() string { return EventRestored }
