package channel

import "github.com/Gopher0727/ChatCore/internal/domain"

const (
	EventCreated            = "channel.created"
	EventRenamed            = "channel.renamed"
	EventDescriptionChanged = "channel.description_changed"
	EventArchived           = "channel.archived"
	EventMemberAdded        = "channel.member_added"
	EventMemberRemoved      = "channel.member_removed"
	EventMemberRoleChanged  = "channel.member_role_changed"
)

type CreatedEvent struct {
	domain.EventBase
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	CreatedBy string `json:"created_by"`
}

func (CreatedEvent) EventType() string { return EventCreated }

type RenamedEvent struct {
	domain.EventBase
	OldName   string `json:"old_name"`
	NewName   string `json:"new_name"`
	RenamedBy string `json:"renamed_by"`
}

func (RenamedEvent) EventType() string { return EventRenamed }

type DescriptionChangedEvent struct {
	domain.EventBase
	Description string `json:"description"`
	ChangedBy   string `json:"changed_by"`
}

func (DescriptionChangedEvent) EventType() string { return EventDescriptionChanged }

type ArchivedEvent struct {
	domain.EventBase
	ArchivedBy string `json:"archived_by"`
}

func (ArchivedEvent) EventType() string { return EventArchived }

// MemberAddedEvent is raised for both new and restored memberships. Restored only
// feeds user-facing wording.
type MemberAddedEvent struct {
	domain.EventBase
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	AddedBy  string `json:"added_by"`
	Restored bool   `json:"restored"`
}

func (MemberAddedEvent) EventType() string { return EventMemberAdded }

type MemberRemovedEvent struct {
	domain.EventBase
	UserID    string `json:"user_id"`
	RemovedBy string `json:"removed_by"`
}

func (MemberRemovedEvent) EventType() string { return EventMemberRemoved }

type MemberRoleChangedEvent struct {
	domain.EventBase
	UserID    string `json:"user_id"`
	OldRole   Role   `json:"old_role"`
	NewRole   Role   `json:"new_role"`
	ChangedBy string `json:"changed_by"`
}

func (MemberRoleChangedEvent) EventType() string { return EventMemberRoleChanged }
