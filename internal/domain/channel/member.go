package channel

import (
	"time"

	"github.com/google/uuid"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

// Member is a user's membership in a channel. It is owned by the Channel and only
// reachable through it; ChannelID is a plain key, not a reference back to the root.
type Member struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ChannelID string `gorm:"not null;type:varchar(64);uniqueIndex:idx_channel_member" json:"channel_id"`
	UserID    string `gorm:"not null;type:varchar(64);uniqueIndex:idx_channel_member" json:"user_id"`
	Role      Role   `gorm:"not null;type:varchar(16)" json:"role"`
	AddedBy   string `gorm:"not null;type:varchar(64)" json:"added_by"`

	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
	domain.SoftRemoval
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	domain.Versioned
}

func (Member) TableName() string {
	return "channel_members"
}

// NewMember returns an active membership. Uniqueness among siblings is the
// channel's concern.
func NewMember(channelID, userID string, role Role, addedBy string) (*Member, error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}
	if addedBy == "" {
		return nil, domain.ErrEmptyActor
	}
	if !role.valid() {
		return nil, ErrInvalidRole
	}
	now := domain.Now()
	return &Member{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		UserID:    userID,
		Role:      role,
		AddedBy:   addedBy,
		JoinedAt:  now,
		UpdatedAt: now,
	}, nil
}

func (m *Member) IsActive() bool { return !m.IsRemoved }

func (m *Member) IsOwner() bool { return m.IsActive() && m.Role == RoleOwner }

// Remove soft-removes the membership.
func (m *Member) Remove(actorID string) error {
	if actorID == "" {
		return domain.ErrEmptyActor
	}
	now := domain.Now()
	if err := m.MarkRemoved(actorID, now); err != nil {
		return err
	}
	m.UpdatedAt = now
	return nil
}

// Restore revives a removed membership with the given role, whatever role it had
// before removal.
func (m *Member) Restore(actorID string, role Role) error {
	if actorID == "" {
		return domain.ErrEmptyActor
	}
	if !role.valid() {
		return ErrInvalidRole
	}
	if err := m.ClearRemoval(); err != nil {
		return err
	}
	now := domain.Now()
	m.Role = role
	m.AddedBy = actorID
	m.JoinedAt = now
	m.UpdatedAt = now
	return nil
}

func (m *Member) ChangeRole(role Role) error {
	if !role.valid() {
		return ErrInvalidRole
	}
	if m.IsRemoved {
		return domain.ErrAlreadyRemoved
	}
	m.Role = role
	m.UpdatedAt = domain.Now()
	return nil
}

func (m *Member) clone() *Member {
	c := *m
	if m.RemovedAt != nil {
		at := *m.RemovedAt
		c.RemovedAt = &at
	}
	if m.RemovedBy != nil {
		by := *m.RemovedBy
		c.RemovedBy = &by
	}
	return &c
}

func (m *Member) equal(o *Member) bool {
	return m.ID == o.ID &&
		m.Role == o.Role &&
		m.AddedBy == o.AddedBy &&
		m.JoinedAt.Equal(o.JoinedAt) &&
		m.UpdatedAt.Equal(o.UpdatedAt) &&
		m.SoftRemoval.Equal(o.SoftRemoval)
}
