package channel

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

// Channel is the aggregate root for a conversation space and its memberships.
type Channel struct {
	domain.AggregateRoot `gorm:"-" json:"-"`

	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type        Type       `gorm:"not null;type:varchar(16)" json:"type"`
	Name        Name       `gorm:"not null;type:varchar(80)" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	IsArchived  bool       `gorm:"not null;default:false" json:"is_archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedBy   string     `gorm:"not null;type:varchar(64)" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	domain.Versioned

	Members []*Member `gorm:"foreignKey:ChannelID" json:"-"`

	snapshot *snapshot
}

func (*Channel) TableName() string {
	return "channels"
}

type snapshot struct {
	name        Name
	description string
	isArchived  bool
	archivedAt  *time.Time
	updatedAt   time.Time
	version     int64
	members     map[string]*Member
}

// MemberChange reports what add-or-restore did so the caller can tell the store
// whether to insert or update the row.
type MemberChange struct {
	Member  *Member
	Outcome domain.Outcome
}

// New creates a channel with the creator as its first owner.
func New(name Name, typ Type, description, createdBy string) (*Channel, error) {
	if createdBy == "" {
		return nil, domain.ErrEmptyActor
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	if typ != TypePublic && typ != TypePrivate {
		return nil, ErrInvalidType
	}
	desc, err := validateDescription(description)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	owner, err := NewMember(id, createdBy, RoleOwner, createdBy)
	if err != nil {
		return nil, err
	}
	now := domain.Now()
	c := &Channel{
		ID:          id,
		Type:        typ,
		Name:        name,
		Description: desc,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members:     []*Member{owner},
	}
	c.Raise(CreatedEvent{
		EventBase: domain.NewEventBase(id),
		Name:      name.String(),
		Type:      typ,
		CreatedBy: createdBy,
	})
	return c, nil
}

// Owner returns the creator's membership; it is present from creation onwards.
func (c *Channel) Owner() *Member {
	return c.findMember(c.CreatedBy)
}

// ActiveMember returns the active membership of userID, if any.
func (c *Channel) ActiveMember(userID string) (*Member, bool) {
	m := c.findMember(userID)
	if m == nil || m.IsRemoved {
		return nil, false
	}
	return m, true
}

func (c *Channel) IsActiveMember(userID string) bool {
	_, ok := c.ActiveMember(userID)
	return ok
}

func (c *Channel) IsOwner(userID string) bool {
	m, ok := c.ActiveMember(userID)
	return ok && m.Role == RoleOwner
}

// ListMembers returns memberships ordered by JoinedAt. Removed ones are included
// only when asked for.
func (c *Channel) ListMembers(includeRemoved bool) []*Member {
	out := lo.Filter(c.Members, func(m *Member, _ int) bool {
		return includeRemoved || !m.IsRemoved
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// CanView reports whether userID may read the channel's content.
func (c *Channel) CanView(userID string) bool {
	if c.Type == TypePublic {
		return true
	}
	return c.IsActiveMember(userID)
}

// CanPost checks that userID may write messages into the channel.
func (c *Channel) CanPost(userID string) error {
	if c.IsArchived {
		return ErrChannelArchived
	}
	if !c.IsActiveMember(userID) {
		return ErrNotMember
	}
	return nil
}

// AddMember adds userID, or restores their removed membership with the given role.
func (c *Channel) AddMember(actorID, userID string, role Role) (MemberChange, error) {
	if actorID == "" {
		return MemberChange{}, domain.ErrEmptyActor
	}
	if userID == "" {
		return MemberChange{}, ErrEmptyUser
	}
	if !role.valid() {
		return MemberChange{}, ErrInvalidRole
	}
	if err := c.ensureWritable(); err != nil {
		return MemberChange{}, err
	}
	if err := c.authorizeAdd(actorID, userID, role); err != nil {
		return MemberChange{}, err
	}

	existing := c.findMember(userID)
	switch {
	case existing == nil:
		m, err := NewMember(c.ID, userID, role, actorID)
		if err != nil {
			return MemberChange{}, err
		}
		c.Members = append(c.Members, m)
		c.raiseMemberAdded(m, false)
		return MemberChange{Member: m, Outcome: domain.Created}, nil
	case existing.IsActive():
		return MemberChange{}, ErrMemberAlreadyExists
	default:
		if err := existing.Restore(actorID, role); err != nil {
			return MemberChange{}, err
		}
		c.raiseMemberAdded(existing, true)
		return MemberChange{Member: existing, Outcome: domain.Restored}, nil
	}
}

func (c *Channel) authorizeAdd(actorID, userID string, role Role) error {
	if role == RoleOwner && !c.IsOwner(actorID) {
		return ErrOwnerRequired
	}
	if c.IsActiveMember(actorID) {
		return nil
	}
	// non-members may only join public channels, and only themselves
	if c.Type == TypePublic && actorID == userID {
		return nil
	}
	return ErrNotMember
}

func (c *Channel) raiseMemberAdded(m *Member, restored bool) {
	c.touch()
	c.Raise(MemberAddedEvent{
		EventBase: domain.NewEventBase(c.ID),
		UserID:    m.UserID,
		Role:      m.Role,
		AddedBy:   m.AddedBy,
		Restored:  restored,
	})
}

// RemoveMember soft-removes userID. Members may remove themselves; removing
// anyone else takes an owner.
func (c *Channel) RemoveMember(actorID, userID string) (*Member, error) {
	if actorID == "" {
		return nil, domain.ErrEmptyActor
	}
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	if actorID != userID && !c.IsOwner(actorID) {
		return nil, ErrOwnerRequired
	}
	target, ok := c.ActiveMember(userID)
	if !ok {
		return nil, ErrMemberNotFound
	}
	if target.Role == RoleOwner && c.activeOwnerCount() == 1 {
		return nil, ErrLastOwner
	}
	if err := target.Remove(actorID); err != nil {
		return nil, err
	}
	c.touch()
	c.Raise(MemberRemovedEvent{
		EventBase: domain.NewEventBase(c.ID),
		UserID:    userID,
		RemovedBy: actorID,
	})
	return target, nil
}

// Leave removes the caller's own membership.
func (c *Channel) Leave(userID string) (*Member, error) {
	return c.RemoveMember(userID, userID)
}

// ChangeMemberRole sets the role of an active member. Setting the current role is a no-op.
func (c *Channel) ChangeMemberRole(actorID, userID string, role Role) (*Member, error) {
	if !role.valid() {
		return nil, ErrInvalidRole
	}
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	if !c.IsOwner(actorID) {
		return nil, ErrOwnerRequired
	}
	target, ok := c.ActiveMember(userID)
	if !ok {
		return nil, ErrMemberNotFound
	}
	if target.Role == role {
		return target, nil
	}
	if target.Role == RoleOwner && c.activeOwnerCount() == 1 {
		return nil, ErrLastOwner
	}
	old := target.Role
	if err := target.ChangeRole(role); err != nil {
		return nil, err
	}
	c.touch()
	c.Raise(MemberRoleChangedEvent{
		EventBase: domain.NewEventBase(c.ID),
		UserID:    userID,
		OldRole:   old,
		NewRole:   role,
		ChangedBy: actorID,
	})
	return target, nil
}

func (c *Channel) Rename(actorID string, name Name) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := c.ensureWritable(); err != nil {
		return err
	}
	if !c.IsOwner(actorID) {
		return ErrOwnerRequired
	}
	if name == c.Name {
		return nil
	}
	old := c.Name
	c.Name = name
	c.touch()
	c.Raise(RenamedEvent{
		EventBase: domain.NewEventBase(c.ID),
		OldName:   old.String(),
		NewName:   name.String(),
		RenamedBy: actorID,
	})
	return nil
}

func (c *Channel) ChangeDescription(actorID, description string) error {
	desc, err := validateDescription(description)
	if err != nil {
		return err
	}
	if err := c.ensureWritable(); err != nil {
		return err
	}
	if !c.IsOwner(actorID) {
		return ErrOwnerRequired
	}
	if desc == c.Description {
		return nil
	}
	c.Description = desc
	c.touch()
	c.Raise(DescriptionChangedEvent{
		EventBase:   domain.NewEventBase(c.ID),
		Description: desc,
		ChangedBy:   actorID,
	})
	return nil
}

// Archive closes the channel for writes. It cannot be undone.
func (c *Channel) Archive(actorID string) error {
	if err := c.ensureWritable(); err != nil {
		return err
	}
	if !c.IsOwner(actorID) {
		return ErrOwnerRequired
	}
	now := domain.Now()
	c.IsArchived = true
	c.ArchivedAt = &now
	c.UpdatedAt = now
	c.Raise(ArchivedEvent{
		EventBase:  domain.NewEventBase(c.ID),
		ArchivedBy: actorID,
	})
	return nil
}

func (c *Channel) Checkpoint() {
	s := &snapshot{
		name:        c.Name,
		description: c.Description,
		isArchived:  c.IsArchived,
		updatedAt:   c.UpdatedAt,
		version:     c.Version,
		members:     make(map[string]*Member, len(c.Members)),
	}
	if c.ArchivedAt != nil {
		at := *c.ArchivedAt
		s.archivedAt = &at
	}
	for _, m := range c.Members {
		s.members[m.ID] = m.clone()
	}
	c.snapshot = s
	c.MarkEvents()
}

// Revert restores the state captured by the last Checkpoint and drops the events
// queued since. Members created since then are dropped; surviving member
// pointers are reused.
func (c *Channel) Revert() {
	c.RevertEvents()
	s := c.snapshot
	if s == nil {
		return
	}
	c.Name = s.name
	c.Description = s.description
	c.IsArchived = s.isArchived
	c.ArchivedAt = s.archivedAt
	c.UpdatedAt = s.updatedAt
	c.Version = s.version

	kept := c.Members[:0]
	for _, m := range c.Members {
		prev, ok := s.members[m.ID]
		if !ok {
			continue
		}
		*m = *prev.clone()
		kept = append(kept, m)
	}
	c.Members = kept
}

func (c *Channel) Savepoint() domain.Savepoint { return c.SavepointOf(c.snapshot) }

func (c *Channel) RevertTo(sp domain.Savepoint) {
	c.snapshot, _ = sp.State.(*snapshot)
	c.RestoreEvents(sp.Events)
	c.Revert()
}

// MemberChanges compares members with the last Checkpoint: added were unknown
// then, modified differ from their checkpointed state.
func (c *Channel) MemberChanges() (added, modified []*Member) {
	for _, m := range c.Members {
		if c.snapshot == nil {
			added = append(added, m)
			continue
		}
		prev, ok := c.snapshot.members[m.ID]
		switch {
		case !ok:
			added = append(added, m)
		case !prev.equal(m):
			modified = append(modified, m)
		}
	}
	return added, modified
}

func (c *Channel) ensureWritable() error {
	if c.IsArchived {
		return ErrChannelArchived
	}
	return nil
}

func (c *Channel) findMember(userID string) *Member {
	m, ok := lo.Find(c.Members, func(m *Member) bool {
		return m.UserID == userID
	})
	if !ok {
		return nil
	}
	return m
}

func (c *Channel) activeOwnerCount() int {
	return lo.CountBy(c.Members, func(m *Member) bool {
		return m.IsOwner()
	})
}

func (c *Channel) touch() {
	c.UpdatedAt = domain.Now()
}
