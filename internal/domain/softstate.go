package domain

import "time"

// SoftRemoval is the removal bookkeeping shared by owned child entities
// (channel members, message reactions). gorm flattens it into the owner's table.
type SoftRemoval struct {
	IsRemoved bool       `gorm:"not null;default:false;index" json:"is_removed"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
	RemovedBy *string    `gorm:"type:varchar(64)" json:"removed_by,omitempty"`
}

// MarkRemoved flips the record to removed. It fails if it already is.
func (s *SoftRemoval) MarkRemoved(actorID string, at time.Time) error {
	if s.IsRemoved {
		return ErrAlreadyRemoved
	}
	s.IsRemoved = true
	s.RemovedAt = &at
	s.RemovedBy = &actorID
	return nil
}

// ClearRemoval revives a removed record. It fails if the record is active.
func (s *SoftRemoval) ClearRemoval() error {
	if !s.IsRemoved {
		return ErrNotRemoved
	}
	s.IsRemoved = false
	s.RemovedAt = nil
	s.RemovedBy = nil
	return nil
}

// Equal compares removal state by value.
func (s SoftRemoval) Equal(o SoftRemoval) bool {
	return s.IsRemoved == o.IsRemoved && timePtrEqual(s.RemovedAt, o.RemovedAt) && strPtrEqual(s.RemovedBy, o.RemovedBy)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SoftDeletion is the deletion bookkeeping of soft-deleted aggregate roots
// (messages, files). Reads filter on IsDeleted explicitly; there is no global scope.
type SoftDeletion struct {
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `gorm:"type:varchar(64)" json:"deleted_by,omitempty"`
}

func (s *SoftDeletion) MarkDeleted(actorID string, at time.Time) error {
	if s.IsDeleted {
		return ErrAlreadyDeleted
	}
	s.IsDeleted = true
	s.DeletedAt = &at
	s.DeletedBy = &actorID
	return nil
}

func (s *SoftDeletion) ClearDeletion() error {
	if !s.IsDeleted {
		return ErrNotDeleted
	}
	s.IsDeleted = false
	s.DeletedAt = nil
	s.DeletedBy = nil
	return nil
}
