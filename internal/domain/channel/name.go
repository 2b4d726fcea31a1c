package channel

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

const (
	MaxNameLength        = 80
	MaxDescriptionLength = 1000
)

// Name is a validated channel name: trimmed, 1..MaxNameLength runes, no control characters.
type Name string

func NewName(raw string) (Name, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", domain.Validationf("invalid_channel_name", "channel name must be at most %d characters", MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", domain.Validation("invalid_channel_name", "channel name must not contain control characters")
		}
	}
	return Name(name), nil
}

func (n Name) String() string { return string(n) }

// Type is fixed at creation.
type Type string

const (
	TypePublic  Type = "public"
	TypePrivate Type = "private"
)

func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypePublic:
		return TypePublic, nil
	case TypePrivate:
		return TypePrivate, nil
	default:
		return "", ErrInvalidType
	}
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleMember, "":
		return RoleMember, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) valid() bool {
	return r == RoleOwner || r == RoleMember
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return "", domain.Validationf("invalid_description", "description must be at most %d characters", MaxDescriptionLength)
	}
	return desc, nil
}
