package file

import (
	"strings"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

const (
	MinSize int64 = 1
	MaxSize int64 = 100 << 20

	MaxNameLength = 255
)

// Size is an upload size in bytes, between MinSize and MaxSize.
type Size int64

func NewSize(n int64) (Size, error) {
	if n < MinSize || n > MaxSize {
		return 0, ErrInvalidSize
	}
	return Size(n), nil
}

func (s Size) Int64() int64 { return int64(s) }

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return "", domain.Validationf("file_name_too_long", "file name must be at most %d bytes", MaxNameLength)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", domain.Validation("invalid_file_name", "file name must not contain path separators")
	}
	return name, nil
}
