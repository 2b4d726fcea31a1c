package file

import "github.com/Gopher0727/ChatCore/internal/domain"

var (
	ErrFileNotFound   = domain.NotFound("file_not_found", "file not found")
	ErrFileDeleted    = domain.InvalidState("file_deleted", "file has been deleted")
	ErrFileNotDeleted = domain.InvalidState("file_not_deleted", "file is not deleted")
	ErrNotUploader    = domain.Forbidden("not_uploader", "only the uploader may change this file")
	ErrInvalidSize    = domain.Validationf("invalid_file_size", "file size must be between %d and %d bytes", MinSize, MaxSize)
	ErrEmptyName      = domain.Validation("empty_file_name", "file name is required")
	ErrEmptyUploader  = domain.Validation("empty_uploader", "uploader id is required")
)
