package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

var (
	ErrTransactionAlreadyActive = domain.TransactionMisuse("transaction_already_active", "a transaction is already active on this unit of work")
	ErrNoActiveTransaction      = domain.TransactionMisuse("no_active_transaction", "no transaction is active on this unit of work")

	// errStaleRow is returned by updateRow when the version guard matched nothing.
	errStaleRow = errors.New("row was changed since it was loaded")
)

// translate maps store errors onto the domain taxonomy. notFound is returned for
// gorm.ErrRecordNotFound so each repository reports its own sentinel.
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound == nil {
		notFound = domain.Internal("record not found", err)
	}
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, errStaleRow):
		return conflict(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case isUniqueViolation(err):
		return conflict(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Internal("operation cancelled", err)
	default:
		return domain.Internal("store operation failed", err)
	}
}

// conflict reports a lost race: a concurrent insert of the same natural key, or
// a row changed since it was loaded. The caller may retry the whole command.
func conflict(cause error) error {
	e := domain.AlreadyExists("conflict", "a concurrent request changed the same record")
	e.Err = cause
	e.Retryable = true
	return e
}

// isUniqueViolation recognises unique-index failures from postgres (SQLSTATE
// 23505) and sqlite, whether or not gorm translated them.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
