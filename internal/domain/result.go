package domain

import "errors"

// Result is the tagged success/failure value handed to the outer boundary.
// It is built directly from a (value, error) pair; no reflection is involved.
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail classifies err into a failed Result. Errors outside the taxonomy become
// KindInternal.
func Fail[T any](err error) Result[T] {
	var de *Error
	if !errors.As(err, &de) {
		de = Internal("internal error", err)
	}
	return Result[T]{err: de}
}

// ResultOf turns a service call into a Result. TransactionMisuse is a programming
// error, not a user-facing failure, so it panics instead of being folded in.
func ResultOf[T any](v T, err error) Result[T] {
	if err == nil {
		return Ok(v)
	}
	if KindOf(err) == KindTransactionMisuse {
		panic(err)
	}
	return Fail[T](err)
}

func (r Result[T]) IsSuccess() bool { return r.err == nil }
func (r Result[T]) Value() T        { return r.value }
func (r Result[T]) Err() *Error     { return r.err }

func (r Result[T]) Kind() Kind {
	if r.err == nil {
		return KindInternal
	}
	return r.err.Kind
}
