package store

import (
	"errors"
	"fmt"
)

// ErrBlocked is wrapped by an Open error when another handle already holds
// the store's lock file.
var ErrBlocked = errors.New("store is held by another open handle")

// Kind categorizes storage errors.
type Kind string

const (
	// KindOpen indicates the store could not be opened or upgraded.
	KindOpen Kind = "OPEN"

	// KindNotFound indicates a get/update addressed an absent record.
	KindNotFound Kind = "NOT_FOUND"

	// KindValidation indicates a record or payload failed validation.
	KindValidation Kind = "VALIDATION"

	// KindTransaction indicates the underlying unit failed to begin, commit,
	// or was misused (undeclared collection, nested unit, write in read mode).
	KindTransaction Kind = "TRANSACTION"

	// KindRecoveryUnavailable indicates note-version or fallback structures
	// are missing. Callers degrade to empty/no-op results.
	KindRecoveryUnavailable Kind = "RECOVERY_UNAVAILABLE"
)

// Error is the single error type surfaced by the storage engine.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "get customer".
	Op string

	// Collection is the collection involved, if any.
	Collection Collection

	// ID is the record id involved, if any.
	ID int64

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Collection != "" && e.ID != 0 {
		msg = fmt.Sprintf("%s (%s id=%d)", msg, e.Collection, e.ID)
	} else if e.Collection != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Collection)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func notFound(op string, c Collection, id int64) *Error {
	return &Error{Kind: KindNotFound, Op: op, Collection: c, ID: id}
}

// ValidationError builds a KindValidation error. Exported for the backup
// package, which reports malformed payloads with the same type.
func ValidationError(op string, err error) *Error {
	return newError(KindValidation, op, err)
}

// RecoveryUnavailable builds a KindRecoveryUnavailable error.
func RecoveryUnavailable(op string, err error) *Error {
	return newError(KindRecoveryUnavailable, op, err)
}

func isKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsOpen reports whether err is an open failure.
func IsOpen(err error) bool { return isKind(err, KindOpen) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsTransaction reports whether err is a transaction failure.
func IsTransaction(err error) bool { return isKind(err, KindTransaction) }

// IsRecoveryUnavailable reports whether err signals missing recovery structures.
func IsRecoveryUnavailable(err error) bool { return isKind(err, KindRecoveryUnavailable) }
