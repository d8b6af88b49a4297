// Package apperror defines the error taxonomy shared by every layer.
//
// Each failure the domain can report has a sentinel error and a stable kind
// string. Services return *AppError values that wrap a sentinel, so callers
// can branch with errors.Is and the HTTP layer can emit the kind verbatim:
//
//	{"ok": false, "error": "UsernameTaken", "message": "username is already taken"}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("InvalidInput")
	ErrMissingFields        = errors.New("MissingFields")
	ErrUsernameTaken        = errors.New("UsernameTaken")
	ErrInvalidCredentials   = errors.New("InvalidCredentials")
	ErrPendingApproval      = errors.New("PendingApproval")
	ErrUnauthenticated      = errors.New("Unauthenticated")
	ErrInvalidSession       = errors.New("InvalidSession")
	ErrForbidden            = errors.New("Forbidden")
	ErrNotApprovedDeveloper = errors.New("NotApprovedDeveloper")
	ErrNoSuchFile           = errors.New("NoSuchFile")
	ErrNoSuchDeveloper      = errors.New("NoSuchDeveloper")
	ErrEmptyComment         = errors.New("EmptyComment")
	ErrRateLimited          = errors.New("RateLimited")

	// ErrStoreCorrupt tags log records for collections that were reset to
	// their default value. It is never returned to callers.
	ErrStoreCorrupt = errors.New("StoreCorrupt")
)

// KindInternal is reported for any error outside the taxonomy.
const KindInternal = "Internal"

// kinds lists the sentinels KindOf recognises, most specific first.
var kinds = []error{
	ErrInvalidInput,
	ErrMissingFields,
	ErrUsernameTaken,
	ErrInvalidCredentials,
	ErrPendingApproval,
	ErrUnauthenticated,
	ErrInvalidSession,
	ErrForbidden,
	ErrNotApprovedDeveloper,
	ErrNoSuchFile,
	ErrNoSuchDeveloper,
	ErrEmptyComment,
	ErrRateLimited,
	ErrStoreCorrupt,
}

type AppError struct {
	Err     error  // sentinel this error belongs to
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the stable kind string of the wrapped sentinel.
func (e *AppError) Kind() string {
	if e.Err == nil {
		return KindInternal
	}
	return e.Err.Error()
}

// New builds an AppError for the given sentinel.
func New(kind error, message string) *AppError {
	return &AppError{Err: kind, Message: message}
}

// KindOf walks the error chain and returns the kind of the first sentinel
// found, or KindInternal.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return KindInternal
}

func InvalidInput(field, message string) *AppError {
	return &AppError{Err: ErrInvalidInput, Message: message, Field: field}
}

func MissingFields(fields ...string) *AppError {
	field := ""
	if len(fields) > 0 {
		field = fields[0]
	}
	return &AppError{
		Err:     ErrMissingFields,
		Message: fmt.Sprintf("missing required fields: %v", fields),
		Field:   field,
	}
}

func NoSuchFile(id string) *AppError {
	return &AppError{
		Err:     ErrNoSuchFile,
		Message: fmt.Sprintf("file not found with id %s", id),
	}
}

func NoSuchDeveloper(id string) *AppError {
	return &AppError{
		Err:     ErrNoSuchDeveloper,
		Message: fmt.Sprintf("developer not found with id %s", id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
