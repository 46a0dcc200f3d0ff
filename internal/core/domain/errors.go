package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. The HTTP layer maps them to status codes;
// KindOf exposes a stable machine-readable name for each.
var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrInvalidRole             = errors.New("invalid role")
	ErrRoleAssignmentForbidden = errors.New("roles cannot be assigned at creation")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrItemNotFound            = errors.New("item not found")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidDateRange        = errors.New("invalid date range")
	ErrTokenInvalid            = errors.New("token invalid")
	ErrConflict                = errors.New("conflict")

	ErrUserNotFound       = errors.New("user not found")
	ErrBorrowingNotFound  = errors.New("borrowing not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenSourceExhausted means freshly generated tokens kept colliding
	// with stored ones. The random source is broken; this is not retryable.
	ErrTokenSourceExhausted = errors.New("token source exhausted")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidArgument, "invalid_argument"},
	{ErrInvalidRole, "invalid_role"},
	{ErrRoleAssignmentForbidden, "role_assignment_forbidden"},
	{ErrUnauthorized, "unauthorized"},
	{ErrItemNotFound, "item_not_found"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrInvalidDateRange, "invalid_date_range"},
	{ErrTokenInvalid, "token_invalid"},
	{ErrConflict, "conflict"},
	{ErrUserNotFound, "user_not_found"},
	{ErrBorrowingNotFound, "borrowing_not_found"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrTokenSourceExhausted, "token_source_exhausted"},
}

// Error pairs a stable kind with a human-readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the stable name of the first known kind err wraps,
// or "internal" when it wraps none.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
