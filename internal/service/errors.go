package service

import "errors"

// Error kinds. Every error returned by this package for a client-caused failure wraps one of them,
// so callers can branch with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalid         = errors.New("invalid input")
)

// Error is a client-facing failure: Msg is safe to show, Kind classifies it.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	errBadCredentials     = newError(ErrUnauthenticated, "Incorrect username or password")
	errNotAuthenticated   = newError(ErrUnauthenticated, "Could not validate credentials")
	errAdminRequired      = newError(ErrForbidden, "Admin access required")
	errUsernameTaken      = newError(ErrConflict, "Username already registered")
	errEmailTaken         = newError(ErrConflict, "Email already registered")
	errUserNotFound       = newError(ErrNotFound, "User not found")
	errBookNotFound       = newError(ErrNotFound, "Book not found")
	errBorrowNotFound     = newError(ErrNotFound, "Borrow not found")
	errReviewNotFound     = newError(ErrNotFound, "Review not found")
	errAlreadyBorrowed    = newError(ErrConflict, "Book already borrowed")
	errAlreadyReturned    = newError(ErrConflict, "Book already returned")
	errBookBorrowed       = newError(ErrConflict, "Book is currently borrowed")
	errCoverTooLarge      = newError(ErrInvalid, "Cover file too large")
	errInvalidRole        = newError(ErrInvalid, "role must be 'user' or 'admin'")
	errInvalidPagination  = newError(ErrInvalid, "skip must be >= 0 and limit must be > 0")
	errInvalidTimeRange   = newError(ErrInvalid, "invalid time range: from must be <= to")
	errMissingCoverName   = newError(ErrInvalid, "cover file name is required")
	errEmptyPassword      = newError(ErrInvalid, "password is empty")
	errMissingCredentials = newError(ErrInvalid, "username and email are required")
)
