package services

import (
	"errors"
	"fmt"
)

// Kind classifies service errors for transport mapping.
type Kind int

const (
	KindPersistence Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindAggregation
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindAggregation:
		return "aggregation"
	case KindUnavailable:
		return "unavailable"
	default:
		return "persistence"
	}
}

// Error is a typed service failure. Two errors match under errors.Is when
// their codes are equal, so sentinels can be refined with WithMessage or
// Wrap and still be recognised.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e with a different client-facing message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindPersistence for anything untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

var (
	ErrValidation  = newError(KindValidation, "validation_failed", "Invalid input")
	ErrPersistence = newError(KindPersistence, "persistence_failed", "Internal server error")

	// Identity
	ErrDuplicateEmail     = newError(KindConflict, "duplicate_email", "Email already registered")
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid_credentials", "Invalid credentials")
	ErrInvalidUser        = ErrInvalidCredentials.WithMessage("Invalid user")
	ErrInvalidPassword    = ErrInvalidCredentials.WithMessage("Invalid pass")
	ErrEmptyPassword      = newError(KindValidation, "empty_password", "Password must not be empty")
	ErrUserNotFound       = newError(KindNotFound, "user_not_found", "User not found")
	ErrNotAdmin           = newError(KindForbidden, "not_admin", "Admin privileges required")
	ErrTargetNotFound     = newError(KindNotFound, "target_not_found", "Target user not found")
	ErrAlreadyAdmin       = newError(KindConflict, "already_admin", "User is already an admin")

	// Catalog
	ErrMissingField  = newError(KindValidation, "missing_field", "Title, author and genre are required")
	ErrDuplicateBook = newError(KindConflict, "duplicate_book", "Book already exists")
	ErrBookNotFound  = newError(KindNotFound, "book_not_found", "Book not found")

	// Covers
	ErrInvalidCover       = newError(KindValidation, "invalid_cover", "Cover must be a JPEG, PNG, GIF or WebP image")
	ErrCoverTooLarge      = newError(KindValidation, "cover_too_large", "Cover image is too large")
	ErrCoverNotFound      = newError(KindNotFound, "cover_not_found", "Cover not found")
	ErrStorageUnavailable = newError(KindUnavailable, "storage_unavailable", "Cover storage is not configured")

	// Reviews
	ErrRatingOutOfRange  = newError(KindValidation, "rating_out_of_range", "Rating must be between 1 and 5")
	ErrRatingRequired    = newError(KindValidation, "rating_required", "Rating is required")
	ErrEmptyReview       = newError(KindValidation, "empty_review", "A review needs a rating or review text")
	ErrDuplicateReview   = newError(KindConflict, "duplicate_review", "You have already reviewed this book")
	ErrReviewNotFound    = newError(KindNotFound, "review_not_found", "Review not found")
	ErrNotReviewAuthor   = newError(KindForbidden, "not_review_author", "Only the author may edit a review")
	ErrReviewWriteFailed = newError(KindPersistence, "review_write_failed", "Failed to save review")
	ErrAggregationFailed = newError(KindAggregation, "aggregation_failed", "Review saved but rating recompute failed")

	// Library
	ErrInvalidStatus        = newError(KindValidation, "invalid_status", "Status must be one of reading, completed, wishlist")
	ErrAlreadyInLibrary     = newError(KindConflict, "already_in_library", "Book is already in your library")
	ErrLibraryEntryNotFound = newError(KindNotFound, "library_entry_not_found", "Book is not in your library")
)
