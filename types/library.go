package types

import (
	"strings"
	"time"
)

// ReadingStatus is the state of a book on a user's shelf.
type ReadingStatus string

// Supported reading statuses.
const (
	StatusReading   ReadingStatus = "reading"
	StatusCompleted ReadingStatus = "completed"
	StatusWishlist  ReadingStatus = "wishlist"
)

// ParseReadingStatus converts raw input into a ReadingStatus.
// Matching is exact after trimming surrounding whitespace.
func ParseReadingStatus(raw string) (ReadingStatus, bool) {
	status := ReadingStatus(strings.TrimSpace(raw))
	return status, status.Valid()
}

// Valid reports whether s is one of the supported statuses.
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusReading, StatusCompleted, StatusWishlist:
		return true
	default:
		return false
	}
}

func (s ReadingStatus) String() string {
	return string(s)
}

// LibraryEntry tracks one book on one user's shelf.
type LibraryEntry struct {
	// ID is the unique identifier of the entry.
	ID int `json:"id" db:"id"`

	// UserID identifies the owner of the shelf.
	UserID int `json:"user_id" db:"user_id"`

	// BookID identifies the tracked book.
	BookID int `json:"book_id" db:"book_id"`

	// Status is the current reading status.
	Status ReadingStatus `json:"status" db:"status"`

	// Title is the book title, populated by list queries.
	Title string `json:"title,omitempty" db:"title"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ShelfBook is a library entry as listed inside a status bucket.
type ShelfBook struct {
	BookID int    `json:"book_id"`
	Title  string `json:"title"`
}

// Shelves partitions a user's library by reading status.
// Every bucket is always present, possibly empty.
type Shelves struct {
	Reading   []ShelfBook `json:"reading"`
	Completed []ShelfBook `json:"completed"`
	Wishlist  []ShelfBook `json:"wishlist"`
}

// Profile is the authenticated user's overview.
type Profile struct {
	User
	Library []LibraryEntry `json:"library"`
	Reviews []Review       `json:"reviews"`
}
