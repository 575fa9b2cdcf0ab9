package types

import "time"

// Book represents a catalog entry.
// AverageRating is derived from the book's reviews and is only ever written
// by the rating aggregator.
type Book struct {
	// ID is the unique identifier of the book.
	ID int `json:"id" db:"id"`

	// Title is the book title. Together with Author it identifies the book
	// uniquely in the catalog.
	Title string `json:"title" db:"title"`

	// Author is the name of the book's author.
	Author string `json:"author" db:"author"`

	// Genre is a free-form genre label (e.g., "SciFi").
	Genre string `json:"genre" db:"genre"`

	// Description is an optional synopsis.
	Description *string `json:"description" db:"description"`

	// AverageRating is the arithmetic mean of all non-null review ratings,
	// or 0 when the book has no rated reviews.
	AverageRating float64 `json:"average_rating" db:"average_rating"`

	// CoverKey is the object storage key of the cover image, empty when
	// no cover has been uploaded.
	CoverKey string `json:"-" db:"cover_key"`

	// CreatedAt is the timestamp at which the book was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the book.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasCover reports whether a cover image is stored for the book.
func (b Book) HasCover() bool {
	return b.CoverKey != ""
}

// BookFilter holds optional case-insensitive substring filters.
// Empty fields do not constrain the search; set fields are AND-ed.
type BookFilter struct {
	Title  string
	Author string
	Genre  string
}

// BookPatch carries a partial update. Nil or empty fields leave the
// stored value untouched.
type BookPatch struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Genre       *string `json:"genre"`
	Description *string `json:"description"`
}

// BookSummary is the list view of a book returned by catalog searches.
type BookSummary struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"`
	AverageRating float64 `json:"average_rating"`
}

// Summary returns the list view of b.
func (b Book) Summary() BookSummary {
	return BookSummary{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		AverageRating: b.AverageRating,
	}
}

// BookDetail is a book together with its reviews.
type BookDetail struct {
	Book
	HasCover bool         `json:"has_cover"`
	Reviews  []BookReview `json:"reviews"`
}
