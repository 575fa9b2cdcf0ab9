package types

import "time"

// Rating bounds for a review.
const (
	MinRating = 1
	MaxRating = 5
)

// Review represents a user's rating and/or written review of a book.
// A user may hold at most one review per book.
type Review struct {
	// ID is the unique identifier of the review.
	ID int `json:"id" db:"id"`

	// UserID identifies the author of the review.
	UserID int `json:"user_id" db:"user_id"`

	// BookID identifies the reviewed book.
	BookID int `json:"book_id" db:"book_id"`

	// Rating is the score given to the book, between MinRating and MaxRating.
	// Nil when the review carries text only.
	Rating *int `json:"rating" db:"rating"`

	// ReviewText is the optional written review.
	ReviewText *string `json:"review_text" db:"review_text"`

	// CreatedAt is the timestamp when the review was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp when the review was last saved.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BookReview is a review as shown on a book's detail page.
type BookReview struct {
	ID         int     `json:"id"`
	UserID     int     `json:"user_id"`
	UserName   string  `json:"user_name"`
	Rating     *int    `json:"rating"`
	ReviewText *string `json:"review_text"`
}
