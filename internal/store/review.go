package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shelfwise/apiserver/types"
)

// ReviewRepository handles persistence for reviews.
type ReviewRepository struct {
	db DBTX
}

func NewReviewRepository(db DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, user_id, book_id, rating, review_text, created_at, updated_at`

func scanReview(row interface{ Scan(...any) error }) (types.Review, error) {
	var review types.Review
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.BookID,
		&review.Rating,
		&review.ReviewText,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// Create inserts review. A second review by the same user for the same
// book yields ErrConflict.
func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now

	const query = `
		INSERT INTO reviews (user_id, book_id, rating, review_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		review.UserID,
		review.BookID,
		review.Rating,
		review.ReviewText,
		review.CreatedAt,
		review.UpdatedAt,
	).Scan(&review.ID); err != nil {
		return types.Review{}, mapWriteError(err)
	}
	return review, nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id int) (types.Review, error) {
	const query = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	return scanReview(r.db.QueryRowContext(ctx, query, id))
}

func (r *ReviewRepository) GetByUserAndBook(ctx context.Context, userID, bookID int) (types.Review, error) {
	const query = `SELECT ` + reviewColumns + ` FROM reviews WHERE user_id = $1 AND book_id = $2`
	return scanReview(r.db.QueryRowContext(ctx, query, userID, bookID))
}

// Update saves the rating and text of an existing review.
func (r *ReviewRepository) Update(ctx context.Context, review types.Review) (types.Review, error) {
	review.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE reviews
		SET rating = $1,
			review_text = $2,
			updated_at = $3
		WHERE id = $4`
	if err := execOne(ctx, r.db, query, review.Rating, review.ReviewText, review.UpdatedAt, review.ID); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

// ListByBook returns the reviews of a book with their authors' names.
func (r *ReviewRepository) ListByBook(ctx context.Context, bookID int) ([]types.BookReview, error) {
	const query = `
		SELECT r.id, r.user_id, u.name, r.rating, r.review_text
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1
		ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]types.BookReview, 0)
	for rows.Next() {
		var review types.BookReview
		if err := rows.Scan(
			&review.ID,
			&review.UserID,
			&review.UserName,
			&review.Rating,
			&review.ReviewText,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *ReviewRepository) ListByUser(ctx context.Context, userID int) ([]types.Review, error) {
	const query = `SELECT ` + reviewColumns + ` FROM reviews WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]types.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// Ratings returns the non-null ratings recorded for a book.
func (r *ReviewRepository) Ratings(ctx context.Context, bookID int) ([]int, error) {
	const query = `SELECT rating FROM reviews WHERE book_id = $1 AND rating IS NOT NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]int, 0)
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

// DeleteByBook removes every review of a book and returns how many were removed.
func (r *ReviewRepository) DeleteByBook(ctx context.Context, bookID int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE book_id = $1`, bookID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
