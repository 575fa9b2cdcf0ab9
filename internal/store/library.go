package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shelfwise/apiserver/types"
)

// LibraryRepository handles persistence for user_library entries.
type LibraryRepository struct {
	db DBTX
}

func NewLibraryRepository(db DBTX) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Create inserts entry. A second entry for the same user and book yields
// ErrConflict.
func (r *LibraryRepository) Create(ctx context.Context, entry types.LibraryEntry) (types.LibraryEntry, error) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `
		INSERT INTO user_library (user_id, book_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		entry.UserID,
		entry.BookID,
		entry.Status,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID); err != nil {
		return types.LibraryEntry{}, mapWriteError(err)
	}
	return entry, nil
}

func (r *LibraryRepository) Get(ctx context.Context, userID, bookID int) (types.LibraryEntry, error) {
	const query = `
		SELECT l.id, l.user_id, l.book_id, l.status, b.title, l.created_at, l.updated_at
		FROM user_library l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1 AND l.book_id = $2`
	var entry types.LibraryEntry
	err := r.db.QueryRowContext(ctx, query, userID, bookID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.BookID,
		&entry.Status,
		&entry.Title,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LibraryEntry{}, ErrNotFound
		}
		return types.LibraryEntry{}, err
	}
	return entry, nil
}

func (r *LibraryRepository) UpdateStatus(ctx context.Context, userID, bookID int, status types.ReadingStatus) error {
	const query = `
		UPDATE user_library
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND book_id = $4`
	return execOne(ctx, r.db, query, status, time.Now().UTC(), userID, bookID)
}

func (r *LibraryRepository) Delete(ctx context.Context, userID, bookID int) error {
	const query = `DELETE FROM user_library WHERE user_id = $1 AND book_id = $2`
	return execOne(ctx, r.db, query, userID, bookID)
}

// ListByUser returns the user's entries with book titles, ordered by id.
func (r *LibraryRepository) ListByUser(ctx context.Context, userID int) ([]types.LibraryEntry, error) {
	const query = `
		SELECT l.id, l.user_id, l.book_id, l.status, b.title, l.created_at, l.updated_at
		FROM user_library l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1
		ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.LibraryEntry, 0)
	for rows.Next() {
		var entry types.LibraryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.BookID,
			&entry.Status,
			&entry.Title,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteByBook removes every library entry referencing a book and returns
// how many were removed.
func (r *LibraryRepository) DeleteByBook(ctx context.Context, bookID int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_library WHERE book_id = $1`, bookID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
