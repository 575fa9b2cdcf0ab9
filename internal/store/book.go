package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfwise/apiserver/types"
)

// BookRepository handles persistence for books.
type BookRepository struct {
	db      DBTX
	dialect Dialect
}

func NewBookRepository(db DBTX, dialect Dialect) *BookRepository {
	return &BookRepository{db: db, dialect: dialect}
}

const bookColumns = `id, title, author, genre, description, average_rating, cover_key, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (types.Book, error) {
	var book types.Book
	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Genre,
		&book.Description,
		&book.AverageRating,
		&book.CoverKey,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}

// Create inserts book with a zero average rating. A book with the same
// title and author yields ErrConflict.
func (r *BookRepository) Create(ctx context.Context, book types.Book) (types.Book, error) {
	now := time.Now().UTC()
	book.AverageRating = 0
	book.CreatedAt = now
	book.UpdatedAt = now

	const query = `
		INSERT INTO books (title, author, genre, description, average_rating, cover_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		book.Title,
		book.Author,
		book.Genre,
		book.Description,
		book.AverageRating,
		book.CoverKey,
		book.CreatedAt,
		book.UpdatedAt,
	).Scan(&book.ID); err != nil {
		return types.Book{}, mapWriteError(err)
	}
	return book, nil
}

func (r *BookRepository) GetByID(ctx context.Context, id int) (types.Book, error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	return scanBook(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate reads the book and locks its row until the transaction ends.
func (r *BookRepository) GetForUpdate(ctx context.Context, id int) (types.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1` + r.dialect.lockClause()
	return scanBook(r.db.QueryRowContext(ctx, query, id))
}

// Search returns books matching every non-empty filter field as a
// case-insensitive substring, ordered by id.
func (r *BookRepository) Search(ctx context.Context, filter types.BookFilter) ([]types.Book, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		args = append(args, escapeLike(value))
		lower := r.dialect.lowerFunc()
		conds = append(conds, fmt.Sprintf(`%s(%s) LIKE '%%' || %s($%d) || '%%' ESCAPE '\'`, lower, column, lower, len(args)))
	}
	add("title", filter.Title)
	add("author", filter.Author)
	add("genre", filter.Genre)

	query := `SELECT ` + bookColumns + ` FROM books`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// Update overwrites the descriptive fields of book. The average rating and
// cover key are left to their dedicated setters.
func (r *BookRepository) Update(ctx context.Context, book types.Book) (types.Book, error) {
	book.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE books
		SET title = $1,
			author = $2,
			genre = $3,
			description = $4,
			updated_at = $5
		WHERE id = $6`
	if err := execOne(ctx, r.db, query,
		book.Title,
		book.Author,
		book.Genre,
		book.Description,
		book.UpdatedAt,
		book.ID,
	); err != nil {
		return types.Book{}, err
	}
	return book, nil
}

func (r *BookRepository) SetAverageRating(ctx context.Context, id int, avg float64) error {
	const query = `UPDATE books SET average_rating = $1, updated_at = $2 WHERE id = $3`
	return execOne(ctx, r.db, query, avg, time.Now().UTC(), id)
}

func (r *BookRepository) SetCoverKey(ctx context.Context, id int, key string) error {
	const query = `UPDATE books SET cover_key = $1, updated_at = $2 WHERE id = $3`
	return execOne(ctx, r.db, query, key, time.Now().UTC(), id)
}

// Delete removes the book row only. Callers remove dependent reviews and
// library entries first in the same transaction.
func (r *BookRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM books WHERE id = $1`
	return execOne(ctx, r.db, query, id)
}
