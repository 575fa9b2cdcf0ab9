package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/storage"
	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

// MaxCoverBytes is the largest accepted cover image.
const MaxCoverBytes = 5 << 20

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// CoverStorage is the object store holding book cover images.
type CoverStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// CreateBookInput is the payload for adding a book to the catalog.
type CreateBookInput struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Genre       string  `json:"genre"`
	Description *string `json:"description"`
}

func (in CreateBookInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Author, validation.Required),
		validation.Field(&in.Genre, validation.Required),
	)
}

// BookService encapsulates catalog use-cases.
type BookService struct {
	store  *store.Store
	covers CoverStorage
}

// NewBookService constructs a BookService. covers may be nil, in which case
// cover uploads report ErrStorageUnavailable.
func NewBookService(st *store.Store, covers CoverStorage) *BookService {
	return &BookService{store: st, covers: covers}
}

func (s *BookService) Create(ctx context.Context, in CreateBookInput) (types.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Description = trimOptional(in.Description)
	if err := in.Validate(); err != nil {
		return types.Book{}, ErrMissingField.WithMessage(err.Error())
	}

	var book types.Book
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Books().Create(ctx, types.Book{
			Title:       in.Title,
			Author:      in.Author,
			Genre:       in.Genre,
			Description: in.Description,
		})
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateBook
		}
		return err
	})
	if err != nil {
		return types.Book{}, asServiceError(err)
	}

	log.Ctx(ctx).Info().Int("book_id", book.ID).Str("title", book.Title).Msg("book created")
	return book, nil
}

func (s *BookService) Get(ctx context.Context, id int) (types.Book, error) {
	var book types.Book
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Books().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return types.Book{}, bookLookupError(err)
	}
	return book, nil
}

// Detail returns a book with its reviews and their authors' names.
func (s *BookService) Detail(ctx context.Context, id int) (types.BookDetail, error) {
	var detail types.BookDetail
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		book, err := tx.Books().GetByID(ctx, id)
		if err != nil {
			return err
		}
		reviews, err := tx.Reviews().ListByBook(ctx, id)
		if err != nil {
			return err
		}
		detail = types.BookDetail{Book: book, HasCover: book.HasCover(), Reviews: reviews}
		return nil
	})
	if err != nil {
		return types.BookDetail{}, bookLookupError(err)
	}
	return detail, nil
}

// Search returns the books matching filter. No match is an empty slice.
func (s *BookService) Search(ctx context.Context, filter types.BookFilter) ([]types.Book, error) {
	var books []types.Book
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		books, err = tx.Books().Search(ctx, filter)
		return err
	})
	if err != nil {
		return nil, ErrPersistence.Wrap(err)
	}
	return books, nil
}

// Update applies the non-empty fields of patch to the book.
func (s *BookService) Update(ctx context.Context, id int, patch types.BookPatch) (types.Book, error) {
	var book types.Book
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Books().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if v := trimOptional(patch.Title); v != nil {
			book.Title = *v
		}
		if v := trimOptional(patch.Author); v != nil {
			book.Author = *v
		}
		if v := trimOptional(patch.Genre); v != nil {
			book.Genre = *v
		}
		if v := trimOptional(patch.Description); v != nil {
			book.Description = v
		}

		book, err = tx.Books().Update(ctx, book)
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateBook
		}
		return err
	})
	if err != nil {
		return types.Book{}, bookLookupError(err)
	}
	return book, nil
}

// Delete removes a book together with its library entries and reviews in
// one transaction. The cover object is removed afterwards on a best-effort
// basis.
func (s *BookService) Delete(ctx context.Context, id int) error {
	var (
		book             types.Book
		entries, reviews int64
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Books().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if entries, err = tx.Library().DeleteByBook(ctx, id); err != nil {
			return fmt.Errorf("delete library entries: %w", err)
		}
		if reviews, err = tx.Reviews().DeleteByBook(ctx, id); err != nil {
			return fmt.Errorf("delete reviews: %w", err)
		}
		return tx.Books().Delete(ctx, id)
	})
	if err != nil {
		return bookLookupError(err)
	}

	logger := log.Ctx(ctx)
	logger.Info().
		Int("book_id", id).
		Int64("library_entries", entries).
		Int64("reviews", reviews).
		Msg("book deleted")

	if book.HasCover() && s.covers != nil {
		if err := s.covers.Delete(ctx, book.CoverKey); err != nil {
			logger.Warn().Err(err).Str("key", book.CoverKey).Msg("failed to delete cover")
		}
	}
	return nil
}

// SetCover stores data as the book's cover image, replacing any previous one.
func (s *BookService) SetCover(ctx context.Context, id int, data []byte) (types.Book, error) {
	if s.covers == nil {
		return types.Book{}, ErrStorageUnavailable
	}
	if len(data) > MaxCoverBytes {
		return types.Book{}, ErrCoverTooLarge
	}
	contentType := http.DetectContentType(data)
	ext, ok := coverExtensions[contentType]
	if !ok {
		return types.Book{}, ErrInvalidCover
	}

	if _, err := s.Get(ctx, id); err != nil {
		return types.Book{}, err
	}

	key := fmt.Sprintf("covers/%d/%s%s", id, uuid.NewString(), ext)
	if err := s.covers.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Book{}, ErrPersistence.Wrap(fmt.Errorf("upload cover: %w", err))
	}

	var book types.Book
	var previous string
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Books().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		previous = book.CoverKey
		if err := tx.Books().SetCoverKey(ctx, id, key); err != nil {
			return err
		}
		book.CoverKey = key
		return nil
	})

	logger := log.Ctx(ctx)
	if err != nil {
		if derr := s.covers.Delete(ctx, key); derr != nil {
			logger.Warn().Err(derr).Str("key", key).Msg("failed to delete orphaned cover")
		}
		return types.Book{}, bookLookupError(err)
	}

	if previous != "" && previous != key {
		if err := s.covers.Delete(ctx, previous); err != nil {
			logger.Warn().Err(err).Str("key", previous).Msg("failed to delete replaced cover")
		}
	}
	return book, nil
}

// OpenCover returns a reader over the book's cover image. The caller must
// close it.
func (s *BookService) OpenCover(ctx context.Context, id int) (io.ReadCloser, storage.ObjectInfo, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	if !book.HasCover() {
		return nil, storage.ObjectInfo{}, ErrCoverNotFound
	}
	if s.covers == nil {
		return nil, storage.ObjectInfo{}, ErrStorageUnavailable
	}

	rc, info, err := s.covers.Get(ctx, book.CoverKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrCoverNotFound
		}
		return nil, storage.ObjectInfo{}, ErrPersistence.Wrap(err)
	}
	return rc, info, nil
}

func bookLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrBookNotFound
	}
	return asServiceError(err)
}

// trimOptional trims v and returns nil for nil or blank input.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
