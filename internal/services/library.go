package services

import (
	"context"
	"errors"

	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

// LibraryService tracks the reading status of books on users' shelves.
type LibraryService struct {
	store *store.Store
}

func NewLibraryService(st *store.Store) *LibraryService {
	return &LibraryService{store: st}
}

func (s *LibraryService) Add(ctx context.Context, userID, bookID int, rawStatus string) (types.LibraryEntry, error) {
	status, ok := types.ParseReadingStatus(rawStatus)
	if !ok {
		return types.LibraryEntry{}, ErrInvalidStatus
	}

	var entry types.LibraryEntry
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		book, err := tx.Books().GetByID(ctx, bookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		library := tx.Library()
		if _, err := library.Get(ctx, userID, bookID); err == nil {
			return ErrAlreadyInLibrary
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		entry, err = library.Create(ctx, types.LibraryEntry{
			UserID: userID,
			BookID: bookID,
			Status: status,
		})
		if errors.Is(err, store.ErrConflict) {
			return ErrAlreadyInLibrary
		}
		entry.Title = book.Title
		return err
	})
	if err != nil {
		return types.LibraryEntry{}, asServiceError(err)
	}
	return entry, nil
}

func (s *LibraryService) UpdateStatus(ctx context.Context, userID, bookID int, rawStatus string) (types.LibraryEntry, error) {
	status, ok := types.ParseReadingStatus(rawStatus)
	if !ok {
		return types.LibraryEntry{}, ErrInvalidStatus
	}

	var entry types.LibraryEntry
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.Library().UpdateStatus(ctx, userID, bookID, status); err != nil {
			return err
		}
		var err error
		entry, err = tx.Library().Get(ctx, userID, bookID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.LibraryEntry{}, ErrLibraryEntryNotFound
		}
		return types.LibraryEntry{}, ErrPersistence.Wrap(err)
	}
	return entry, nil
}

func (s *LibraryService) Remove(ctx context.Context, userID, bookID int) error {
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		return tx.Library().Delete(ctx, userID, bookID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrLibraryEntryNotFound
		}
		return ErrPersistence.Wrap(err)
	}
	return nil
}

// ListByStatus partitions the user's library into status buckets. Every
// bucket is non-nil.
func (s *LibraryService) ListByStatus(ctx context.Context, userID int) (types.Shelves, error) {
	var entries []types.LibraryEntry
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.Library().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return types.Shelves{}, ErrPersistence.Wrap(err)
	}
	return groupShelves(entries), nil
}

func groupShelves(entries []types.LibraryEntry) types.Shelves {
	shelves := types.Shelves{
		Reading:   []types.ShelfBook{},
		Completed: []types.ShelfBook{},
		Wishlist:  []types.ShelfBook{},
	}
	for _, e := range entries {
		book := types.ShelfBook{BookID: e.BookID, Title: e.Title}
		switch e.Status {
		case types.StatusReading:
			shelves.Reading = append(shelves.Reading, book)
		case types.StatusCompleted:
			shelves.Completed = append(shelves.Completed, book)
		case types.StatusWishlist:
			shelves.Wishlist = append(shelves.Wishlist, book)
		}
	}
	return shelves
}
