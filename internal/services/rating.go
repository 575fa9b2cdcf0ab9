package services

import (
	"context"
	"errors"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/store"
)

// RecomputeQueue schedules a deferred rating recompute for a book.
type RecomputeQueue interface {
	EnqueueRecompute(ctx context.Context, bookID int) error
}

// AverageRating returns the arithmetic mean of ratings, or 0 when there
// are none.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

// RatingAggregator keeps books.average_rating consistent with the review set.
// It holds one mutex per book it has recomputed; the entry is dropped once a
// recompute finds the book gone.
type RatingAggregator struct {
	store *store.Store
	locks *xsync.MapOf[int, *sync.Mutex]
}

func NewRatingAggregator(st *store.Store) *RatingAggregator {
	return &RatingAggregator{
		store: st,
		locks: xsync.NewMapOf[int, *sync.Mutex](),
	}
}

func (a *RatingAggregator) lock(bookID int) func() {
	mu, _ := a.locks.LoadOrCompute(bookID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}

// Recompute reads the committed ratings of a book and stores their mean.
// Calls for the same book are serialized in-process and the book row is
// locked for the duration of the transaction. A book without ratings gets 0.
func (a *RatingAggregator) Recompute(ctx context.Context, bookID int) (float64, error) {
	unlock := a.lock(bookID)
	defer unlock()

	var avg float64
	err := a.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Books().GetForUpdate(ctx, bookID); err != nil {
			return err
		}
		ratings, err := tx.Reviews().Ratings(ctx, bookID)
		if err != nil {
			return err
		}
		avg = AverageRating(ratings)
		return tx.Books().SetAverageRating(ctx, bookID, avg)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.locks.Delete(bookID)
			return 0, ErrBookNotFound
		}
		return 0, ErrAggregationFailed.Wrap(err)
	}

	log.Ctx(ctx).Debug().
		Int("book_id", bookID).
		Float64("average_rating", avg).
		Msg("average rating recomputed")
	return avg, nil
}
