package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

// ReviewInput carries the rating and text of a review. Nil fields are
// absent; blank text counts as absent.
type ReviewInput struct {
	Rating     *int    `json:"rating"`
	ReviewText *string `json:"review_text"`
}

func (in ReviewInput) normalize() ReviewInput {
	in.ReviewText = trimOptional(in.ReviewText)
	return in
}

func validateRating(rating *int) error {
	if rating != nil && (*rating < types.MinRating || *rating > types.MaxRating) {
		return ErrRatingOutOfRange
	}
	return nil
}

// Recomputer recomputes the average rating of a book.
type Recomputer interface {
	Recompute(ctx context.Context, bookID int) (float64, error)
}

// ReviewService encapsulates review use-cases. Every successful write is
// followed by a rating recompute before the call returns.
type ReviewService struct {
	store   *store.Store
	ratings Recomputer
	queue   RecomputeQueue
}

func NewReviewService(st *store.Store, ratings Recomputer, queue RecomputeQueue) *ReviewService {
	return &ReviewService{store: st, ratings: ratings, queue: queue}
}

// Add records a review by userID for bookID. A rating is required; the
// book is looked up before the input is checked. When the review is saved but
// the recompute fails, the saved review is returned together with
// ErrAggregationFailed.
func (s *ReviewService) Add(ctx context.Context, userID, bookID int, in ReviewInput) (types.Review, error) {
	in = in.normalize()

	var review types.Review
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Books().GetByID(ctx, bookID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if in.Rating == nil {
			return ErrRatingRequired
		}
		if err := validateRating(in.Rating); err != nil {
			return err
		}

		reviews := tx.Reviews()
		if _, err := reviews.GetByUserAndBook(ctx, userID, bookID); err == nil {
			return ErrDuplicateReview
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var err error
		review, err = reviews.Create(ctx, types.Review{
			UserID:     userID,
			BookID:     bookID,
			Rating:     in.Rating,
			ReviewText: in.ReviewText,
		})
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateReview
		}
		return err
	})
	if err != nil {
		return types.Review{}, reviewWriteError(err)
	}

	return review, s.aggregate(ctx, review)
}

// Update overwrites the provided fields of a review; blank text leaves the
// stored text unchanged. Only its author may change it.
func (s *ReviewService) Update(ctx context.Context, actorID, reviewID int, in ReviewInput) (types.Review, error) {
	in = in.normalize()
	if err := validateRating(in.Rating); err != nil {
		return types.Review{}, err
	}

	var review types.Review
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		review, err = tx.Reviews().GetByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		if review.UserID != actorID {
			return ErrNotReviewAuthor
		}

		if in.Rating != nil {
			review.Rating = in.Rating
		}
		if in.ReviewText != nil {
			review.ReviewText = in.ReviewText
		}
		if review.Rating == nil && review.ReviewText == nil {
			return ErrEmptyReview
		}

		review, err = tx.Reviews().Update(ctx, review)
		return err
	})
	if err != nil {
		return types.Review{}, reviewWriteError(err)
	}

	return review, s.aggregate(ctx, review)
}

func (s *ReviewService) ListByBook(ctx context.Context, bookID int) ([]types.BookReview, error) {
	var reviews []types.BookReview
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		reviews, err = tx.Reviews().ListByBook(ctx, bookID)
		return err
	})
	if err != nil {
		return nil, ErrPersistence.Wrap(err)
	}
	return reviews, nil
}

func (s *ReviewService) ListByUser(ctx context.Context, userID int) ([]types.Review, error) {
	var reviews []types.Review
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		reviews, err = tx.Reviews().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, ErrPersistence.Wrap(err)
	}
	return reviews, nil
}

// aggregate runs the recompute that follows a committed review write. On
// failure a deferred recompute is queued when a queue is configured.
func (s *ReviewService) aggregate(ctx context.Context, review types.Review) error {
	_, err := s.ratings.Recompute(ctx, review.BookID)
	if err == nil {
		return nil
	}

	logger := log.Ctx(ctx)
	logger.Error().Err(err).
		Int("review_id", review.ID).
		Int("book_id", review.BookID).
		Msg("rating recompute failed after review write")

	if s.queue != nil {
		if qerr := s.queue.EnqueueRecompute(ctx, review.BookID); qerr != nil {
			logger.Warn().Err(qerr).Int("book_id", review.BookID).Msg("failed to queue rating recompute")
		}
	}

	if errors.Is(err, ErrAggregationFailed) {
		return err
	}
	return ErrAggregationFailed.Wrap(err)
}

func reviewWriteError(err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return ErrReviewWriteFailed.Wrap(err)
}
