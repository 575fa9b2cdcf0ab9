package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"no ratings", nil, 0},
		{"single", []int{3}, 3},
		{"two", []int{4, 5}, 4.5},
		{"bounds", []int{1, 5, 1, 5}, 3},
		{"thirds", []int{1, 2, 2}, 5.0 / 3.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, services.AverageRating(tc.ratings), 1e-9)
		})
	}
}

func TestRecomputeMatchesReviewSet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	book := e.book(t, "Dune", "Herbert", "SciFi")

	avg, err := e.ratings.Recompute(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, avg)

	for i, r := range []int{4, 5, 2} {
		u := e.register(t, fmt.Sprintf("U%d", i), fmt.Sprintf("u%d@x.com", i))
		_, err := e.reviews.Add(ctx, u.ID, book.ID, services.ReviewInput{Rating: ptr(r)})
		require.NoError(t, err)
	}

	// Rows without a rating do not count towards the mean.
	wordsOnly := e.register(t, "W", "w@x.com")
	require.NoError(t, e.store.InTx(ctx, func(tx *store.Tx) error {
		_, err := tx.Reviews().Create(ctx, types.Review{UserID: wordsOnly.ID, BookID: book.ID, ReviewText: ptr("words only")})
		return err
	}))
	avg, err = e.ratings.Recompute(ctx, book.ID)
	require.NoError(t, err)
	assert.InDelta(t, 11.0/3.0, avg, 1e-9)

	got, err := e.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.InDelta(t, 11.0/3.0, got.AverageRating, 1e-9)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	book := e.book(t, "Dune", "Herbert", "SciFi")
	alice := e.register(t, "Alice", "a@x.com")
	_, err := e.reviews.Add(ctx, alice.ID, book.ID, services.ReviewInput{Rating: ptr(3)})
	require.NoError(t, err)

	first, err := e.ratings.Recompute(ctx, book.ID)
	require.NoError(t, err)
	second, err := e.ratings.Recompute(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := e.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, second, stored.AverageRating)
}

func TestRecomputeUnknownBook(t *testing.T) {
	e := newEnv(t)
	_, err := e.ratings.Recompute(context.Background(), 404)
	assert.ErrorIs(t, err, services.ErrBookNotFound)
}

func TestConcurrentReviewsConverge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	book := e.book(t, "Dune", "Herbert", "SciFi")

	const n = 8
	users := make([]types.User, n)
	for i := range users {
		users[i] = e.register(t, fmt.Sprintf("U%d", i), fmt.Sprintf("u%d@x.com", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, u := range users {
		wg.Add(1)
		go func(userID, rating int) {
			defer wg.Done()
			_, err := e.reviews.Add(ctx, userID, book.ID, services.ReviewInput{Rating: ptr(rating)})
			errs <- err
		}(u.ID, i%5+1)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	want := services.AverageRating([]int{1, 2, 3, 4, 5, 1, 2, 3})
	got, err := e.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.InDelta(t, want, got.AverageRating, 1e-9)
}
