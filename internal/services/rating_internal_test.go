package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/apiserver/internal/db/dbtest"
	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

func TestRecomputeDropsLockForMissingBook(t *testing.T) {
	st := store.New(dbtest.Open(t), store.DialectSQLite)
	a := NewRatingAggregator(st)
	ctx := context.Background()

	var book types.Book
	require.NoError(t, st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		book, err = tx.Books().Create(ctx, types.Book{Title: "Dune", Author: "Herbert", Genre: "SciFi"})
		return err
	}))

	_, err := a.Recompute(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.locks.Size())

	require.NoError(t, st.InTx(ctx, func(tx *store.Tx) error {
		return tx.Books().Delete(ctx, book.ID)
	}))

	_, err = a.Recompute(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Zero(t, a.locks.Size())

	_, err = a.Recompute(ctx, 404)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Zero(t, a.locks.Size())
}
