package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/apiserver/internal/services"
)

type stubRecomputer struct {
	err   error
	calls []int
}

func (s *stubRecomputer) Recompute(_ context.Context, bookID int) (float64, error) {
	s.calls = append(s.calls, bookID)
	return 4.5, s.err
}

func TestRecomputeQueued(t *testing.T) {
	ok := &stubRecomputer{}
	assert.NoError(t, recomputeQueued(context.Background(), ok, 7))
	assert.Equal(t, []int{7}, ok.calls)

	gone := &stubRecomputer{err: services.ErrBookNotFound}
	assert.NoError(t, recomputeQueued(context.Background(), gone, 7))

	boom := errors.New("boom")
	failing := &stubRecomputer{err: services.ErrAggregationFailed.Wrap(boom)}
	assert.ErrorIs(t, recomputeQueued(context.Background(), failing, 7), boom)
}
