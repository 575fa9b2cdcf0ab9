package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const recomputeMessageType = "rating.recompute"

// RecomputeRequest asks a worker to recompute a book's average rating.
type RecomputeRequest struct {
	BookID      int       `json:"book_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// RatingQueue carries deferred rating recomputes between the API server
// and the worker.
type RatingQueue struct {
	mq      *MQ
	channel string
}

func NewRatingQueue(m *MQ, channel string) *RatingQueue {
	return &RatingQueue{mq: m, channel: channel}
}

func (q *RatingQueue) EnqueueRecompute(ctx context.Context, bookID int) error {
	if bookID < 1 {
		return errors.New("invalid book id")
	}
	data, err := json.Marshal(RecomputeRequest{BookID: bookID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = q.mq.Publish(ctx, q.channel, data, map[string]string{
		"type":    recomputeMessageType,
		"book_id": strconv.Itoa(bookID),
	})
	return err
}

// Consume delivers each queued book id to fn until ctx is done. Malformed
// messages are dropped; errors from fn leave the message for redelivery.
func (q *RatingQueue) Consume(ctx context.Context, fn func(ctx context.Context, bookID int) error) error {
	return q.mq.Subscribe(ctx, q.channel, func(ctx context.Context, msg Message) error {
		var req RecomputeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.BookID < 1 {
			log.Ctx(ctx).Warn().
				Str("message_id", msg.ID).
				Msg("dropping malformed recompute message")
			return nil
		}
		return fn(ctx, req.BookID)
	})
}
