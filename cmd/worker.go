/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelfwise/apiserver/config"
	"github.com/shelfwise/apiserver/internal/db"
	"github.com/shelfwise/apiserver/internal/mq"
	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/internal/store"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes queued rating recomputations",
	Long: `Consumes rating recompute requests that the API server queued after a
failed aggregation, and recomputes each book's average rating. Requires
MQ_BACKEND to be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dialect, err := store.ParseDialect(cfg.Database.Driver)
		if err != nil {
			return err
		}
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is required")
		}
		defer broker.Close()

		ratings := services.NewRatingAggregator(store.New(dbConn, dialect))
		queue := mq.NewRatingQueue(broker, cfg.MQ.RatingChannel)

		log.Info().
			Str("backend", cfg.MQ.Backend).
			Str("channel", cfg.MQ.RatingChannel).
			Msg("worker started")

		err = queue.Consume(ctx, func(ctx context.Context, bookID int) error {
			return recomputeQueued(ctx, ratings, bookID)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info().Msg("worker stopped")
		return nil
	},
}

// recomputeQueued treats a book deleted since it was queued as done.
func recomputeQueued(ctx context.Context, ratings services.Recomputer, bookID int) error {
	avg, err := ratings.Recompute(ctx, bookID)
	if errors.Is(err, services.ErrBookNotFound) {
		log.Ctx(ctx).Info().Int("book_id", bookID).Msg("skipping recompute for deleted book")
		return nil
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int("book_id", bookID).Msg("queued recompute failed")
		return err
	}
	log.Ctx(ctx).Info().Int("book_id", bookID).Float64("average_rating", avg).Msg("queued recompute done")
	return nil
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
