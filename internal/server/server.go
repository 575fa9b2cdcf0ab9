package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/config"
	"github.com/shelfwise/apiserver/internal/db"
	"github.com/shelfwise/apiserver/internal/handlers"
	"github.com/shelfwise/apiserver/internal/mq"
	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/internal/storage"
	"github.com/shelfwise/apiserver/internal/store"
)

// Dependencies are the external resources the router is built on. Covers,
// Queue and Hasher are optional.
type Dependencies struct {
	DB     *sql.DB
	Covers services.CoverStorage
	Queue  services.RecomputeQueue
	Hasher services.PasswordHasher
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     http.Handler
	db         *sql.DB
	mq         *mq.MQ
}

// New opens the database and the optional cover storage and recompute queue
// selected by cfg, and wires them into a Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := Dependencies{DB: dbConn}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if objects != nil {
		deps.Covers = objects
	} else {
		log.Ctx(ctx).Info().Msg("no storage backend configured, cover uploads disabled")
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if broker != nil {
		deps.Queue = mq.NewRatingQueue(broker, cfg.MQ.RatingChannel)
	}

	router, err := NewRouter(cfg, deps)
	if err != nil {
		_ = dbConn.Close()
		if broker != nil {
			_ = broker.Close()
		}
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
	}, nil
}

// NewRouter builds the HTTP API on top of deps.
func NewRouter(cfg config.Config, deps Dependencies) (http.Handler, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	dialect, err := store.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = services.BcryptHasher{}
	}

	st := store.New(deps.DB, dialect)
	ratings := services.NewRatingAggregator(st)
	userService := services.NewUserService(st, hasher)
	bookService := services.NewBookService(st, deps.Covers)
	reviewService := services.NewReviewService(st, ratings, deps.Queue)
	libraryService := services.NewLibraryService(st)

	authMiddleware := handlers.RequireAuth(cfg.JWTSecret)
	adminOnly := handlers.RequireAdmin(userService)

	authHandler := handlers.NewAuthHandler(userService, cfg.JWTSecret, cfg.TokenTTL)
	profileHandler := handlers.NewProfileHandler(userService)
	adminHandler := handlers.NewAdminHandler(userService)
	bookHandler := handlers.NewBookHandler(bookService, reviewService, ratings)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	libraryHandler := handlers.NewLibraryHandler(libraryService)

	router := chi.NewRouter()
	router.Use(
		middleware.StripSlashes,
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(st))
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Route("/profile", func(r chi.Router) {
				handlers.ProfileRouter(r, profileHandler)
			})
			r.Route("/books", func(r chi.Router) {
				handlers.BookRouter(r, bookHandler, adminOnly, cfg.BookCreateRequiresAdmin)
			})
			r.Route("/reviews", func(r chi.Router) {
				handlers.ReviewRouter(r, reviewHandler)
			})
			r.Route("/library", func(r chi.Router) {
				handlers.LibraryRouter(r, libraryHandler)
			})
			r.With(adminOnly).Post("/promote-to-admin", adminHandler.Promote)
		})
	})
	return router, nil
}

// Router exposes the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, and then releases the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if cerr := s.mq.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close mq")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
