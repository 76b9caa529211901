package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nxtgm/feedserver/config"
	"github.com/nxtgm/feedserver/internal/db"
	"github.com/nxtgm/feedserver/internal/events"
	"github.com/nxtgm/feedserver/internal/handlers"
	"github.com/nxtgm/feedserver/internal/services"
	"github.com/nxtgm/feedserver/internal/storage"
	"github.com/nxtgm/feedserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	mongo      *db.Mongo
	publisher  events.Publisher
}

// New constructs a Server with basic middleware and defaults. The store
// connection is verified up front so a misconfigured database fails the
// process at start rather than on the first request.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	mongo := db.New(cfg.Mongo)
	if err := mongo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	publisher, err := events.New(ctx, cfg.Events)
	if err != nil {
		_ = mongo.Close(ctx)
		return nil, err
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = publisher.Close()
		_ = mongo.Close(ctx)
		return nil, err
	}

	accountRepo := store.NewAccountRepository(mongo)
	postRepo := store.NewPostRepository(mongo)

	accountService := services.NewAccountService(accountRepo)
	feedService := services.NewFeedService(postRepo, accountRepo, publisher)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Liveness)
	router.Route("/api", func(r chi.Router) {
		handlers.AccountRouter(r, accountService)
		handlers.FeedRouter(r, feedService)
		if images != nil {
			handlers.MediaUploadRouter(r, images)
		}
	})
	if images != nil {
		handlers.MediaServeRouter(router, images)
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		mongo:      mongo,
		publisher:  publisher,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.mongo != nil {
		_ = s.mongo.Close(context.Background())
	}
	return s.httpServer.Close()
}
