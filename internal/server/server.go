// Package server wires the dependency graph and owns the HTTP lifecycle:
// which routes map to which handlers, what middleware runs where, and how
// the process starts and stops.
//
// Layering: handlers never touch the database, services never touch HTTP.
// Everything is assembled here, the composition root, and nowhere else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/vibelist/internal/auth"
	"github.com/sakif/vibelist/internal/config"
	"github.com/sakif/vibelist/internal/generator"
	"github.com/sakif/vibelist/internal/handler"
	"github.com/sakif/vibelist/internal/middleware"
	"github.com/sakif/vibelist/internal/repository"
	sqliteRepo "github.com/sakif/vibelist/internal/repository/sqlite"
	"github.com/sakif/vibelist/internal/resolver"
	"github.com/sakif/vibelist/internal/service"
	"github.com/sakif/vibelist/internal/spotify"
	"github.com/sakif/vibelist/internal/storage"
)

// generateLimit throttles the expensive generation endpoints per user.
const (
	generateLimit  = 5
	generateWindow = time.Minute
)

type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB // owned by the server, closed on shutdown
}

// New builds the full dependency graph: database, platform clients, services,
// handlers, routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	cfg := s.config

	// Global middleware, in order: request ID for tracing, real client IP
	// from proxy headers, request logging, panic recovery.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	sessions, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}
	provider, err := auth.NewSpotifyProvider(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyRedirectURL)
	if err != nil {
		return fmt.Errorf("creating spotify provider: %w", err)
	}
	images, err := storage.NewImageStore(cfg.ImageDir, cfg.PublicBaseURL+"/images")
	if err != nil {
		return fmt.Errorf("creating image store: %w", err)
	}

	catalog := spotify.NewClient(s.logger)
	gen := generator.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, s.logger)

	// *sqlite.DB implements both repository interfaces.
	var users repository.UserRepository = s.db
	var playlists repository.PlaylistRepository = s.db

	authService := service.NewAuthService(users, provider, sessions, s.logger)
	tokenManager := service.NewTokenManager(users, provider, catalog, s.logger)
	creditService := service.NewCreditService(users, s.logger)
	trackResolver := resolver.New(catalog, s.logger)
	playlistService := service.NewPlaylistService(
		playlists, users, creditService, tokenManager,
		gen, trackResolver, catalog, images, s.logger)

	authHandler := handler.NewAuthHandler(authService, tokenManager, s.logger)
	playlistHandler := handler.NewPlaylistHandler(playlistService, s.logger)
	userHandler := handler.NewUserHandler(creditService, s.logger)

	// Uploaded vibe images are served back under /images/.
	s.router.Handle("/images/*", http.StripPrefix("/images/", images.Handler()))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/spotify/login", authHandler.HandleLogin)
		r.Get("/spotify/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	generateLimiter := middleware.NewUserRateLimiter(generateLimit, generateWindow)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(sessions))

		r.Get("/me", authHandler.HandleMe)
		r.Post("/auth/refresh", authHandler.HandleRefreshToken)
		r.Get("/user/credits", userHandler.HandleCredits)

		r.Get("/playlists", playlistHandler.HandleList)
		r.Get("/playlists/{id}", playlistHandler.HandleGet)
		r.Post("/playlists/{id}/create", playlistHandler.HandlePublish)
		r.Patch("/playlists/{id}/visibility", playlistHandler.HandleSetVisibility)

		// Generation endpoints burn model tokens; they get a tighter
		// per-user limit.
		r.Group(func(r chi.Router) {
			r.Use(generateLimiter.Middleware)
			r.Post("/playlists/generate", playlistHandler.HandleGenerate)
			r.Post("/playlists/{id}/regenerate", playlistHandler.HandleRegenerate)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second, // generation requests carry image uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
