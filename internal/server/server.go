// Package server wires the dependency graph and runs the HTTP server.
//
// This is the composition root: main creates a Config, New assembles
// KV store -> repositories -> services -> handlers -> router, and Start
// runs until a shutdown signal arrives. Nothing here is a singleton;
// tests assemble their own instances.
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

	"github.com/sakif/devtoolbox/internal/auth"
	"github.com/sakif/devtoolbox/internal/config"
	"github.com/sakif/devtoolbox/internal/handler"
	"github.com/sakif/devtoolbox/internal/kv/sqlitekv"
	"github.com/sakif/devtoolbox/internal/middleware"
	"github.com/sakif/devtoolbox/internal/repository/kvrepo"
	"github.com/sakif/devtoolbox/internal/service"
)

// Server owns the router and the KV store handle; the store is closed
// during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  *sqlitekv.DB
}

// New assembles the full dependency chain.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := sqlitekv.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes(tokens)

	return s, nil
}

// setupRoutes builds the middleware chain and the route table.
//
//	POST   /api/snippets                 create (optional auth)
//	GET    /api/snippets/public/recent   public listing (no auth)
//	GET    /api/snippets/{id}            read by id (optional auth)
//	DELETE /api/snippets/{id}            delete (required auth)
//	GET    /api/user/snippets            list own (required auth)
//	POST   /api/auth/signup              sign up
//	POST   /api/auth/signin              sign in
//	GET    /api/auth/me                  current principal (required auth)
//	GET    /share/{id}                   share link (optional auth)
//	GET    /health                       liveness
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.RateLimit(s.config.RatePerSecond, s.config.RateBurst))

	snippetRepo := kvrepo.NewSnippetRepo(s.store, s.logger)
	userRepo := kvrepo.NewUserRepo(s.store, s.logger)

	snippetSvc := service.NewSnippetService(snippetRepo, s.config.BaseURL, s.logger)
	authSvc := service.NewAuthService(userRepo, tokens, auth.NewPasswordService(), s.logger)

	snippetHandler := handler.NewSnippetHandler(snippetSvc, s.logger)
	authHandler := handler.NewAuthHandler(authSvc, s.logger)

	s.router.Get("/health", handler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Post("/snippets", snippetHandler.HandleCreate)
			// The literal route must register before the {id} route so
			// "public" is not captured as an id.
			r.Get("/snippets/public/recent", snippetHandler.HandleListPublic)
			r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/user/snippets", snippetHandler.HandleListOwn)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
			r.Get("/auth/me", authHandler.HandleMe)
		})

		r.Post("/auth/signup", authHandler.HandleSignup)
		r.Post("/auth/signin", authHandler.HandleSignin)
	})

	// Share links resolve through the same read-by-id path; the id's
	// unguessability is the only access control.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/share/{id}", snippetHandler.HandleGetByID)
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully and closes the store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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
