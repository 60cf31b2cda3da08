// Package server is the composition root: it opens the store, builds the
// services and handlers, and mounts them on one chi router.
//
// DEPENDENCY FLOW:
//
//	config.Config → store (sqlite.DB | mongostore.Store)
//	              → PostService, AuthService
//	              → PostHandler, AuthHandler, HealthHandler
//	              → routes
//
// Nothing below this package knows which store is in use.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/devconnect/internal/auth"
	"github.com/sakif/devconnect/internal/clock"
	"github.com/sakif/devconnect/internal/config"
	"github.com/sakif/devconnect/internal/handler"
	"github.com/sakif/devconnect/internal/middleware"
	"github.com/sakif/devconnect/internal/repository"
	"github.com/sakif/devconnect/internal/repository/mongostore"
	sqliteRepo "github.com/sakif/devconnect/internal/repository/sqlite"
	"github.com/sakif/devconnect/internal/service"
)

// backend is whichever store the config selected.
type backend struct {
	posts repository.PostRepository
	users repository.UserRepository
	ping  handler.Pinger
	close func(ctx context.Context) error
}

// Server holds the router and everything it owns that needs closing.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	store   backend
	limiter *middleware.RateLimiter

	// Services are exposed for cmd/seed, which writes through the same
	// validation paths as the API.
	Posts    *service.PostService
	Accounts *service.AuthService
}

// New opens the configured store and wires every route. On error nothing
// is left open.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		_ = store.close(context.Background())
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		limiter:  middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Posts:    service.NewPostService(store.posts, store.users, clock.Real{}, logger),
		Accounts: service.NewAuthService(store.users, tokens, auth.NewPasswordService(), logger),
	}
	s.setupRoutes(tokens)

	return s, nil
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Store {
	case config.StoreMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return backend{}, fmt.Errorf("opening mongo store: %w", err)
		}
		return backend{posts: st.Posts(), users: st.Users(), ping: st, close: st.Close}, nil

	default:
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return backend{}, fmt.Errorf("opening database: %w", err)
		}
		return backend{
			posts: db.Posts(),
			users: db.Users(),
			ping:  db,
			close: func(context.Context) error { return db.Close() },
		}, nil
	}
}

// setupRoutes mounts middleware and handlers.
//
// ROUTES:
//
//	GET    /healthz
//	GET    /auth/github/login            (404 unless GitHub is configured)
//	GET    /auth/github/callback
//	POST   /api/users                    register → {token}
//	POST   /api/auth                     login → {token}
//	GET    /api/auth                     current user            [auth]
//	       /api/posts/...                see PostHandler.Routes  [auth]
//
// MIDDLEWARE ORDER:
// RequestID and RealIP first so the logger and the rate limiter see the
// request ID and the real client address. CORS answers preflights before
// they count against the limit.
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			auth.TokenHeader,
		},
		MaxAge: 300,
	}))
	s.router.Use(s.limiter.Middleware)

	// A nil *GitHubProvider inside the interface would not compare equal
	// to nil, so the interface is only assigned when configured.
	var github handler.GitHubExchanger
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	authHandler := handler.NewAuthHandler(s.Accounts, github, s.logger)
	postHandler := handler.NewPostHandler(s.Posts, s.logger)
	healthHandler := handler.NewHealthHandler(s.store.ping, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth/github", func(r chi.Router) {
		r.Get("/login", authHandler.HandleGitHubLogin)
		r.Get("/callback", authHandler.HandleGitHubCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/users", authHandler.HandleRegister)
		r.Post("/auth", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/auth", authHandler.HandleMe)
			r.Route("/posts", postHandler.Routes)
		})
	})
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store and stops the rate limiter's cleanup.
func (s *Server) Close(ctx context.Context) error {
	s.limiter.Stop()
	return s.store.close(ctx)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Close(ctx); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.Store),
			slog.Bool("github_login", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
