package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/curiohq/curio/internal/handler"
	"github.com/curiohq/curio/internal/server/middleware"
	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	UploadsDir      string

	// Per-IP requests per minute. AuthRateLimit guards the two endpoints
	// that accept guessable credentials.
	GeneralRateLimit int
	AuthRateLimit    int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8080,
		ShutdownTimeout:  30 * time.Second,
		CORSOrigins:      []string{"*"},
		UploadsDir:       "data/uploads",
		GeneralRateLimit: 300,
		AuthRateLimit:    10,
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the SQLite
// store, the auth service, and the visibility policy.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	policy     *service.Policy
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, policy *service.Policy, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		authSvc: authSvc,
		policy:  policy,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	authHandler := handler.NewAuthHandler(s.authSvc)
	keyHandler := handler.NewKeyHandler(s.authSvc, s.store)
	resourceHandler := handler.NewResourceHandler(s.store, s.policy)
	taxonomyHandler := handler.NewTaxonomyHandler(s.store, s.policy, resourceHandler)
	configHandler := handler.NewConfigHandler(s.store)
	uploadHandler := handler.NewUploadHandler(s.cfg.UploadsDir)
	healthHandler := handler.NewHealthHandler(s.store)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.GeneralRateLimit))
		r.Use(middleware.Resolve(s.authSvc))

		r.Get("/health", healthHandler.Health)

		// Credential-accepting endpoints get the tight limit.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.AuthRateLimit))
			r.Post("/auth/login", authHandler.Login)
			r.Post("/keys/verify", keyHandler.VerifyKey)
		})

		r.Post("/auth/verify", authHandler.VerifyToken)
		r.Post("/auth/logout", authHandler.Logout)

		// Public reads; visibility is decided per caller inside the handler.
		r.Get("/resources", resourceHandler.ListAll)
		r.Get("/resources/{category}", resourceHandler.GetCategory)
		r.Get("/filters/{category}", taxonomyHandler.GetFilters)
		r.Get("/config/header", configHandler.GetHeader)

		// Everything below requires admin privilege from either path.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth())
			r.Use(middleware.RequireAdmin())

			r.Post("/auth/update-password", authHandler.UpdatePassword)
			r.Post("/auth/generate-password-hash", authHandler.GeneratePasswordHash)

			r.Get("/keys", keyHandler.List)
			r.Post("/keys/generate", keyHandler.Generate)
			r.Put("/keys/{code}", keyHandler.Rename)
			r.Delete("/keys/{code}", keyHandler.Delete)

			r.Post("/resources", resourceHandler.Upsert)
			r.Post("/resources/batch", resourceHandler.Batch)
			r.Delete("/resources/{id}", resourceHandler.Delete)

			r.Post("/filters", taxonomyHandler.UpsertFilter)
			r.Delete("/filters/{category}/{tag}", taxonomyHandler.DeleteFilter)
			r.Post("/tag-dictionary", taxonomyHandler.UpsertTagEntry)
			r.Delete("/tag-dictionary/{category}/{tag}", taxonomyHandler.DeleteTagEntry)

			r.Post("/config/header", configHandler.SetHeader)
			r.Post("/upload/image", uploadHandler.Image)
		})
	})

	// Uploaded images are public static files.
	uploadsFS := http.StripPrefix("/data/uploads/", http.FileServer(http.Dir(s.cfg.UploadsDir)))
	r.Get("/data/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "..") {
			http.NotFound(w, req)
			return
		}
		uploadsFS.ServeHTTP(w, req)
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then drains in-flight requests and closes the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
