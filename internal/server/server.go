// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: it decides which store backend is
// used, wires the services over it, maps URLs to handlers and owns the
// server lifecycle (startup bootstrap, graceful shutdown, closing the store).
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go:   config.Load → logging.New → server.New
//	server.New: OpenBackend → store.New → NewServices → handlers → routes
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/config"
	"github.com/sakif/ziphub/internal/handler"
	"github.com/sakif/ziphub/internal/middleware"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store (and through it the backend's files or database
// handle) and the rate limiter's cleanup goroutine. Both are released by
// Close, which Start calls on its way out.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	services *Services
	limiter  *middleware.RateLimiter
}

// New opens the store, runs the startup bootstrap and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	svc, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Prepare(ctx, logger); err != nil {
		svc.Store.Close()
		return nil, err
	}

	s, err := newServer(cfg, svc, logger)
	if err != nil {
		svc.Store.Close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, svc *Services, logger *slog.Logger) (*Server, error) {
	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		var err error
		if tokens, err = auth.NewTokenService(cfg.JWTSecret); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("JWT_SECRET not set, session cookies carry the raw token")
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		services: svc,
		limiter:  middleware.NewRateLimiter(cfg.AuthRatePerMinute, cfg.AuthBurst),
	}
	s.setupRoutes(auth.NewCookies(tokens, cfg.SecureCookies))
	return s, nil
}

// Handler returns the root handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique id to each request
//  2. RealIP: RemoteAddr from X-Forwarded-For, so rate limits are per client
//  3. Recoverer: a panic becomes a 500 instead of killing the process
//  4. Logger: one line per request
func (s *Server) setupRoutes(cookies *auth.Cookies) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ok":true,"ts":%d}`+"\n", time.Now().UnixMilli())
	})
	s.router.Handle("/metrics", promhttp.Handler())

	if info, err := os.Stat(s.config.PublicDir); err == nil && info.IsDir() {
		fileServer := http.FileServer(http.Dir(s.config.PublicDir))
		s.router.Handle("/public/*", http.StripPrefix("/public/", fileServer))
	}

	svc := s.services
	authHandler := handler.NewAuthHandler(svc.Identity, cookies, s.logger)
	devHandler := handler.NewDeveloperHandler(svc.Social, svc.Profile, s.logger)
	fileHandler := handler.NewFileHandler(svc.Content, s.logger)
	adminHandler := handler.NewAdminHandler(svc.Admin, s.logger)
	requireSession := auth.RequireSession(svc.Identity, cookies)

	s.router.Route("/api", func(r chi.Router) {
		// === Public ===
		r.With(s.limiter.Middleware).Post("/auth/register", authHandler.HandleRegister)
		r.With(s.limiter.Middleware).Post("/auth/login", authHandler.HandleLogin)
		r.Get("/dev/list", devHandler.HandleList)
		r.Get("/dev/{id}", devHandler.HandleGet)
		r.Get("/files/list", fileHandler.HandleList)

		// === Session required ===
		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Get("/auth/me", authHandler.HandleMe)
			r.Post("/auth/logout", authHandler.HandleLogout)
			r.Post("/dev/profile", devHandler.HandleUpdateProfile)
			r.Post("/follow/{developerId}", devHandler.HandleFollow)
			r.Post("/files/upload", fileHandler.HandleUpload)
			r.Post("/files/like", fileHandler.HandleLike)
			r.Post("/files/comment", fileHandler.HandleComment)
			r.Post("/report", fileHandler.HandleReport)

			// Admin checks happen in AdminService.
			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", adminHandler.HandleStats)
				r.Get("/reports", adminHandler.HandleReports)
				r.Post("/delete-file", adminHandler.HandleDeleteFile)
				r.Post("/approve-dev", adminHandler.HandleApprove)
				r.Post("/verify", adminHandler.HandleVerify)
				r.Post("/create-verified", adminHandler.HandleCreateVerified)
			})
		})
	})
}

// Close releases the rate limiter and the store.
func (s *Server) Close() error {
	s.limiter.Close()
	return s.services.Store.Close()
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait up to ShutdownTimeout for in-flight requests
//  3. close the store (flushes badger, releases the sqlite handle)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreBackend),
			slog.String("dataDir", s.config.DataDir),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
