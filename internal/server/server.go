// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: every dependency is built in New
// and wired to its routes in routes(), rather than scattered across the
// codebase. main.go stays minimal.
//
// DEPENDENCY FLOW:
//
//	config → sqlstore.DB ─┬→ session.Provider (users, cache, tokens, google)
//	                      ├→ handler.APIHandler / handler.PageHandler (per-request stores)
//	                      └→ alert.Sweeper (expiring items → email)
//	session.Provider → realtime.Hub (websocket push)
//	OCR engine, receipt archive → handler.APIHandler (optional)
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/wastenot/internal/alert"
	"github.com/sakif/wastenot/internal/auth"
	"github.com/sakif/wastenot/internal/blob"
	"github.com/sakif/wastenot/internal/cache"
	"github.com/sakif/wastenot/internal/config"
	"github.com/sakif/wastenot/internal/handler"
	"github.com/sakif/wastenot/internal/middleware"
	"github.com/sakif/wastenot/internal/ocr"
	dockerocr "github.com/sakif/wastenot/internal/ocr/docker"
	"github.com/sakif/wastenot/internal/ocr/rekognition"
	"github.com/sakif/wastenot/internal/realtime"
	"github.com/sakif/wastenot/internal/reimaginer"
	"github.com/sakif/wastenot/internal/repository/sqlstore"
	"github.com/sakif/wastenot/internal/session"
	"github.com/sakif/wastenot/web"
)

// Server owns the router and every long-lived resource. Start closes them
// on shutdown in reverse order of creation.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	router   *chi.Mux
	db       *sqlstore.DB
	cache    cache.Cache
	sessions *session.Provider
	hub      *realtime.Hub
	ocr      ocr.Engine
	receipts handler.ReceiptArchive
	sweeper  *alert.Sweeper
	registry *prometheus.Registry

	closers []func() error
}

// New builds every dependency from cfg. Optional integrations (OCR,
// receipt archive, Google sign-in, alert email) that fail to start are
// logged and left off; the database, cache and tokens are required.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger, router: chi.NewRouter()}
	if err := s.build(ctx); err != nil {
		s.close()
		return nil, err
	}
	if err := s.routes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) build(ctx context.Context) error {
	cfg := s.cfg

	// === DATABASE ===
	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	dsn := cfg.Database.Path
	if dialect == sqlstore.Postgres {
		dsn = cfg.Database.URL
	}
	s.db, err = sqlstore.New(dialect, dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.closers = append(s.closers, s.db.Close)

	// === CACHE ===
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return err
		}
		s.cache = rc
	default:
		s.cache = cache.NewMemoryCache()
	}
	s.closers = append(s.closers, s.cache.Close)

	// === IDENTITY ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	var google session.OAuthProvider
	if cfg.Auth.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleCallbackURL)
	} else {
		s.logger.Info("google sign-in disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}
	s.sessions = session.NewProvider(s.db.Users(), tokens, auth.NewPasswordService(), google, s.cache, s.logger)
	s.hub = realtime.NewHub(s.sessions, cfg.Server.AllowedOrigins, s.logger)

	// === OPTIONAL INTEGRATIONS ===
	s.ocr = s.buildOCR(ctx)
	if cfg.Blob.Bucket != "" {
		rs, err := blob.New(ctx, blob.Config{
			Bucket:    cfg.Blob.Bucket,
			Region:    cfg.Blob.Region,
			Endpoint:  cfg.Blob.Endpoint,
			PathStyle: cfg.Blob.PathStyle,
		})
		if err != nil {
			s.logger.Warn("receipt archive unavailable", slog.String("error", err.Error()))
		} else {
			s.receipts = rs
		}
	}
	if cfg.Alerts.Enabled {
		mailer := alert.NewSMTPMailer(alert.SMTPConfig{
			Host:     cfg.Alerts.SMTPHost,
			Port:     cfg.Alerts.SMTPPort,
			Username: cfg.Alerts.SMTPUser,
			Password: cfg.Alerts.SMTPPassword,
			From:     cfg.Alerts.From,
		})
		s.sweeper = alert.NewSweeper(s.db.Alerts(), mailer, s.cache, s.logger, cfg.Alerts.Interval, cfg.App.BaseURL)
	}

	// === METRICS ===
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

// buildOCR starts the configured engine. The server runs without one; the
// scan endpoint then answers 503.
func (s *Server) buildOCR(ctx context.Context) ocr.Engine {
	cfg := s.cfg.OCR
	switch cfg.Engine {
	case "docker":
		dc := dockerocr.DefaultConfig()
		dc.Image = cfg.Image
		if cfg.PoolSize > 0 {
			dc.PoolSize = cfg.PoolSize
		}
		if cfg.Timeout > 0 {
			dc.Timeout = cfg.Timeout
		}
		engine, err := dockerocr.New(ctx, dc, s.logger)
		if err != nil {
			s.logger.Warn("docker OCR unavailable, /api/pantry/scan will return 503", slog.String("error", err.Error()))
			return nil
		}
		s.closers = append(s.closers, engine.Close)
		return engine
	case "rekognition":
		engine, err := rekognition.New(ctx, cfg.AWSRegion)
		if err != nil {
			s.logger.Warn("rekognition OCR unavailable, /api/pantry/scan will return 503", slog.String("error", err.Error()))
			return nil
		}
		return engine
	}
	return nil
}

// routes configures middleware and handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz, /metrics      liveness, Prometheus
//	GET  /static/*               CSS
//	     /auth/*                 sign-up, sign-in, Google, sign-out, refresh
//	     /api/*                  JSON API, token required
//	     / and the other pages   server-rendered HTML
//
// MIDDLEWARE ORDER MATTERS: RequestID first so the logger can print it,
// Recoverer last so a panic anywhere below still gets logged as a 500.
func (s *Server) routes() error {
	metrics := middleware.NewMetrics(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.assets(s.cfg.Server.StaticDir, web.Static())))))

	repos := handler.Repositories{
		Users:     s.db.Users(),
		Pantry:    s.db.Pantry(),
		Donations: s.db.Donations(),
		Sales:     s.db.Sales(),
		Profiles:  s.db.Profiles(),
		Stats:     s.db.Profiles(),
	}
	chat := reimaginer.New(nil)

	pages, err := handler.NewPageHandler(handler.PageDeps{
		Repos:      repos,
		Sessions:   s.sessions,
		Templates:  s.assets(s.cfg.Server.TemplateDir, web.Templates()),
		Reimaginer: chat,
		Logger:     s.logger,
	})
	if err != nil {
		return err
	}
	pages.Routes(s.router)

	authHandler := handler.NewAuthHandler(s.sessions, s.cfg.Auth.SecureCookies, s.logger)
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/signout", authHandler.HandleSignOut)
		r.Post("/refresh", authHandler.HandleRefresh)
	})

	api := handler.NewAPIHandler(handler.APIDeps{
		Repos:          repos,
		Sessions:       s.sessions,
		Hub:            s.hub,
		OCR:            s.ocr,
		Receipts:       s.receipts,
		Reimaginer:     chat,
		MaxUploadBytes: s.cfg.OCR.MaxUploadMB << 20,
		Logger:         s.logger,
	})
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.sessions))
		api.Routes(r)
	})
	return nil
}

// assets prefers dir on disk, so templates can be edited without a
// rebuild, and falls back to the embedded copy.
func (s *Server) assets(dir string, embedded fs.FS) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return embedded
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
//  1. stop accepting connections and wait for in-flight requests
//  2. disconnect websocket clients and stop the background workers
//  3. close the OCR pool, cache and database
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Deferred after s.close, so the workers are gone before the database is.
	var workers []func(context.Context)
	if s.sweeper != nil {
		workers = append(workers, s.sweeper.Run)
	}
	stopWorkers := startWorkers(workers...)
	defer stopWorkers()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("url", s.cfg.App.BaseURL),
			slog.String("database", s.db.Dialect().String()),
			slog.Bool("ocr", s.ocr != nil),
			slog.Bool("alerts", s.sweeper != nil),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// startWorkers runs each worker on its own goroutine. The returned stop
// cancels their context and waits for every one of them to return.
func startWorkers(workers ...func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, run := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	return func() {
		cancel()
		wg.Wait()
	}
}

// close releases resources in reverse order of creation.
func (s *Server) close() {
	if s.hub != nil {
		s.hub.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("closing resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
