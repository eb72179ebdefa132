// Package server assembles the HTTP surface: storage selection, the
// scoring service, middleware, routes, and graceful lifecycle.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/reward360/pointsguard/internal/config"
	"github.com/reward360/pointsguard/internal/health"
	"github.com/reward360/pointsguard/internal/logging"
	"github.com/reward360/pointsguard/internal/metrics"
	"github.com/reward360/pointsguard/internal/ratelimit"
	"github.com/reward360/pointsguard/internal/realtime"
	"github.com/reward360/pointsguard/internal/traces"
	"github.com/reward360/pointsguard/internal/transactions"
)

const version = "0.1.0"

// Connection pool sizing for the Postgres-backed store.
const (
	poolMaxOpen     = 25
	poolMaxIdle     = 5
	poolMaxLifetime = 5 * time.Minute
)

// Server owns every long-lived component and the gin engine that
// fronts them.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   transactions.Store
	service *transactions.Service
	hub     *realtime.Hub
	limiter *ratelimit.Limiter
	checks  *health.Registry

	db     *sql.DB // nil when running on the in-memory store
	engine *gin.Engine
	http   *http.Server

	flushTraces    func(context.Context) error
	stopBackground context.CancelFunc

	alive atomic.Bool
	ready atomic.Bool
}

// Option customizes construction.
type Option func(*Server)

// WithLogger replaces the logger built from config.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStore injects a pre-built store, bypassing DATABASE_URL selection.
// Tests use this to run against a seeded MemoryStore.
func WithStore(store transactions.Store) Option {
	return func(s *Server) { s.store = store }
}

// New wires the full server. It opens (and migrates) the database when
// DATABASE_URL is set, otherwise falls back to the in-memory store.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	flush, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s.flushTraces = flush

	if s.store == nil {
		if err := s.openStore(ctx); err != nil {
			return nil, err
		}
	}

	s.hub = realtime.NewHub(s.logger)
	s.service = transactions.NewService(s.store).WithEvents(s.hub)

	s.checks.Register("store", s.storeCheck)
	if s.db != nil {
		s.checks.Register("database", s.databaseCheck)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.installMiddleware()
	s.installRoutes()

	s.alive.Store(true)
	return s, nil
}

// openStore picks the backing store from config and runs migrations
// when the store is Postgres.
func (s *Server) openStore(ctx context.Context) error {
	if s.cfg.DatabaseURL == "" {
		s.store = transactions.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
		return nil
	}

	db, err := sql.Open("postgres", s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(poolMaxOpen)
	db.SetMaxIdleConns(poolMaxIdle)
	db.SetConnMaxLifetime(poolMaxLifetime)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	pg := transactions.NewPostgresStore(db)
	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate transaction store: %w", err)
	}

	s.db = db
	s.store = pg
	s.logger.Info("using PostgreSQL storage", "url", maskDSN(s.cfg.DatabaseURL))
	return nil
}

// maskDSN redacts the password so connection strings are safe to log.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// Run serves until the context is cancelled, a termination signal
// arrives, or the listener fails. It always drains through Shutdown.
func (s *Server) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	s.stopBackground = cancel

	s.http = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	go s.hub.Run(bgCtx)
	if s.db != nil {
		go metrics.StartDBStatsCollector(bgCtx, s.db, 15*time.Second)
	}

	// Flip readiness once the listener has had a moment to bind.
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-signals:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown drops readiness first so load balancers drain traffic, then
// stops the listener, background workers, and the database pool.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.stopBackground != nil {
		s.stopBackground()
	}

	// Let in-flight health probes observe not-ready before we close.
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.flushTraces != nil {
		if err := s.flushTraces(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}
