// Package api provides HTTP handlers and the main server logic for GapBot.
//
// It exposes the inbound WhatsApp webhook, a health probe, and the reminder
// sweep trigger. The API integrates the store, conversation engine, messaging,
// and scheduler modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gap-labs/gapbot/internal/engine"
	"github.com/gap-labs/gapbot/internal/messaging"
	"github.com/gap-labs/gapbot/internal/reminder"
	"github.com/gap-labs/gapbot/internal/scheduler"
	"github.com/gap-labs/gapbot/internal/store"
)

// Default server configuration constants
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown on termination signals.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	ReminderCron string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithReminderCron sets the cron expression for the in-process reminder sweep.
// An empty expression disables the internal scheduler.
func WithReminderCron(expr string) Option {
	return func(o *Opts) { o.ReminderCron = expr }
}

// Server wires the store, conversation engine, and messaging service behind
// the HTTP surface.
type Server struct {
	store   store.Store
	msg     messaging.Service
	engine  *engine.Engine
	sweeper *reminder.Sweeper
}

// NewServer creates a Server over the given store and messaging service.
func NewServer(st store.Store, msg messaging.Service) *Server {
	return &Server{
		store:   st,
		msg:     msg,
		engine:  engine.New(st),
		sweeper: reminder.NewSweeper(st, msg),
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/whatsapp", s.whatsappHandler)
	mux.HandleFunc("/ping", s.pingHandler)
	mux.HandleFunc("/cron/remind", s.remindHandler)
	return mux
}

// Run constructs the store and serves the API until a termination signal.
func Run(storeOpts []store.Option, msgService messaging.Service, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	srv := NewServer(st, msgService)

	// Internal reminder scheduling; external callers can still hit /cron/remind.
	if cfg.ReminderCron != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		err := sched.AddJob(cfg.ReminderCron, func() {
			if _, err := srv.sweeper.Sweep(context.Background()); err != nil {
				slog.Error("Scheduled reminder sweep failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid reminder cron expression %q: %w", cfg.ReminderCron, err)
		}
		slog.Info("Internal reminder sweep scheduled", "cron", cfg.ReminderCron)
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("GapBot API running", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutting down on signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// buildStore picks a backend from the store options: Postgres or SQLite when a
// DSN was configured, in-memory otherwise.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", cfg.DSN)
	return store.NewSQLiteStore(storeOpts...)
}
