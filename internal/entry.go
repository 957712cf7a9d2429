// Package internal provides the main application initialization and runtime logic.
package internal

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/hollevik/vellum/internal/api"
	"github.com/hollevik/vellum/internal/autosave"
	"github.com/hollevik/vellum/internal/codec"
	"github.com/hollevik/vellum/internal/gateway"
	"github.com/hollevik/vellum/internal/index"
	"github.com/hollevik/vellum/internal/mcpserver"
	"github.com/hollevik/vellum/internal/models"
	"github.com/hollevik/vellum/internal/session"
	"github.com/hollevik/vellum/internal/sse"
	"github.com/hollevik/vellum/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	if app.logWriter == nil {
		app.logWriter = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(app.logWriter, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// The content key must be usable before anything touches the vault: a
	// key that cannot encrypt must refuse startup, not limp along writing
	// chapters it cannot open again.
	cdc, err := codec.New(cfg.Crypto.Secret)
	if err != nil {
		return fmt.Errorf("init codec: %w", err)
	}

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, cdc, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Build the editing session on top of the local gateway.
	gw := gateway.NewLocal(store, db, cdc)
	sess := session.New(gw, logger, broker.PublishChapterEvent)

	// Autosave scheduler feeding the session.
	sched := autosave.New(cfg.Autosave.Window(), func(id string, edit models.PendingEdit) {
		if err := sess.SaveChapter(context.Background(), id, edit); err != nil {
			logger.Warn("autosave failed", slog.String("chapter", id), slog.String("error", err.Error()))
		}
	})

	// Build API router.
	apiRouter := api.NewRouter(
		api.NewHandler(sess, sched),
		cfg.Auth.AuthEnabled(), cfg.Auth.Token,
		http.HandlerFunc(broker.ServeHTTP),
	)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher. Externally changed envelopes drop their session
	// cache entries and are announced over SSE.
	g.Go(func() error {
		return index.Watch(gCtx, db, store, cdc, cfg.Vault.Path, logger, func(kind, chapterID string) {
			sess.Invalidate(chapterID)
			broker.PublishChapterEvent("chapter."+kind, chapterID)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Buffered edits must land in the vault before the process exits.
		sched.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	broker.Close()
	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the same vault and index. It is
// mutually exclusive with Run; the caller picks one.
func RunMCP(cfg *Config) error {
	cdc, err := codec.New(cfg.Crypto.Secret)
	if err != nil {
		return fmt.Errorf("init codec: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	if err := index.Sync(db, store, cdc, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(gateway.NewLocal(store, db, cdc)).ServeStdio()
}
