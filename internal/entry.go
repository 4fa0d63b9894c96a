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

	"github.com/starford/sowilo/internal/api"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/learnservice"
	"github.com/starford/sowilo/internal/mcpserver"
	"github.com/starford/sowilo/internal/nodestore"
	"github.com/starford/sowilo/internal/sse"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/vcs"
)

// Components are the wired pieces shared by the HTTP server, the MCP server,
// and one-shot CLI commands.
type Components struct {
	Config    *Config
	Logger    *slog.Logger
	Files     storage.Provider
	DB        *index.DB
	Nodes     *nodestore.Store
	Service   *learnservice.Service
	Snapshots *vcs.Repo
}

// Close releases the index.
func (c *Components) Close() error {
	return c.DB.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// Open wires storage, the index, the node store, and the learning service.
// The index is synced with the vault before Open returns.
func Open(opts ...Option) (*Components, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return app.open(nil)
}

func (a *application) open(events learnservice.EventFunc) (*Components, error) {
	cfg := a.config
	logger := a.logger

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	files, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, files, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	nodes := nodestore.New(files, logger, nodestore.WithWriteHook(func(file string, data []byte) {
		if _, err := index.IndexFile(db, file, data); err != nil {
			logger.Warn("reindex after write failed",
				slog.String("file", file),
				slog.String("error", err.Error()))
		}
	}))

	var svcOpts []learnservice.Option
	if events != nil {
		svcOpts = append(svcOpts, learnservice.WithEvents(events))
	}
	svc := learnservice.New(nodes, db, cfg.Learning.Settings(), logger, svcOpts...)

	return &Components{
		Config:    cfg,
		Logger:    logger,
		Files:     files,
		DB:        db,
		Nodes:     nodes,
		Service:   svc,
		Snapshots: vcs.New(files.Root(), cfg.Git.Author(), logger),
	}, nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open(nil)
	if err != nil {
		return err
	}
	defer c.Close()

	app.logger.Info("MCP server starting on stdio", slog.String("vault_path", app.config.Vault.Path))
	return mcpserver.New(c.Service, app.version).ServeStdio()
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Int("mastery_threshold", cfg.Learning.MasteryThreshold),
		slog.Bool("git_enabled", cfg.Git.Enabled))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.open(broker.PublishNodeEvent)
	if err != nil {
		return err
	}
	defer c.Close()

	apiRouter := api.NewRouter(c.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := c.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, c.DB, c.Files, logger, broker.PublishNodeEvent)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		if cfg.Git.Enabled {
			snapshot(shutdownCtx, c.Snapshots, logger)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops alongside the server.
var errShutdown = errors.New("shutdown")

func snapshot(ctx context.Context, repo *vcs.Repo, logger *slog.Logger) {
	hash, err := repo.Snapshot(ctx, "")
	switch {
	case errors.Is(err, vcs.ErrNothingToCommit):
		logger.Info("vault unchanged, no snapshot taken")
	case err != nil:
		logger.Error("vault snapshot failed", slog.String("error", err.Error()))
	default:
		logger.Info("vault snapshot taken", slog.String("hash", hash))
	}
}
