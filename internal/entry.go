// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/builder"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/devserver"
	"github.com/starford/raido/internal/loader"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/watch"
)

// env groups everything a command needs after initialization.
type env struct {
	cfg     *Config
	logger  *slog.Logger
	builder *builder.Builder
	store   storage.Provider
	root    string // absolute project root

	close func()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
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
	slog.SetDefault(app.logger)
	return app, nil
}

// setup initializes the output store, the build cache, and the builder from
// the configuration.
func setup(app *application) (*env, error) {
	cfg := app.config
	logger := app.logger

	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	store, err := storage.NewFS(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("init output store: %w", err)
	}

	var db *cache.DB
	var bcache builder.Cache
	if cfg.Cache.Path != "" {
		db, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("init build cache: %w", err)
		}
		bcache = db
	}

	b := builder.New(builder.Config{
		Root:           root,
		Entries:        cfg.Project.Entries,
		VendorDir:      cfg.Project.Vendor.Dir,
		VendorPrefixes: cfg.Project.Vendor.Prefixes,
		Extensions:     cfg.Project.Extensions,
		Template:       cfg.Output.Template,
	}, store, bcache, logger)

	logger.Info("Configuration loaded",
		slog.String("project_root", root),
		slog.String("output_dir", cfg.Output.Dir),
		slog.Int("entries", len(cfg.Project.Entries)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return &env{
		cfg:     cfg,
		logger:  logger,
		builder: b,
		store:   store,
		root:    root,
		close: func() {
			if db != nil {
				db.Close()
			}
		},
	}, nil
}

// watchIgnores returns root-relative prefixes the watcher must skip so build
// outputs never retrigger builds.
func (e *env) watchIgnores() []string {
	var out []string
	for _, p := range []string{e.cfg.Output.Dir, e.cfg.Cache.Path} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(e.root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// RunBuild performs a single build and exits.
func RunBuild(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.builder.Build(ctx)
	if err != nil {
		return err
	}
	for _, a := range res.Artifacts {
		e.logger.Info("artifact",
			slog.String("chunk", a.Chunk),
			slog.String("kind", string(a.Kind)),
			slog.String("file", a.File),
			slog.Int("size", a.Size))
	}
	e.logger.Info("artifact", slog.String("chunk", "manifest"), slog.String("file", res.ManifestFile))
	return nil
}

// RunGraph builds the module graph and prints it as JSON on stdout.
func RunGraph(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.close()

	if _, err := e.builder.Build(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(e.builder.Graph())
}

// RunWatch builds once, then rebuilds on source changes until the context is
// cancelled. events may be nil; when set, build lifecycle events are
// published to it.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.close()

	if _, err := e.builder.Build(ctx); err != nil {
		return err
	}
	return watch.Watch(ctx, e.root, e.watchIgnores(), e.logger, func(ctx context.Context, changed []string) {
		e.rebuild(ctx, nil, nil, changed)
	})
}

// rebuild runs one watch-triggered build, swapping the loader cache and
// publishing lifecycle events when those collaborators are present. Build
// failures are logged, not fatal: the previous artifacts stay served.
func (e *env) rebuild(ctx context.Context, l *loader.Loader, broker *sse.Broker, changed []string) {
	if broker != nil {
		broker.PublishBuildEvent(sse.BuildStarted, map[string]any{"trigger": "watch", "changed": changed})
	}
	res, err := e.builder.Build(ctx)
	if err != nil {
		e.logger.Error("rebuild failed", slog.String("error", err.Error()))
		if broker != nil {
			broker.PublishBuildEvent(sse.BuildFailed, map[string]any{"error": err.Error()})
		}
		return
	}
	if l != nil {
		l.Invalidate()
	}
	if broker != nil {
		broker.PublishBuildEvent(sse.BuildSucceeded, map[string]any{
			"modules": res.Modules,
			"chunks":  len(res.Artifacts),
		})
	}
}

// RunMCP serves the MCP stdio transport. The logger must not write to
// stdout; main wires a stderr logger through WithLogger.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.close()

	return mcpserver.New(e.builder).ServeStdio()
}

// Run starts the dev server with the given options: initial build, file
// watcher, SSE live reload, and the HTTP API.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := setup(app)
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	logger := e.logger

	// Initial build. A failure is not fatal: the server comes up and watch
	// rebuilds recover once sources are fixed.
	if _, err := e.builder.Build(ctx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(250 * time.Millisecond)
	defer broker.Close()

	chunkLoader := loader.NewFS(e.store)

	h := devserver.NewHandler(e.builder, chunkLoader, broker)
	apiRouter := devserver.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with rebuild-on-change.
	g.Go(func() error {
		return watch.Watch(gCtx, e.root, e.watchIgnores(), logger, func(ctx context.Context, changed []string) {
			e.rebuild(ctx, chunkLoader, broker, changed)
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

	logger.Info("Server stopped successfully")
	return nil
}
