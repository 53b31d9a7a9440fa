// Package builder orchestrates one build: resolve entries, construct the
// module graph, partition it into chunks, and emit artifacts plus the
// manifest chunk. It also keeps the latest graph and result for the API,
// MCP, and CLI surfaces.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/raido/internal/chunk"
	"github.com/starford/raido/internal/emit"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/resolver"
	"github.com/starford/raido/internal/storage"
)

// Cache is the build cache contract: scan replay plus pruning of rows for
// modules that left the graph.
type Cache interface {
	graph.ScanCache
	Prune(keep map[string]struct{}) error
}

// Config carries the project parameters for a Builder.
type Config struct {
	Root           string // absolute project root
	Entries        map[string]string
	VendorDir      string
	VendorPrefixes []string
	Extensions     []string
	Template       string
	Concurrency    int
}

// Result summarizes one completed build.
type Result struct {
	Artifacts    []emit.Artifact `json:"artifacts"`
	ManifestFile string          `json:"manifest_file"`
	Modules      int             `json:"modules"`
	Duration     time.Duration   `json:"duration"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// Builder runs builds for one project. Build may be called repeatedly (watch
// mode); concurrent calls are serialized.
type Builder struct {
	cfg    Config
	store  storage.Provider
	cache  Cache // optional
	logger *slog.Logger

	buildMu sync.Mutex

	mu         sync.RWMutex
	lastGraph  *graph.Graph
	lastResult *Result
	manifest   *emit.Manifest
}

// New creates a Builder. cache may be nil to disable incremental scanning.
func New(cfg Config, store storage.Provider, cache Cache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, store: store, cache: cache, logger: logger}
}

// Build runs the full pipeline once.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	start := time.Now()

	entries := make([]graph.Entry, 0, len(b.cfg.Entries))
	for name, path := range b.cfg.Entries {
		entries = append(entries, graph.Entry{Name: name, Path: path})
	}

	gb := &graph.Builder{
		Root:        b.cfg.Root,
		Resolver:    resolver.New(b.cfg.Root, b.cfg.VendorDir, b.cfg.Extensions),
		Concurrency: b.cfg.Concurrency,
		Logger:      b.logger,
	}
	if b.cache != nil {
		gb.Cache = b.cache
	}

	g, err := gb.Build(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	a, err := chunk.Assign(g, chunk.Policy{VendorPrefixes: b.cfg.VendorPrefixes})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	em := &emit.Emitter{Root: b.cfg.Root, Store: b.store, Template: b.cfg.Template, Logger: b.logger}
	res, err := em.Emit(g, a)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	if b.cache != nil {
		keep := map[string]struct{}{}
		for p := range g.Modules {
			keep[p] = struct{}{}
		}
		if err := b.cache.Prune(keep); err != nil {
			b.logger.Warn("build: cache prune failed", slog.String("error", err.Error()))
		}
	}

	result := &Result{
		Artifacts:    res.Artifacts,
		ManifestFile: res.ManifestFile,
		Modules:      len(g.Modules),
		Duration:     time.Since(start),
		FinishedAt:   time.Now(),
	}

	b.mu.Lock()
	b.lastGraph = g
	b.lastResult = result
	b.manifest = res.Manifest
	b.mu.Unlock()

	b.logger.Info("build: finished",
		slog.Int("modules", result.Modules),
		slog.Int("chunks", len(result.Artifacts)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// Graph returns the module graph from the most recent successful build, or
// nil when no build has completed yet.
func (b *Builder) Graph() *graph.Graph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastGraph
}

// Manifest returns the manifest from the most recent successful build.
func (b *Builder) Manifest() *emit.Manifest {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manifest
}

// LastResult returns the most recent successful build result.
func (b *Builder) LastResult() *Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastResult
}
