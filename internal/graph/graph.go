// Package graph builds the module dependency graph for a set of entry points.
//
// The graph is rebuilt from scratch on every build: nodes are discovered by
// scanning entry roots and following resolved edges breadth-first. Per-file
// scan results can be served from a cache keyed by content checksum, so
// unchanged files are not re-scanned.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/resolver"
	"github.com/starford/raido/internal/scan"
)

// Edge is one dependency of a module. Raw is the specifier as written at the
// call site; the emitted runtime uses it to map call-site strings back to
// resolved module paths. Deferred edges come from import() / require.load()
// call sites and mark chunk split points.
type Edge struct {
	To       string `json:"to"`
	Raw      string `json:"raw,omitempty"`
	Deferred bool   `json:"deferred,omitempty"`
}

// Context is a require.context directory marker expanded at build time into
// a key → module lookup table. Raw is the directory specifier as written.
// Table values are also static edges of the owning module.
type Context struct {
	Raw   string            `json:"raw"`
	Dir   string            `json:"dir"`
	Table map[string]string `json:"table"`
}

// Module is one node in the graph. Identity is the resolved path relative to
// the project root, using forward slashes.
type Module struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Edges    []Edge    `json:"edges,omitempty"`
	Contexts []Context `json:"contexts,omitempty"`
}

// Entry names a root module to bundle independently.
type Entry struct {
	Name string
	Path string // as configured, e.g. "./src/index.js"
}

// ResolvedEntry is an entry whose root has been resolved to a module path.
type ResolvedEntry struct {
	Name string `json:"name"`
	Root string `json:"root"`
}

// Graph is the full reachable module graph for a build.
type Graph struct {
	Entries []ResolvedEntry    `json:"entries"`
	Modules map[string]*Module `json:"modules"`
}

// SortedPaths returns every module path in deterministic order.
func (g *Graph) SortedPaths() []string {
	paths := make([]string, 0, len(g.Modules))
	for p := range g.Modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// EdgeCount returns the total number of edges in the graph.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, m := range g.Modules {
		n += len(m.Edges)
	}
	return n
}

// CachedScan is a previously computed scan result for one file revision.
type CachedScan struct {
	Edges    []Edge
	Contexts []Context
}

// ScanCache serves scan results keyed by (path, checksum). Implementations
// must treat misses and internal failures identically: return ok == false and
// let the caller rescan.
type ScanCache interface {
	Get(path, sum string) (CachedScan, bool)
	Put(path, sum string, cs CachedScan) error
}

// Builder constructs module graphs.
type Builder struct {
	Root        string // absolute project root
	Resolver    *resolver.Resolver
	Cache       ScanCache // optional
	Concurrency int       // defaults to 8
	Logger      *slog.Logger
}

func (b *Builder) concurrency() int {
	if b.Concurrency > 0 {
		return b.Concurrency
	}
	return 8
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build resolves every entry root and walks the graph breadth-first,
// scanning modules in parallel waves. Entry names must be unique and
// non-empty; a duplicate name returns an error wrapping
// apperr.ErrDuplicateEntry.
func (b *Builder) Build(ctx context.Context, entries []Entry) (*Graph, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("graph: no entries")
	}

	g := &Graph{Modules: map[string]*Module{}}
	seenName := map[string]struct{}{}
	seen := map[string]struct{}{}
	var frontier []string

	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("graph: entry with empty name (root %q)", e.Path)
		}
		if _, dup := seenName[e.Name]; dup {
			return nil, fmt.Errorf("graph: %w: %q", apperr.ErrDuplicateEntry, e.Name)
		}
		seenName[e.Name] = struct{}{}

		root, err := b.Resolver.Resolve(".", e.Path)
		if err != nil {
			return nil, fmt.Errorf("graph: entry %q: %w", e.Name, err)
		}
		g.Entries = append(g.Entries, ResolvedEntry{Name: e.Name, Root: root})
		if _, ok := seen[root]; !ok {
			seen[root] = struct{}{}
			frontier = append(frontier, root)
		}
	}
	sort.Slice(g.Entries, func(i, j int) bool { return g.Entries[i].Name < g.Entries[j].Name })
	sort.Strings(frontier)

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results := make([]*Module, len(frontier))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(b.concurrency())
		for i, p := range frontier {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				m, err := b.scanModule(p)
				if err != nil {
					return err
				}
				results[i] = m
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		var next []string
		for _, m := range results {
			g.Modules[m.Path] = m
			for _, e := range m.Edges {
				if _, ok := seen[e.To]; !ok {
					seen[e.To] = struct{}{}
					next = append(next, e.To)
				}
			}
		}
		sort.Strings(next)
		frontier = next
	}

	b.logger().Debug("graph: built",
		slog.Int("modules", len(g.Modules)),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("entries", len(g.Entries)))
	return g, nil
}

// scanModule reads one file, computes its checksum, and either replays the
// cached scan for that revision or scans and resolves its imports.
func (b *Builder) scanModule(p string) (*Module, error) {
	data, err := os.ReadFile(filepath.Join(b.Root, filepath.FromSlash(p)))
	if err != nil {
		return nil, fmt.Errorf("graph: read %s: %w", p, err)
	}
	sum := checksum.Sum(data)

	if b.Cache != nil {
		if cached, ok := b.Cache.Get(p, sum); ok {
			m := &Module{Path: p, Checksum: sum, Edges: cached.Edges, Contexts: cached.Contexts}
			// The checksum covers the importer only, not its context
			// directories; a replayed table must be re-expanded against the
			// directory's current contents.
			if len(m.Contexts) > 0 {
				if err := b.refreshContexts(m); err != nil {
					return nil, err
				}
			}
			return m, nil
		}
	}

	m := &Module{Path: p, Checksum: sum}
	fromDir := path.Dir(p)
	for _, imp := range scan.Scan(data) {
		if imp.Context {
			dir, table, err := b.Resolver.ResolveDir(fromDir, imp.Specifier)
			if err != nil {
				return nil, fmt.Errorf("graph: in %s: %w", p, err)
			}
			m.Contexts = append(m.Contexts, Context{Raw: imp.Specifier, Dir: dir, Table: table})
			// Every context member is a static dependency of the importer.
			for _, key := range resolver.SortedKeys(table) {
				m.Edges = append(m.Edges, Edge{To: table[key]})
			}
			continue
		}

		to, err := b.Resolver.Resolve(fromDir, imp.Specifier)
		if err != nil {
			return nil, fmt.Errorf("graph: in %s: %w", p, err)
		}
		m.Edges = append(m.Edges, Edge{To: to, Raw: imp.Specifier, Deferred: imp.Deferred})
	}

	if b.Cache != nil {
		if err := b.Cache.Put(p, sum, CachedScan{Edges: m.Edges, Contexts: m.Contexts}); err != nil {
			b.logger().Warn("graph: cache put failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	return m, nil
}

// refreshContexts re-runs ResolveDir for every context of a cache-replayed
// module and splices the fresh member edges in place of the stale runs, so
// edge order matches what a cold scan of the same file would produce.
// Context member edges carry no Raw specifier; that marks the runs to
// replace.
func (b *Builder) refreshContexts(m *Module) error {
	fromDir := path.Dir(m.Path)
	fresh := make([]Context, len(m.Contexts))
	for i, c := range m.Contexts {
		dir, table, err := b.Resolver.ResolveDir(fromDir, c.Raw)
		if err != nil {
			return fmt.Errorf("graph: in %s: %w", m.Path, err)
		}
		fresh[i] = Context{Raw: c.Raw, Dir: dir, Table: table}
	}

	edges := make([]Edge, 0, len(m.Edges))
	ci := 0
	for i := 0; i < len(m.Edges); i++ {
		if m.Edges[i].Raw != "" {
			edges = append(edges, m.Edges[i])
			continue
		}
		i += len(m.Contexts[ci].Table) - 1
		for _, key := range resolver.SortedKeys(fresh[ci].Table) {
			edges = append(edges, Edge{To: fresh[ci].Table[key]})
		}
		ci++
	}
	m.Contexts = fresh
	m.Edges = edges
	return nil
}
