package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/resolver"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newBuilder(root string) *Builder {
	return &Builder{Root: root, Resolver: resolver.New(root, "", nil)}
}

func TestBuild_WalksStaticEdges(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js": `var a = require('./a'); var b = require('./b');`,
		"src/a.js":     `var b = require('./b');`,
		"src/b.js":     `module.exports = 1;`,
	})
	g, err := newBuilder(root).Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Modules) != 3 {
		t.Fatalf("modules = %v", g.SortedPaths())
	}
	if g.Entries[0].Root != "src/index.js" {
		t.Errorf("entry root = %q", g.Entries[0].Root)
	}
	idx := g.Modules["src/index.js"]
	if len(idx.Edges) != 2 || idx.Edges[0].To != "src/a.js" || idx.Edges[1].To != "src/b.js" {
		t.Errorf("index edges = %+v", idx.Edges)
	}
}

func TestBuild_DeferredEdge(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js":       `import('./pages/about');`,
		"src/pages/about.js": `module.exports = 'about';`,
	})
	g, err := newBuilder(root).Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	edges := g.Modules["src/index.js"].Edges
	if len(edges) != 1 || !edges[0].Deferred || edges[0].To != "src/pages/about.js" {
		t.Errorf("edges = %+v", edges)
	}
	if _, ok := g.Modules["src/pages/about.js"]; !ok {
		t.Error("deferred target not in graph")
	}
}

func TestBuild_ContextExpandsDirectory(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js":      `var ctx = require.context('./locales');`,
		"src/locales/en.js": `module.exports = {};`,
		"src/locales/de.js": `module.exports = {};`,
	})
	g, err := newBuilder(root).Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	idx := g.Modules["src/index.js"]
	if len(idx.Contexts) != 1 {
		t.Fatalf("contexts = %+v", idx.Contexts)
	}
	c := idx.Contexts[0]
	if c.Dir != "src/locales" || c.Table["./en"] != "src/locales/en.js" {
		t.Errorf("context = %+v", c)
	}
	// Context members are static edges, sorted by key.
	if len(idx.Edges) != 2 || idx.Edges[0].To != "src/locales/de.js" {
		t.Errorf("edges = %+v", idx.Edges)
	}
	if len(g.Modules) != 3 {
		t.Errorf("modules = %v", g.SortedPaths())
	}
}

func TestBuild_CycleTolerated(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js": `require('./a');`,
		"src/a.js":     `require('./b');`,
		"src/b.js":     `require('./a');`,
	})
	g, err := newBuilder(root).Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Modules) != 3 {
		t.Errorf("modules = %v", g.SortedPaths())
	}
}

func TestBuild_UnresolvedIsFatal(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js": `require('./missing');`,
	})
	_, err := newBuilder(root).Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if !errors.Is(err, apperr.ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
}

func TestBuild_DuplicateEntryName(t *testing.T) {
	root := writeProject(t, map[string]string{"src/index.js": ``})
	_, err := newBuilder(root).Build(context.Background(), []Entry{
		{Name: "app", Path: "./src/index.js"},
		{Name: "app", Path: "./src/index.js"},
	})
	if !errors.Is(err, apperr.ErrDuplicateEntry) {
		t.Errorf("err = %v, want ErrDuplicateEntry", err)
	}
}

type fakeCache struct {
	store map[string]CachedScan
	gets  int
	hits  int
}

func (c *fakeCache) Get(path, sum string) (CachedScan, bool) {
	c.gets++
	cs, ok := c.store[path+"|"+sum]
	if ok {
		c.hits++
	}
	return cs, ok
}

func (c *fakeCache) Put(path, sum string, cs CachedScan) error {
	c.store[path+"|"+sum] = cs
	return nil
}

func TestBuild_CacheReplaysUnchangedFiles(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js": `require('./a');`,
		"src/a.js":     `module.exports = 1;`,
	})
	cache := &fakeCache{store: map[string]CachedScan{}}
	b := newBuilder(root)
	b.Cache = cache

	g1, err := b.Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if cache.hits != 0 {
		t.Errorf("first build hits = %d", cache.hits)
	}

	g2, err := b.Build(context.Background(), []Entry{{Name: "app", Path: "./src/index.js"}})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if cache.hits != 2 {
		t.Errorf("second build hits = %d, want 2", cache.hits)
	}
	if len(g2.Modules) != len(g1.Modules) {
		t.Errorf("module counts differ: %d vs %d", len(g2.Modules), len(g1.Modules))
	}
	if g2.Modules["src/index.js"].Edges[0].To != "src/a.js" {
		t.Errorf("cached edges = %+v", g2.Modules["src/index.js"].Edges)
	}
}

func TestBuild_CacheHitReexpandsContextDir(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js":   `require('./x'); var pages = require.context('./pages');`,
		"src/x.js":       `module.exports = 1;`,
		"src/pages/a.js": `module.exports = 'a';`,
	})
	cache := &fakeCache{store: map[string]CachedScan{}}
	b := newBuilder(root)
	b.Cache = cache
	entries := []Entry{{Name: "app", Path: "./src/index.js"}}

	if _, err := b.Build(context.Background(), entries); err != nil {
		t.Fatalf("first build: %v", err)
	}

	// New file in the context directory; the importer itself is unchanged,
	// so its scan replays from the cache.
	if err := os.WriteFile(filepath.Join(root, "src", "pages", "b.js"), []byte(`module.exports = 'b';`), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := b.Build(context.Background(), entries)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if cache.hits == 0 {
		t.Fatal("importer was rescanned, cache never hit")
	}
	idx := g.Modules["src/index.js"]
	if idx.Contexts[0].Table["./b"] != "src/pages/b.js" {
		t.Errorf("context table = %v", idx.Contexts[0].Table)
	}
	want := []string{"src/x.js", "src/pages/a.js", "src/pages/b.js"}
	if len(idx.Edges) != len(want) {
		t.Fatalf("edges = %+v", idx.Edges)
	}
	for i, w := range want {
		if idx.Edges[i].To != w {
			t.Errorf("edges[%d] = %q, want %q", i, idx.Edges[i].To, w)
		}
	}
	if _, ok := g.Modules["src/pages/b.js"]; !ok {
		t.Error("new context member missing from graph")
	}
}

func TestBuild_CacheHitDropsRemovedContextMember(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/index.js":   `var pages = require.context('./pages');`,
		"src/pages/a.js": `module.exports = 'a';`,
		"src/pages/b.js": `module.exports = 'b';`,
	})
	cache := &fakeCache{store: map[string]CachedScan{}}
	b := newBuilder(root)
	b.Cache = cache
	entries := []Entry{{Name: "app", Path: "./src/index.js"}}

	if _, err := b.Build(context.Background(), entries); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "src", "pages", "b.js")); err != nil {
		t.Fatal(err)
	}
	g, err := b.Build(context.Background(), entries)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	idx := g.Modules["src/index.js"]
	if len(idx.Contexts[0].Table) != 1 || len(idx.Edges) != 1 {
		t.Errorf("stale member survived: table = %v, edges = %+v",
			idx.Contexts[0].Table, idx.Edges)
	}
	if _, ok := g.Modules["src/pages/b.js"]; ok {
		t.Error("removed context member still in graph")
	}
}
