package cache

import (
	"os"
	"testing"

	"github.com/starford/raido/internal/graph"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "raido-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGet(t *testing.T) {
	db := testDB(t)
	cs := graph.CachedScan{
		Edges: []graph.Edge{
			{To: "src/a.js", Raw: "./a"},
			{To: "src/b.js", Raw: "./b", Deferred: true},
		},
		Contexts: []graph.Context{
			{Raw: "./locales", Dir: "src/locales", Table: map[string]string{"./en": "src/locales/en.js"}},
		},
	}
	if err := db.Put("src/index.js", "sum1", cs); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := db.Get("src/index.js", "sum1")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got.Edges) != 2 || got.Edges[1].To != "src/b.js" || !got.Edges[1].Deferred {
		t.Errorf("edges = %+v", got.Edges)
	}
	if len(got.Contexts) != 1 || got.Contexts[0].Table["./en"] != "src/locales/en.js" {
		t.Errorf("contexts = %+v", got.Contexts)
	}
}

func TestGet_ChecksumMismatchIsMiss(t *testing.T) {
	db := testDB(t)
	_ = db.Put("src/index.js", "sum1", graph.CachedScan{})
	if _, ok := db.Get("src/index.js", "sum2"); ok {
		t.Error("stale checksum must miss")
	}
}

func TestGet_UnknownPathIsMiss(t *testing.T) {
	db := testDB(t)
	if _, ok := db.Get("nope.js", "sum"); ok {
		t.Error("unknown path must miss")
	}
}

func TestPut_Replaces(t *testing.T) {
	db := testDB(t)
	_ = db.Put("a.js", "v1", graph.CachedScan{Edges: []graph.Edge{{To: "old.js"}}})
	_ = db.Put("a.js", "v2", graph.CachedScan{Edges: []graph.Edge{{To: "new.js"}}})

	if _, ok := db.Get("a.js", "v1"); ok {
		t.Error("old revision must be gone")
	}
	got, ok := db.Get("a.js", "v2")
	if !ok || got.Edges[0].To != "new.js" {
		t.Errorf("got %+v ok=%v", got, ok)
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	_ = db.Put("keep.js", "s", graph.CachedScan{})
	_ = db.Put("stale.js", "s", graph.CachedScan{})

	if err := db.Prune(map[string]struct{}{"keep.js": {}}); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, ok := db.Get("keep.js", "s"); !ok {
		t.Error("keep.js pruned")
	}
	if _, ok := db.Get("stale.js", "s"); ok {
		t.Error("stale.js survived prune")
	}
	n, err := db.Size()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("size = %d, want 1", n)
	}
}
