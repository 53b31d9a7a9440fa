package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/raido/internal/testutil"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) rebuild(_ context.Context, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changed)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) all() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func (r *recorder) sawPath(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, batch := range r.batches {
		for _, c := range batch {
			if c == p {
				return true
			}
		}
	}
	return false
}

func startWatch(t *testing.T, root string, ignore []string, rec *recorder) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, root, ignore, testutil.Logger(), rec.rebuild); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher a moment to register directories.
	time.Sleep(100 * time.Millisecond)
	return cancel
}

func TestWatch_DebouncesBurstIntoOneRebuild(t *testing.T) {
	root := testutil.Project(t, map[string]string{
		"src/index.js": `module.exports = 1;`,
		"src/a.js":     `module.exports = 2;`,
	})
	rec := &recorder{}
	startWatch(t, root, nil, rec)

	for _, p := range []string{"src/index.js", "src/a.js"} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(p)), []byte(`changed`), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	testutil.Eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return rec.count() >= 1
	}, "no rebuild after writes")

	// Both writes landed inside the debounce window, so one batch carries
	// both paths.
	time.Sleep(300 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("rebuilds = %d, want 1", rec.count())
	}
	if !rec.sawPath("src/index.js") || !rec.sawPath("src/a.js") {
		t.Errorf("batches = %+v", rec.all())
	}
}

func TestWatch_IgnoresOutputDir(t *testing.T) {
	root := testutil.Project(t, map[string]string{
		"src/index.js": `module.exports = 1;`,
		"dist/app.js":  `built`,
	})
	rec := &recorder{}
	startWatch(t, root, []string{"dist"}, rec)

	if err := os.WriteFile(filepath.Join(root, "dist", "app.js"), []byte(`rebuilt`), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("rebuilds = %d, want 0 for ignored dir", rec.count())
	}
}

func TestWatch_NewDirectoryIsWatched(t *testing.T) {
	root := testutil.Project(t, map[string]string{
		"src/index.js": `module.exports = 1;`,
	})
	rec := &recorder{}
	startWatch(t, root, nil, rec)

	if err := os.MkdirAll(filepath.Join(root, "src", "pages"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Let the Create event propagate and the new dir join the watch list.
	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "src", "pages", "about.js"), []byte(`module.exports = 'about';`), 0o644); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return rec.sawPath("src/pages/about.js")
	}, "file in new directory not seen")
}
