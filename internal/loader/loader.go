// Package loader implements the on-demand chunk loader.
//
// A Loader resolves chunk files through a pluggable Fetcher and caches
// loaded chunks by identity: requesting the same chunk twice performs one
// fetch and resolves both requests. Failed loads are not cached, so a later
// retry gets a fresh fetch. The dev server fronts artifact reads with a
// Loader and invalidates it after each rebuild.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/storage"
)

// Fetcher retrieves the raw bytes of a chunk file.
type Fetcher func(ctx context.Context, file string) ([]byte, error)

// Result is the outcome of an asynchronous load.
type Result struct {
	Data []byte
	Err  error
}

// Loader caches chunk fetches. The zero value is not usable; construct with
// New or NewFS.
type Loader struct {
	fetch Fetcher

	mu     sync.Mutex
	loaded map[string][]byte

	group singleflight.Group
}

// New creates a Loader around a Fetcher.
func New(fetch Fetcher) *Loader {
	return &Loader{fetch: fetch, loaded: map[string][]byte{}}
}

// NewFS creates a Loader that reads chunk artifacts from the output store.
// A missing artifact surfaces as apperr.ErrChunkNotFound.
func NewFS(store storage.Provider) *Loader {
	return New(func(_ context.Context, file string) ([]byte, error) {
		data, err := store.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("loader: %w: %s", apperr.ErrChunkNotFound, file)
			}
			return nil, err
		}
		return data, nil
	})
}

// LoadSync loads a chunk, blocking until it is available or the load fails.
// Concurrent calls for the same chunk share one fetch.
func (l *Loader) LoadSync(ctx context.Context, file string) ([]byte, error) {
	l.mu.Lock()
	if data, ok := l.loaded[file]; ok {
		l.mu.Unlock()
		return data, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(file, func() (any, error) {
		data, err := l.fetch(ctx, file)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded[file] = data
		l.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Load initiates an asynchronous load and returns a pending handle. Exactly
// one Result is delivered per call.
func (l *Loader) Load(ctx context.Context, file string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		data, err := l.LoadSync(ctx, file)
		ch <- Result{Data: data, Err: err}
	}()
	return ch
}

// Loaded reports whether a chunk is already in the cache.
func (l *Loader) Loaded(file string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[file]
	return ok
}

// Invalidate drops the entire cache. Called after a rebuild replaces
// artifacts on disk.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.loaded = map[string][]byte{}
	l.mu.Unlock()
}
