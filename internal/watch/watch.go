// Package watch triggers rebuilds when project sources change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RebuildFunc is called with the batch of changed root-relative paths after
// a debounced burst of file events.
type RebuildFunc func(ctx context.Context, changed []string)

const debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the project root and processes file
// change events until ctx is cancelled. Bursts of events are coalesced into
// one rebuild call. ignore lists root-relative path prefixes (output
// directory, cache file, VCS metadata) whose events are dropped.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, root string, ignore []string, logger *slog.Logger, rebuild RebuildFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	ignored := func(rel string) bool {
		if rel == "" {
			return false
		}
		base := filepath.Base(rel)
		if strings.HasPrefix(base, ".") {
			return true
		}
		for _, prefix := range ignore {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
		}
		return false
	}

	if err := addDirsRecursive(w, absRoot, absRoot, ignored); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", absRoot))

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := map[string]struct{}{}

	scheduleRebuild := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(debounce)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			pending = map[string]struct{}{}
			logger.Debug("watcher: rebuilding", slog.Int("changed", len(changed)))
			rebuild(ctx, changed)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, ev.Name)
			if relErr != nil || ignored(filepath.ToSlash(rel)) {
				continue
			}

			// New directories join the watch list so files created inside
			// them are seen.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absRoot, ev.Name, ignored); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending[filepath.ToSlash(rel)] = struct{}{}
				scheduleRebuild()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive registers dir and every non-ignored subdirectory.
func addDirsRecursive(w *fsnotify.Watcher, root, dir string, ignored func(string) bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel != "." && ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
