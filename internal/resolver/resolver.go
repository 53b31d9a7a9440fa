// Package resolver implements node-style module resolution against a project
// root: relative specifiers resolve against the importing file's directory,
// bare specifiers against the vendor directory with a project-root fallback,
// with extension probing and package.json "main" support.
package resolver

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

// DefaultExtensions is the probe order used when a specifier has no match
// on disk as written.
var DefaultExtensions = []string{"js", "jsx", "mjs", "cjs"}

// Resolver resolves import specifiers to project-root-relative paths.
type Resolver struct {
	root       string // absolute project root
	vendorDir  string // relative to root, e.g. "node_modules"
	extensions []string
}

// New creates a Resolver for the given absolute project root. vendorDir and
// extensions fall back to "node_modules" and DefaultExtensions when empty.
func New(root, vendorDir string, extensions []string) *Resolver {
	if vendorDir == "" {
		vendorDir = "node_modules"
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Resolver{root: root, vendorDir: vendorDir, extensions: extensions}
}

// Resolve maps specifier, imported from the file at fromDir (root-relative),
// to a root-relative slash path. Bare specifiers probe the vendor directory
// first, then the project root. An unresolvable specifier returns an error
// wrapping apperr.ErrUnresolved.
func (r *Resolver) Resolve(fromDir, specifier string) (string, error) {
	var candidates []string
	switch {
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		candidates = []string{path.Join(fromDir, specifier)}
	case strings.HasPrefix(specifier, "/"):
		candidates = []string{strings.TrimPrefix(specifier, "/")}
	default:
		candidates = []string{path.Join(r.vendorDir, specifier), specifier}
	}

	for _, rel := range candidates {
		rel = path.Clean(rel)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return "", fmt.Errorf("resolver: %w: %q escapes project root (from %s)", apperr.ErrUnresolved, specifier, fromDir)
		}

		abs := filepath.Join(r.root, filepath.FromSlash(rel))
		st, err := os.Stat(abs)
		if err != nil {
			for _, ext := range r.extensions {
				if probe, probeErr := os.Stat(abs + "." + ext); probeErr == nil {
					st, abs, rel = probe, abs+"."+ext, rel+"."+ext
					break
				}
			}
		}
		if st == nil {
			continue
		}

		// A match commits the candidate; a broken package dir is final, not
		// a fallthrough.
		if st.IsDir() {
			main, err := r.packageMain(abs)
			if err != nil {
				return "", err
			}
			rel = path.Join(rel, filepath.ToSlash(main))
			if _, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(rel))); err != nil {
				return "", fmt.Errorf("resolver: %w: %q: package main %s missing", apperr.ErrUnresolved, specifier, rel)
			}
		}
		return rel, nil
	}
	return "", fmt.Errorf("resolver: %w: %q (from %s)", apperr.ErrUnresolved, specifier, fromDir)
}

// ResolveDir maps a require.context directory marker to a root-relative
// directory path and the sorted list of scannable modules inside it. Keys in
// the returned map are context keys ("./<name without extension>"), matching
// how application code addresses context members.
func (r *Resolver) ResolveDir(fromDir, specifier string) (string, map[string]string, error) {
	var rel string
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		rel = path.Join(fromDir, specifier)
	} else {
		rel = path.Join(r.vendorDir, specifier)
	}
	rel = path.Clean(rel)

	abs := filepath.Join(r.root, filepath.FromSlash(rel))
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return "", nil, fmt.Errorf("resolver: %w: context dir %q (from %s)", apperr.ErrUnresolved, specifier, fromDir)
	}

	table := map[string]string{}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !r.scannable(d.Name()) {
			return nil
		}
		sub, _ := filepath.Rel(abs, p)
		sub = filepath.ToSlash(sub)
		key := "./" + strings.TrimSuffix(sub, path.Ext(sub))
		table[key] = path.Join(rel, sub)
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("resolver: scan context dir %s: %w", rel, err)
	}
	if len(table) == 0 {
		return "", nil, fmt.Errorf("resolver: %w: context dir %q is empty", apperr.ErrUnresolved, specifier)
	}
	return rel, table, nil
}

// SortedKeys returns context table keys in deterministic order.
func SortedKeys(table map[string]string) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Resolver) scannable(name string) bool {
	for _, ext := range r.extensions {
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return false
}

// packageMain reads package.json in dir and returns its "main" field,
// defaulting to index.js.
func (r *Resolver) packageMain(dir string) (string, error) {
	f, err := os.Open(filepath.Join(dir, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return "index.js", nil
		}
		return "", fmt.Errorf("resolver: read package.json: %w", err)
	}
	defer f.Close()

	m := struct {
		Main string `json:"main"`
	}{}
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return "", fmt.Errorf("resolver: parse package.json in %s: %w", dir, err)
	}
	if m.Main == "" {
		return "index.js", nil
	}
	return m.Main, nil
}
