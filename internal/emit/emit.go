// Package emit writes chunk artifacts and the manifest/runtime chunk.
//
// Artifacts are deterministic: modules are embedded in sorted order, file
// names carry a content hash, and identical inputs produce byte-identical
// outputs. Touching one entry's sources therefore changes only that entry's
// artifact.
package emit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/chunk"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/storage"
)

// DefaultTemplate is the chunk file naming pattern. [name] is the chunk name
// and [hash] the first 16 hex chars of the chunk's content hash.
const DefaultTemplate = "[name]-[hash].js"

const hashLen = 16

const header = "\"use strict\";\n(function() {\n"
const footer = "})();\n"

// Artifact describes one written chunk file.
type Artifact struct {
	Chunk   string     `json:"chunk"`
	Kind    chunk.Kind `json:"kind"`
	File    string     `json:"file"`
	Modules int        `json:"modules"`
	Size    int        `json:"size"`
}

// ManifestEntry records how to start one entry: its root module and the
// chunk files to load first, in order (vendor before the entry chunk).
type ManifestEntry struct {
	Root  string   `json:"root"`
	Files []string `json:"files"`
}

// Manifest maps every module to its owning chunk file and carries the
// per-entry bootstrap data.
type Manifest struct {
	Modules map[string]string        `json:"modules"`
	Chunks  map[string]string        `json:"chunks"`
	Entries map[string]ManifestEntry `json:"entries"`
}

// Result is the outcome of emitting one build.
type Result struct {
	Artifacts    []Artifact `json:"artifacts"`
	ManifestFile string     `json:"manifest_file"`
	Manifest     *Manifest  `json:"manifest"`
}

// Emitter writes a chunk assignment to the output store.
type Emitter struct {
	Root     string // absolute project root, to read module sources
	Store    storage.Provider
	Template string // defaults to DefaultTemplate
	Logger   *slog.Logger
}

func (e *Emitter) template() string {
	if e.Template != "" {
		return e.Template
	}
	return DefaultTemplate
}

func (e *Emitter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Emit writes one artifact per chunk plus the manifest chunk, then prunes
// artifacts from previous builds.
func (e *Emitter) Emit(g *graph.Graph, a *chunk.Assignment) (*Result, error) {
	res := &Result{
		Manifest: &Manifest{
			Modules: map[string]string{},
			Chunks:  map[string]string{},
			Entries: map[string]ManifestEntry{},
		},
	}

	for _, c := range a.Chunks {
		content, err := e.renderChunk(g, c)
		if err != nil {
			return nil, err
		}
		file := e.fileName(c.Name, chunkHash(g, c))
		if err := e.Store.Write(file, content); err != nil {
			return nil, fmt.Errorf("emit: write chunk %s: %w", c.Name, err)
		}
		e.logger().Debug("emit: wrote chunk",
			slog.String("chunk", c.Name),
			slog.String("file", file),
			slog.Int("modules", len(c.Modules)))

		res.Artifacts = append(res.Artifacts, Artifact{
			Chunk:   c.Name,
			Kind:    c.Kind,
			File:    file,
			Modules: len(c.Modules),
			Size:    len(content),
		})
		res.Manifest.Chunks[c.Name] = file
	}

	for m, owner := range a.Owner {
		res.Manifest.Modules[m] = res.Manifest.Chunks[owner]
	}
	for _, entry := range g.Entries {
		files := []string{}
		if vendorFile, ok := res.Manifest.Chunks[chunk.VendorChunkName]; ok {
			files = append(files, vendorFile)
		}
		files = append(files, res.Manifest.Chunks[entry.Name])
		res.Manifest.Entries[entry.Name] = ManifestEntry{Root: entry.Root, Files: files}
	}

	manifestJSON, err := json.Marshal(res.Manifest)
	if err != nil {
		return nil, fmt.Errorf("emit: marshal manifest: %w", err)
	}
	runtime := strings.Replace(runtimeJS, "__RAIDO_MANIFEST__", string(manifestJSON), 1)
	manifestContent := []byte(header + runtime + footer)
	res.ManifestFile = e.fileName("manifest", hashBytes(manifestJSON))
	if err := e.Store.Write(res.ManifestFile, manifestContent); err != nil {
		return nil, fmt.Errorf("emit: write manifest: %w", err)
	}

	keep := map[string]struct{}{res.ManifestFile: {}}
	for _, art := range res.Artifacts {
		keep[art.File] = struct{}{}
	}
	if err := e.Store.Prune(keep); err != nil {
		return nil, err
	}
	return res, nil
}

// renderChunk wraps each module source in a register call carrying the
// import and context maps the runtime needs to resolve call-site specifiers.
func (e *Emitter) renderChunk(g *graph.Graph, c chunk.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)

	for _, path := range c.Modules {
		m, ok := g.Modules[path]
		if !ok {
			return nil, fmt.Errorf("emit: chunk %s references unknown module %s", c.Name, path)
		}
		src, err := os.ReadFile(filepath.Join(e.Root, filepath.FromSlash(path)))
		if err != nil {
			return nil, fmt.Errorf("emit: read %s: %w", path, err)
		}

		imports := map[string]string{}
		for _, edge := range m.Edges {
			if edge.Raw != "" {
				imports[edge.Raw] = edge.To
			}
		}
		contexts := map[string]map[string]string{}
		for _, ctx := range m.Contexts {
			contexts[ctx.Raw] = ctx.Table
		}

		importsJSON, _ := json.Marshal(imports)
		contextsJSON, _ := json.Marshal(contexts)

		fmt.Fprintf(&buf, "window.raido.register(%q, %s, %s, function(module, exports, require) {\n",
			path, importsJSON, contextsJSON)
		buf.Write(src)
		if len(src) > 0 && src[len(src)-1] != '\n' {
			buf.WriteByte('\n')
		}
		buf.WriteString("});\n")
	}

	buf.WriteString(footer)
	return buf.Bytes(), nil
}

func (e *Emitter) fileName(name, hash string) string {
	out := strings.ReplaceAll(e.template(), "[name]", name)
	out = strings.ReplaceAll(out, "[hash]", hash)
	return out
}

// chunkHash hashes the chunk's module identities, content checksums, and
// resolved edges in canonical order, so the file name changes exactly when
// the artifact content does.
func chunkHash(g *graph.Graph, c chunk.Chunk) string {
	h := sha256.New()
	for _, path := range c.Modules {
		h.Write([]byte(path))
		h.Write([]byte{0})
		if m, ok := g.Modules[path]; ok {
			h.Write([]byte(m.Checksum))
			for _, edge := range m.Edges {
				fmt.Fprintf(h, "|%s>%s:%t", edge.Raw, edge.To, edge.Deferred)
			}
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:hashLen]
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])[:hashLen]
}
