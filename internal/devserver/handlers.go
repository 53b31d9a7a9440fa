package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/builder"
	"github.com/starford/raido/internal/loader"
	"github.com/starford/raido/internal/sse"
)

// Handler holds dev-server route handlers.
type Handler struct {
	builder *builder.Builder
	loader  *loader.Loader
	broker  *sse.Broker // optional
}

// NewHandler creates a new Handler. broker may be nil when the server runs
// without live reload.
func NewHandler(b *builder.Builder, l *loader.Loader, broker *sse.Broker) *Handler {
	return &Handler{builder: b, loader: l, broker: broker}
}

// assetFile extracts the artifact file name from the URL (everything after
// /assets/).
func assetFile(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Asset handles GET /assets/*. Artifact reads go through the chunk loader,
// so concurrent requests for the same chunk share one disk read.
func (h *Handler) Asset(w http.ResponseWriter, r *http.Request) {
	file := assetFile(r)
	if file == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("file is required"))
		return
	}
	data, err := h.loader.LoadSync(r.Context(), file)
	if err != nil {
		if errors.Is(err, apperr.ErrChunkNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("serve asset failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	switch {
	case strings.HasSuffix(file, ".js"):
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	case strings.HasSuffix(file, ".json"):
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Manifest handles GET /api/manifest.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	m := h.builder.Manifest()
	if m == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no build yet"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g := h.builder.Graph()
	if g == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no build yet"))
		return
	}

	resp := GraphResponse{
		Entries: g.Entries,
		Nodes:   []GraphNode{},
		Links:   []GraphLink{},
	}
	var owner map[string]string
	if m := h.builder.Manifest(); m != nil {
		owner = m.Modules
	}
	for _, p := range g.SortedPaths() {
		m := g.Modules[p]
		resp.Nodes = append(resp.Nodes, GraphNode{Path: p, Checksum: m.Checksum, Chunk: owner[p]})
		for _, e := range m.Edges {
			resp.Links = append(resp.Links, GraphLink{Source: p, Target: e.To, Deferred: e.Deferred})
		}
	}
	resp.Stats = GraphStats{Modules: len(g.Modules), Edges: g.EdgeCount(), Entries: len(g.Entries)}
	writeJSON(w, http.StatusOK, resp)
}

// Chunks handles GET /api/chunks.
func (h *Handler) Chunks(w http.ResponseWriter, r *http.Request) {
	res := h.builder.LastResult()
	if res == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no build yet"))
		return
	}
	writeJSON(w, http.StatusOK, ChunkListResponse{Chunks: res.Artifacts})
}

// Build handles POST /api/build: runs a build, swaps the loader cache, and
// publishes build lifecycle events.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	if h.broker != nil {
		h.broker.PublishBuildEvent(sse.BuildStarted, map[string]any{"trigger": "api"})
	}
	res, err := h.builder.Build(r.Context())
	if err != nil {
		if h.broker != nil {
			h.broker.PublishBuildEvent(sse.BuildFailed, map[string]any{"error": err.Error()})
		}
		switch {
		case errors.Is(err, apperr.ErrUnresolved), errors.Is(err, apperr.ErrDuplicateEntry):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		default:
			slog.Error("build failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.loader.Invalidate()
	if h.broker != nil {
		h.broker.PublishBuildEvent(sse.BuildSucceeded, map[string]any{
			"modules":  res.Modules,
			"chunks":   len(res.Artifacts),
			"duration": res.Duration.String(),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// Ready handles GET /health/ready: the server is ready once a build has
// completed.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.builder.LastResult() == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("no build yet"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
