package devserver

import (
	"github.com/starford/raido/internal/builder"
	"github.com/starford/raido/internal/emit"
	"github.com/starford/raido/internal/graph"
)

// GraphNode is one module in the graph response.
type GraphNode struct {
	Path     string `json:"path" example:"src/index.js" validate:"required"`
	Checksum string `json:"checksum" example:"abc123..." validate:"required"`
	Chunk    string `json:"chunk,omitempty" example:"app"`
}

// GraphLink is one dependency edge in the graph response.
type GraphLink struct {
	Source   string `json:"source" example:"src/index.js" validate:"required"`
	Target   string `json:"target" example:"lib/util.js" validate:"required"`
	Deferred bool   `json:"deferred,omitempty"`
}

// GraphStats summarizes the graph.
type GraphStats struct {
	Modules int `json:"modules" example:"42"`
	Edges   int `json:"edges" example:"61"`
	Entries int `json:"entries" example:"2"`
}

// GraphResponse wraps the module graph.
type GraphResponse struct {
	Entries []graph.ResolvedEntry `json:"entries" validate:"required"`
	Nodes   []GraphNode           `json:"nodes" validate:"required"`
	Links   []GraphLink           `json:"links" validate:"required"`
	Stats   GraphStats            `json:"stats" validate:"required"`
}

// ChunkListResponse wraps the chunk artifacts of the latest build.
type ChunkListResponse struct {
	Chunks []emit.Artifact `json:"chunks" validate:"required"`
}

// BuildResponse is returned after a triggered build.
type BuildResponse = builder.Result

// ManifestResponse is the manifest of the latest build.
type ManifestResponse = emit.Manifest
