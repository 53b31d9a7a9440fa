// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido build tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/builder"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp     *server.MCPServer
	builder *builder.Builder
}

// New creates a new MCP server with all Raido tools registered.
func New(b *builder.Builder) *Server {
	s := &Server{builder: b}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("build",
		mcp.WithDescription("Run a full bundle build: construct the module graph, "+
			"partition it into chunks, and write artifacts plus the manifest."),
	), s.build)

	s.mcp.AddTool(mcp.NewTool("module_graph",
		mcp.WithDescription("Return the module dependency graph of the latest build "+
			"as JSON (entries, modules, edges). Run the build tool first."),
	), s.moduleGraph)

	s.mcp.AddTool(mcp.NewTool("list_chunks",
		mcp.WithDescription("List the chunk artifacts of the latest build with their "+
			"kind, file name, module count, and size."),
	), s.listChunks)

	s.mcp.AddTool(mcp.NewTool("explain_module",
		mcp.WithDescription("Explain one module of the latest build: the chunk that "+
			"owns it, its dependencies, and the modules that import it. See the "+
			"raido://chunk-policy resource for how owners are chosen."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Module path relative to the project root (e.g. src/index.js)")),
	), s.explainModule)

	// Resource: chunk policy contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://chunk-policy", "Chunk Policy",
			mcp.WithResourceDescription("How Raido partitions the module graph into entry, vendor, and lazy chunks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readChunkPolicyResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) build(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.builder.Build(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) moduleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g := s.builder.Graph()
	if g == nil {
		return mcp.NewToolResultError("no build yet; run the build tool first"), nil
	}
	out, _ := json.MarshalIndent(g, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.builder.LastResult()
	if res == nil {
		return mcp.NewToolResultError("no build yet; run the build tool first"), nil
	}
	var b strings.Builder
	for _, a := range res.Artifacts {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%d modules\t%d bytes\n", a.Chunk, a.Kind, a.File, a.Modules, a.Size)
	}
	fmt.Fprintf(&b, "manifest\t\t%s\n", res.ManifestFile)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) explainModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g := s.builder.Graph()
	if g == nil {
		return mcp.NewToolResultError("no build yet; run the build tool first"), nil
	}
	m, ok := g.Modules[path]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("module not in graph: %s", path)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "module: %s\nchecksum: %s\n", m.Path, m.Checksum)
	if manifest := s.builder.Manifest(); manifest != nil {
		if file, owned := manifest.Modules[path]; owned {
			fmt.Fprintf(&b, "chunk file: %s\n", file)
		}
	}

	if len(m.Edges) > 0 {
		b.WriteString("depends on:\n")
		for _, e := range m.Edges {
			kind := "static"
			if e.Deferred {
				kind = "deferred"
			}
			fmt.Fprintf(&b, "  %s (%s)\n", e.To, kind)
		}
	}

	var importers []string
	for _, p := range g.SortedPaths() {
		for _, e := range g.Modules[p].Edges {
			if e.To == path {
				importers = append(importers, p)
				break
			}
		}
	}
	if len(importers) > 0 {
		b.WriteString("imported by:\n")
		for _, p := range importers {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readChunkPolicyResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://chunk-policy",
			MIMEType: "text/markdown",
			Text:     ChunkPolicyContract,
		},
	}, nil
}
