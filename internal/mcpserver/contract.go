package mcpserver

// ChunkPolicyContract describes how Raido partitions a module graph into
// chunks, for LLM consumers reasoning about bundle layout.
const ChunkPolicyContract = `# Raido Chunk Policy

Raido splits the module graph of a project into output chunks. Every module
reachable at startup belongs to exactly one chunk.

## Chunk kinds

- **entry** — one chunk per configured entry point, named after the entry.
  Holds the modules only that entry reaches over static edges.
- **vendor** — the single shared chunk (reserved name ` + "`vendor`" + `).
  Holds every startup module that more than one entry reaches, plus any
  module whose path matches a configured vendor prefix (e.g.
  ` + "`node_modules/`" + `, ` + "`lib/`" + `).
- **lazy** — one chunk per dynamic import target, named from the target
  path (` + "`src/pages/about.js`" + ` becomes ` + "`src-pages-about`" + `).
  Loaded on demand when the importing code runs.

## Rules

1. A static edge is ` + "`require('x')`" + ` or a member of a
   ` + "`require.context('dir')`" + ` table. A deferred edge is
   ` + "`import('x')`" + ` or ` + "`require.load('x')`" + `; deferred edges
   are chunk split points.
2. Startup modules (reachable from any entry over static edges) are
   partitioned exactly once between entry chunks and vendor. Lazy chunks
   never duplicate startup modules.
3. A module needed by several lazy roots may appear in each of their
   chunks; the manifest resolves it to one owner.
4. A deferred edge into a module that is already loaded at startup produces
   no extra chunk; the manifest resolves it to its startup chunk.
5. Entry names may not be ` + "`vendor`" + `.

## Startup order

Each entry loads its chunk files in manifest order: the vendor chunk first
(when present), then the entry chunk, then the entry's root module runs.
Editing one entry's private modules never changes the vendor chunk bytes or
its file name.
`
