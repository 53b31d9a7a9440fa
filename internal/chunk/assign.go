// Package chunk partitions a module graph into output chunks.
//
// Startup partition: every module reachable from an entry over static edges
// belongs to exactly one of {that entry's chunk, the shared vendor chunk}.
// A module is hoisted to vendor when more than one entry reaches it, or when
// its path matches a configured vendor prefix.
//
// Lazy partition: modules reachable only through deferred (dynamic import)
// edges are grouped into on-demand chunks rooted at each split target. Lazy
// chunks never duplicate startup-owned modules; a module needed by several
// lazy roots may appear in each of their chunks.
package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/graph"
)

// Kind classifies a chunk.
type Kind string

const (
	KindEntry  Kind = "entry"
	KindVendor Kind = "vendor"
	KindLazy   Kind = "lazy"
)

// VendorChunkName is the reserved name of the shared chunk.
const VendorChunkName = "vendor"

// Chunk is a named set of modules emitted as one artifact. Modules are
// sorted by path.
type Chunk struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Modules []string `json:"modules"`
}

// Policy controls shared-chunk extraction.
type Policy struct {
	// VendorPrefixes lists path prefixes (e.g. "node_modules/", "lib/")
	// whose modules are always hoisted to the vendor chunk.
	VendorPrefixes []string
}

func (p Policy) isVendorPath(path string) bool {
	for _, prefix := range p.VendorPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Assignment is the complete chunk partition for one build.
type Assignment struct {
	// Chunks in deterministic order: entry chunks by name, then vendor,
	// then lazy chunks by name.
	Chunks []Chunk
	// Owner maps every module to the chunk that the manifest resolves it
	// to. Startup modules map to their partition owner; a module that
	// appears in several lazy chunks maps to the first by name.
	Owner map[string]string
	// LazyRoots maps each lazy chunk name to the deferred target it was
	// split at.
	LazyRoots map[string]string
}

// Chunk returns the chunk with the given name, or nil.
func (a *Assignment) Chunk(name string) *Chunk {
	for i := range a.Chunks {
		if a.Chunks[i].Name == name {
			return &a.Chunks[i]
		}
	}
	return nil
}

// Assign computes the chunk partition for a graph under the given policy.
func Assign(g *graph.Graph, p Policy) (*Assignment, error) {
	if len(g.Entries) == 0 {
		return nil, fmt.Errorf("chunk: graph has no entries")
	}
	for _, e := range g.Entries {
		if e.Name == VendorChunkName {
			return nil, fmt.Errorf("chunk: entry name %q is reserved", VendorChunkName)
		}
	}

	// Static reach set per entry.
	reachedBy := map[string][]string{} // module -> entry names, insertion-ordered
	for _, e := range g.Entries {
		for m := range staticClosure(g, e.Root) {
			reachedBy[m] = append(reachedBy[m], e.Name)
		}
	}

	vendor := map[string]struct{}{}
	ownerEntry := map[string]string{} // startup module -> entry name
	for m, entries := range reachedBy {
		if len(entries) > 1 || p.isVendorPath(m) {
			vendor[m] = struct{}{}
		} else {
			ownerEntry[m] = entries[0]
		}
	}

	a := &Assignment{Owner: map[string]string{}, LazyRoots: map[string]string{}}

	for _, e := range g.Entries {
		c := Chunk{Name: e.Name, Kind: KindEntry}
		for m, owner := range ownerEntry {
			if owner == e.Name {
				c.Modules = append(c.Modules, m)
				a.Owner[m] = e.Name
			}
		}
		sort.Strings(c.Modules)
		a.Chunks = append(a.Chunks, c)
	}

	if len(vendor) > 0 {
		c := Chunk{Name: VendorChunkName, Kind: KindVendor}
		for m := range vendor {
			c.Modules = append(c.Modules, m)
			a.Owner[m] = VendorChunkName
		}
		sort.Strings(c.Modules)
		a.Chunks = append(a.Chunks, c)
	}

	startupOwned := make(map[string]struct{}, len(a.Owner))
	for m := range a.Owner {
		startupOwned[m] = struct{}{}
	}

	reserved := map[string]struct{}{VendorChunkName: {}}
	for _, e := range g.Entries {
		reserved[e.Name] = struct{}{}
	}
	lazy := assignLazy(g, startupOwned, reserved)
	for _, c := range lazy {
		a.LazyRoots[c.Name] = c.root
		a.Chunks = append(a.Chunks, c.Chunk)
		for _, m := range c.Modules {
			if _, ok := a.Owner[m]; !ok {
				a.Owner[m] = c.Name
			}
		}
	}
	return a, nil
}

type lazyChunk struct {
	Chunk
	root string
}

// assignLazy walks deferred edges breadth-first from the startup set,
// producing one chunk per split target that is not already loaded at
// startup. Targets are processed in sorted order so chunk naming and the
// Owner mapping are deterministic.
func assignLazy(g *graph.Graph, startupOwned, reserved map[string]struct{}) []lazyChunk {
	var out []lazyChunk
	names := reserved
	splitDone := map[string]struct{}{}

	pending := deferredTargets(g, startupOwned)
	for len(pending) > 0 {
		sort.Strings(pending)
		var next []string
		for _, target := range pending {
			if _, done := splitDone[target]; done {
				continue
			}
			splitDone[target] = struct{}{}
			if _, owned := startupOwned[target]; owned {
				// Split point into an already-loaded module: the manifest
				// resolves it to its startup chunk, no extra artifact.
				continue
			}

			closure := staticClosure(g, target)
			c := lazyChunk{root: target}
			c.Kind = KindLazy
			c.Name = uniqueName(lazySlug(target), names)
			for m := range closure {
				if _, owned := startupOwned[m]; owned {
					continue
				}
				c.Modules = append(c.Modules, m)
				// Deferred edges inside the closure open further splits.
				for _, e := range g.Modules[m].Edges {
					if e.Deferred {
						if _, done := splitDone[e.To]; !done {
							next = append(next, e.To)
						}
					}
				}
			}
			sort.Strings(c.Modules)
			out = append(out, c)
		}
		pending = next
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// deferredTargets returns targets of deferred edges leaving the startup set.
func deferredTargets(g *graph.Graph, startupOwned map[string]struct{}) []string {
	seen := map[string]struct{}{}
	var out []string
	for m := range startupOwned {
		for _, e := range g.Modules[m].Edges {
			if !e.Deferred {
				continue
			}
			if _, dup := seen[e.To]; dup {
				continue
			}
			seen[e.To] = struct{}{}
			out = append(out, e.To)
		}
	}
	return out
}

// staticClosure returns the set of modules reachable from root over static
// edges, root included. Cycles are fine: visited tracking terminates them.
func staticClosure(g *graph.Graph, root string) map[string]struct{} {
	visited := map[string]struct{}{}
	stack := []string{root}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[m]; ok {
			continue
		}
		visited[m] = struct{}{}
		node, ok := g.Modules[m]
		if !ok {
			continue
		}
		for _, e := range node.Edges {
			if !e.Deferred {
				stack = append(stack, e.To)
			}
		}
	}
	return visited
}

// lazySlug derives a chunk name from a module path:
// "src/pages/about.js" → "src-pages-about".
func lazySlug(path string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		path = path[:i]
	}
	return strings.ReplaceAll(path, "/", "-")
}

func uniqueName(base string, taken map[string]struct{}) string {
	name := base
	for i := 2; ; i++ {
		if _, ok := taken[name]; !ok {
			break
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
	taken[name] = struct{}{}
	return name
}
