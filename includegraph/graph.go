// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package includegraph builds a header-to-header include graph over a
// known header set.
//
// Only edges between known headers are modeled: system headers and
// headers outside the scanner's discovery are dropped during
// resolution. The graph may contain cycles; closure queries use a
// visited set and never recurse unboundedly.
package includegraph

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	graphlib "github.com/dominikbraun/graph"

	"go.chromium.org/infra/build/depscan/runtimex"
	"go.chromium.org/infra/build/depscan/sync/semaphore"
)

// one directive per line, no comment or line-continuation handling;
// matches both #include "..." and #include <...>.
var includeRe = regexp.MustCompile(`^\s*#\s*include\s*["<]([^">]+)[">]`)

// Graph is a header→header include graph.
type Graph struct {
	g   graphlib.Graph[string, string]
	adj map[string][]string
}

var parseSema = semaphore.New("includegraph-parse", runtimex.NumCPU())

// Build parses each known header's include directives and resolves
// them against the known set. It never fails; unreadable headers are
// skipped. Parsing runs in parallel, bounded by the CPU count.
func Build(ctx context.Context, headers []string) *Graph {
	set := make(map[string]bool, len(headers))
	byBase := make(map[string][]string)
	for _, h := range headers {
		set[h] = true
		base := filepath.Base(h)
		byBase[base] = append(byBase[base], h)
	}
	// deterministic tie-break: candidates in lexicographic order.
	for _, cands := range byBase {
		sort.Strings(cands)
	}

	g := graphlib.New(graphlib.StringHash, graphlib.Directed())
	adj := make(map[string][]string, len(headers))
	for _, h := range headers {
		_ = g.AddVertex(h)
		adj[h] = nil
	}
	includes := make([][]string, len(headers))
	var wg sync.WaitGroup
	for i, h := range headers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = parseSema.Do(ctx, func(ctx context.Context) error {
				includes[i] = parseIncludes(h)
				return nil
			})
		}()
	}
	wg.Wait()
	for i, h := range headers {
		for _, inc := range includes[i] {
			target, ok := resolve(h, inc, set, byBase)
			if !ok || target == h {
				continue
			}
			if err := g.AddEdge(h, target); err != nil && !errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
				log.Debugf("includegraph: edge %s -> %s: %v", h, target, err)
				continue
			}
		}
	}
	am, err := g.AdjacencyMap()
	if err != nil {
		log.Warnf("includegraph: adjacency map: %v", err)
		return &Graph{g: g, adj: adj}
	}
	for from, tos := range am {
		deps := make([]string, 0, len(tos))
		for to := range tos {
			deps = append(deps, to)
		}
		sort.Strings(deps)
		adj[from] = deps
	}
	return &Graph{g: g, adj: adj}
}

// parseIncludes scans one header for include directives.
func parseIncludes(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		log.Debugf("includegraph: skip %s: %v", path, err)
		return nil
	}
	defer f.Close()
	var includes []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := includeRe.FindStringSubmatch(scanner.Text()); m != nil {
			includes = append(includes, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debugf("includegraph: read %s: %v", path, err)
	}
	return includes
}

// resolve maps a written include path to a member of the known set:
// first relative to the including header's own directory, then by
// basename with an exact-suffix preference and a lexicographic
// fallback among same-basename candidates.
func resolve(includer, inc string, set map[string]bool, byBase map[string][]string) (string, bool) {
	native := filepath.FromSlash(inc)
	rel := filepath.Clean(filepath.Join(filepath.Dir(includer), native))
	if set[rel] {
		return rel, true
	}
	cands := byBase[filepath.Base(native)]
	switch len(cands) {
	case 0:
		return "", false
	case 1:
		return cands[0], true
	}
	suffix := string(filepath.Separator) + native
	for _, c := range cands {
		if strings.HasSuffix(c, suffix) || c == native {
			return c, true
		}
	}
	return cands[0], true
}

// Adjacency returns the header→direct-includes mapping with sorted
// dependency lists.
func (g *Graph) Adjacency() map[string][]string {
	return g.adj
}

// Edges returns the number of include edges.
func (g *Graph) Edges() int {
	n := 0
	for _, deps := range g.adj {
		n += len(deps)
	}
	return n
}

// Closure returns the transitive closure of header, excluding header
// itself, sorted. Cycles are safe: each node is visited once.
func (g *Graph) Closure(header string) []string {
	visited := map[string]bool{header: true}
	queue := append([]string(nil), g.adj[header]...)
	var closure []string
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true
		closure = append(closure, h)
		queue = append(queue, g.adj[h]...)
	}
	sort.Strings(closure)
	return closure
}
