// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHeader(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBuildChain(t *testing.T) {
	dir := t.TempDir()
	a := writeHeader(t, filepath.Join(dir, "A.hpp"), "#include \"B.hpp\"\n")
	b := writeHeader(t, filepath.Join(dir, "B.hpp"), "#include \"C.hpp\"\n")
	c := writeHeader(t, filepath.Join(dir, "C.hpp"), "int f();\n")

	g := Build(context.Background(), []string{a, b, c})

	adj := g.Adjacency()
	assert.Equal(t, []string{b}, adj[a])
	assert.Equal(t, []string{c}, adj[b])
	assert.Empty(t, adj[c])
	assert.Equal(t, 2, g.Edges())

	// transitive closure of A is {B, C}.
	assert.Equal(t, []string{b, c}, g.Closure(a))
	assert.Empty(t, g.Closure(c))
}

func TestBuildCycleSafe(t *testing.T) {
	dir := t.TempDir()
	a := writeHeader(t, filepath.Join(dir, "a.h"), "#include \"b.h\"\n")
	b := writeHeader(t, filepath.Join(dir, "b.h"), "#include \"a.h\"\n")

	g := Build(context.Background(), []string{a, b})
	assert.Equal(t, []string{b}, g.Closure(a))
	assert.Equal(t, []string{a}, g.Closure(b))
}

func TestBuildSelfIncludeDropped(t *testing.T) {
	dir := t.TempDir()
	a := writeHeader(t, filepath.Join(dir, "a.h"), "#include \"a.h\"\n")
	g := Build(context.Background(), []string{a})
	assert.Empty(t, g.Adjacency()[a])
}

func TestBuildAngleAndDirectiveForms(t *testing.T) {
	dir := t.TempDir()
	a := writeHeader(t, filepath.Join(dir, "a.h"),
		"  #  include <b.h>\n#include \"sub/c.h\"\n#include <unknown/system.h>\n// #include \"d.h\"\nint x; #include \"d.h\"\n")
	b := writeHeader(t, filepath.Join(dir, "b.h"), "")
	c := writeHeader(t, filepath.Join(dir, "sub", "c.h"), "")
	d := writeHeader(t, filepath.Join(dir, "d.h"), "")

	g := Build(context.Background(), []string{a, b, c, d})
	// unknown/system.h is not in the known set: dropped. the trailing
	// "#include" after code is not at line start: dropped.
	assert.Equal(t, []string{b, c}, g.Adjacency()[a])
	_ = d
}

func TestResolveRelativePreferred(t *testing.T) {
	dir := t.TempDir()
	// two conf.h; the includer's sibling must win over the basename index.
	sib := writeHeader(t, filepath.Join(dir, "mod1", "conf.h"), "")
	other := writeHeader(t, filepath.Join(dir, "mod2", "conf.h"), "")
	a := writeHeader(t, filepath.Join(dir, "mod1", "a.h"), "#include \"conf.h\"\n")

	g := Build(context.Background(), []string{a, sib, other})
	assert.Equal(t, []string{sib}, g.Adjacency()[a])
}

func TestResolveSuffixMatch(t *testing.T) {
	dir := t.TempDir()
	m1 := writeHeader(t, filepath.Join(dir, "mod1", "util.h"), "")
	m2 := writeHeader(t, filepath.Join(dir, "mod2", "util.h"), "")
	a := writeHeader(t, filepath.Join(dir, "src", "a.h"), "#include \"mod2/util.h\"\n")

	g := Build(context.Background(), []string{a, m1, m2})
	assert.Equal(t, []string{m2}, g.Adjacency()[a])
}

func TestResolveLexicographicTieBreak(t *testing.T) {
	dir := t.TempDir()
	// no suffix match: deterministic lexicographic fallback.
	m1 := writeHeader(t, filepath.Join(dir, "alpha", "util.h"), "")
	m2 := writeHeader(t, filepath.Join(dir, "beta", "util.h"), "")
	a := writeHeader(t, filepath.Join(dir, "src", "a.h"), "#include <util.h>\n")

	g := Build(context.Background(), []string{a, m1, m2})
	require.Len(t, g.Adjacency()[a], 1)
	assert.Equal(t, m1, g.Adjacency()[a][0])
	_ = m2
}

func TestBuildUnreadableHeaderSkipped(t *testing.T) {
	dir := t.TempDir()
	a := writeHeader(t, filepath.Join(dir, "a.h"), "#include \"b.h\"\n")
	b := writeHeader(t, filepath.Join(dir, "b.h"), "")
	missing := filepath.Join(dir, "gone.h")

	g := Build(context.Background(), []string{a, b, missing})
	assert.Equal(t, []string{b}, g.Adjacency()[a])
	assert.Empty(t, g.Adjacency()[missing])
}
