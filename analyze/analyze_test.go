// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/depscan/config"
	"go.chromium.org/infra/build/depscan/filetype"
)

// testTree lays out a small project with one compiled source, two
// project headers and a fake dependency scanner whose output names all
// of them plus one system header.
type testTree struct {
	root, src, build, scanner string
}

func setupTree(t *testing.T) testTree {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake scanner script is a shell script")
	}
	root := t.TempDir()
	src := filepath.Join(root, "src")
	build := filepath.Join(root, "out")
	for _, dir := range []string{src, build} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	write := func(path, content string) {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(src, "main.cc"), "#include \"a.h\"\nint main() {}\n")
	write(filepath.Join(src, "a.h"), "#include \"b.h\"\n")
	write(filepath.Join(src, "b.h"), "int f();\n")

	// build.ninja first: a raw database older than the build
	// description would trigger regeneration via ninja.
	write(filepath.Join(build, "build.ninja"),
		"build obj/main.o: cxx ../src/main.cc | ../src/a.h ../src/b.h\n")
	write(filepath.Join(build, "compile_commands.json"), fmt.Sprintf(`[
  {"directory": %q, "command": "clang++ -c ../src/main.cc -o obj/main.o", "file": "../src/main.cc"}
]`, build))

	scanner := filepath.Join(root, "fake-scan-deps")
	script := fmt.Sprintf("#!/bin/sh\necho run >> %q\nprintf '%%b' %q\n",
		filepath.Join(root, "count"),
		"obj/main.o: ../src/main.cc ../src/a.h ../src/b.h /usr/include/stdio.h\n")
	if err := os.WriteFile(scanner, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return testTree{root: root, src: src, build: build, scanner: scanner}
}

func (tt testTree) scannerRuns(t *testing.T) int {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(tt.root, "count"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

func TestRun(t *testing.T) {
	tt := setupTree(t)
	cfg := config.Default()
	cfg.Scanner = tt.scanner

	res, err := Run(context.Background(), tt.build, Options{Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	mainCC := filepath.Join(tt.src, "main.cc")
	aH := filepath.Join(tt.src, "a.h")
	bH := filepath.Join(tt.src, "b.h")

	wantDeps := map[string][]string{
		mainCC: {mainCC, aH, bH, "/usr/include/stdio.h"},
	}
	if diff := cmp.Diff(wantDeps, res.SourceDeps); diff != "" {
		t.Errorf("SourceDeps diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{aH, bH}, res.Headers); diff != "" {
		t.Errorf("Headers diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{bH}, res.HeaderGraph[aH]); diff != "" {
		t.Errorf("HeaderGraph[a.h] diff (-want +got):\n%s", diff)
	}
	if res.Edges() != 1 {
		t.Errorf("Edges=%d; want 1", res.Edges())
	}
	if res.ProjectRoot != tt.src {
		t.Errorf("ProjectRoot=%q; want %q", res.ProjectRoot, tt.src)
	}
	wantTypes := map[string]filetype.Type{
		mainCC:                 filetype.Project,
		aH:                     filetype.Project,
		bH:                     filetype.Project,
		"/usr/include/stdio.h": filetype.System,
	}
	if diff := cmp.Diff(wantTypes, res.FileTypes); diff != "" {
		t.Errorf("FileTypes diff (-want +got):\n%s", diff)
	}
	if res.ScanElapsedSeconds <= 0 {
		t.Errorf("ScanElapsedSeconds=%v; want > 0", res.ScanElapsedSeconds)
	}
}

func TestRunCached(t *testing.T) {
	tt := setupTree(t)
	cfg := config.Default()
	cfg.Scanner = tt.scanner

	first, err := Run(context.Background(), tt.build, Options{Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := Run(context.Background(), tt.build, Options{Config: cfg})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n := tt.scannerRuns(t); n != 1 {
		t.Errorf("scanner ran %d times; want 1 (cache hit)", n)
	}
	if diff := cmp.Diff(first.SourceDeps, second.SourceDeps); diff != "" {
		t.Errorf("cached SourceDeps diff:\n%s", diff)
	}
	if diff := cmp.Diff(first.FileTypes, second.FileTypes); diff != "" {
		t.Errorf("cached FileTypes diff:\n%s", diff)
	}
}

func TestRunProjectFilesOverride(t *testing.T) {
	tt := setupTree(t)
	cfg := config.Default()
	cfg.Scanner = tt.scanner

	// pretend the revision under analysis lived one level up: all
	// scanned files stay inside the override root, so classification
	// is unchanged, but the root itself follows the override.
	res, err := Run(context.Background(), tt.build, Options{
		Config: cfg,
		ProjectFiles: []string{
			filepath.Join(tt.root, "src", "main.cc"),
			filepath.Join(tt.root, "README.md"),
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ProjectRoot != tt.root {
		t.Errorf("ProjectRoot=%q; want %q", res.ProjectRoot, tt.root)
	}
	if got := res.FileTypes[filepath.Join(tt.src, "a.h")]; got != filetype.Project {
		t.Errorf("a.h classified %v; want PROJECT", got)
	}
}
