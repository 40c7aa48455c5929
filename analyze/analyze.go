// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package analyze runs the full dependency analysis pipeline for one
// build directory: filter the compile database, run the dependency
// scanner, build the header include graph and classify every
// discovered file.
package analyze

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscan/compdb"
	"go.chromium.org/infra/build/depscan/config"
	"go.chromium.org/infra/build/depscan/filetype"
	"go.chromium.org/infra/build/depscan/includegraph"
	"go.chromium.org/infra/build/depscan/scandeps"
	"go.chromium.org/infra/build/depscan/toolsupport/ccutil"
	"go.chromium.org/infra/build/depscan/toolsupport/ninjautil"
)

// Options tunes one analysis run.
type Options struct {
	Config config.Config

	// ProjectFiles overrides the file list used to derive the project
	// root. When analyzing a historical revision, pass that revision's
	// own source and header list here; the default is the current build
	// description's files, which would misclassify files that moved
	// since the revision under analysis.
	ProjectFiles []string
}

// Result is the outcome of one analysis run. All paths are absolute.
type Result struct {
	// SourceDeps maps each compiled source file to its dependencies as
	// reported by the scanner.
	SourceDeps map[string][]string `json:"source_deps"`
	// HeaderGraph maps each discovered header to the headers it
	// directly includes, within the discovered set.
	HeaderGraph map[string][]string `json:"header_graph"`
	// Headers is the sorted discovered non-system header set.
	Headers []string `json:"headers"`
	// FileTypes classifies every discovered path.
	FileTypes map[string]filetype.Type `json:"file_types"`
	// ProjectRoot is the common ancestor the classifier used.
	ProjectRoot string `json:"project_root"`
	// ScanElapsedSeconds is the scanner's own runtime; on a cache hit
	// it is the recorded runtime of the original run.
	ScanElapsedSeconds float64 `json:"scan_elapsed_seconds"`

	ScanElapsed time.Duration `json:"-"`
}

// Edges returns the number of include edges in the header graph.
func (r *Result) Edges() int {
	n := 0
	for _, deps := range r.HeaderGraph {
		n += len(deps)
	}
	return n
}

// Run analyzes buildDir.
func Run(ctx context.Context, buildDir string, opts Options) (*Result, error) {
	// per-field defaulting: a partial Config keeps its set fields.
	cfg := opts.Config.FillDefaults()
	buildDir, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, err
	}

	f := &compdb.Filter{
		Sanitizer: ccutil.Sanitizer{Trace: cfg.TraceSanitizer},
		NinjaTool: cfg.NinjaTool,
	}
	filteredDB, err := f.Run(ctx, buildDir)
	if err != nil {
		return nil, err
	}

	r := &scandeps.Runner{
		Tool:        cfg.Scanner,
		Timeout:     cfg.ScanTimeout(),
		Jobs:        cfg.Jobs,
		MaxCacheAge: cfg.CacheMaxAge(),
	}
	output, elapsed, err := r.Scan(ctx, buildDir, filteredDB)
	if err != nil {
		return nil, err
	}
	rawDeps, rawHeaders := scandeps.ParseOutput(output)

	// scanner paths are relative to the build directory.
	srcDeps := make(map[string][]string, len(rawDeps))
	for src, deps := range rawDeps {
		absDeps := make([]string, len(deps))
		for i, d := range deps {
			absDeps[i] = abs(buildDir, d)
		}
		srcDeps[abs(buildDir, src)] = absDeps
	}
	headers := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = abs(buildDir, h)
	}
	sort.Strings(headers)

	g := includegraph.Build(ctx, headers)
	log.Infof("analyze: %d sources, %d headers, %d include edges",
		len(srcDeps), len(headers), g.Edges())

	// build description facts feed the project root and the
	// generated-file hint set; analysis degrades without them.
	var facts *ninjautil.Facts
	facts, err = ninjautil.ExtractFacts(filepath.Join(buildDir, compdb.BuildFileName))
	if err != nil {
		log.Warnf("analyze: no build description facts: %v", err)
		facts = nil
	}

	projectFiles := opts.ProjectFiles
	if projectFiles == nil && facts != nil {
		for _, p := range facts.Sources {
			projectFiles = append(projectFiles, abs(buildDir, p))
		}
		for _, p := range facts.Headers {
			projectFiles = append(projectFiles, abs(buildDir, p))
		}
	}
	if len(projectFiles) == 0 {
		// no build description: fall back to what the scanner saw.
		for src := range srcDeps {
			projectFiles = append(projectFiles, src)
		}
		projectFiles = append(projectFiles, headers...)
	}
	root := filetype.CommonRoot(projectFiles)

	var generated map[string]bool
	if facts != nil {
		generated = make(map[string]bool, len(facts.Outputs))
		for p := range facts.Outputs {
			generated[abs(buildDir, p)] = true
		}
	}
	cls := filetype.NewClassifier(root, generated)
	cls.SystemPrefixes = cfg.SystemPrefixes

	fileTypes := make(map[string]filetype.Type)
	classify := func(p string) {
		if _, ok := fileTypes[p]; !ok {
			fileTypes[p] = cls.Classify(p)
		}
	}
	for src, deps := range srcDeps {
		classify(src)
		for _, d := range deps {
			classify(d)
		}
	}
	for _, h := range headers {
		classify(h)
	}

	return &Result{
		SourceDeps:         srcDeps,
		HeaderGraph:        g.Adjacency(),
		Headers:            headers,
		FileTypes:          fileTypes,
		ProjectRoot:        root,
		ScanElapsedSeconds: elapsed.Seconds(),
		ScanElapsed:        elapsed,
	}, nil
}

func abs(buildDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(buildDir, p)
}
