// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"path/filepath"
	"sort"
	"strings"

	"go.chromium.org/infra/build/depscan/toolsupport/makeutil"
)

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".m": true, ".mm": true, ".S": true, ".s": true,
}

var headerExts = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".h++": true,
	".inc": true, ".inl": true, ".ipp": true,
}

// system prefixes excluded from the discovered-header set; system
// headers are classified but never parsed for the include graph.
var systemPrefixes = []string{"/usr/", "/lib/", "/lib64/", "/opt/"}

// ParseOutput parses makefile-style scanner output into a
// source→dependencies map and the set of discovered non-system
// headers (sorted).
//
// The scanner names its targets after object files. When a target's
// first dependency is a recognized source file, that source is the
// map key; otherwise the raw target string is kept.
func ParseOutput(output string) (map[string][]string, []string) {
	srcDeps := make(map[string][]string)
	headerSet := make(map[string]bool)
	for _, t := range makeutil.ParseTargets([]byte(output)) {
		key := t.Name
		if len(t.Deps) > 0 && isSource(t.Deps[0]) {
			key = t.Deps[0]
		}
		srcDeps[key] = append(srcDeps[key], t.Deps...)
		for _, dep := range t.Deps {
			if isHeader(dep) && !isSystem(dep) {
				headerSet[dep] = true
			}
		}
	}
	headers := make([]string, 0, len(headerSet))
	for h := range headerSet {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	return srcDeps, headers
}

func isSource(path string) bool {
	ext := filepath.Ext(path)
	return sourceExts[ext] || sourceExts[strings.ToLower(ext)]
}

func isHeader(path string) bool {
	return headerExts[strings.ToLower(filepath.Ext(path))]
}

func isSystem(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, p := range systemPrefixes {
		if strings.HasPrefix(slashed, p) {
			return true
		}
	}
	return false
}
