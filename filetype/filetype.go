// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package filetype classifies files discovered by a dependency scan.
package filetype

import (
	"path/filepath"
	"strings"
)

// Type is a mutually exclusive file classification.
// Priority order is System > Generated > ThirdParty > Project.
type Type int

const (
	Project Type = iota
	ThirdParty
	Generated
	System
)

func (t Type) String() string {
	switch t {
	case System:
		return "SYSTEM"
	case Generated:
		return "GENERATED"
	case ThirdParty:
		return "THIRD_PARTY"
	default:
		return "PROJECT"
	}
}

// MarshalText makes Type readable in JSON results.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DefaultSystemPrefixes are path prefixes of toolchain and OS headers.
var DefaultSystemPrefixes = []string{"/usr/", "/lib/", "/lib64/", "/opt/"}

// generator signatures for the pattern fallback when no build-output
// hint set is available: protobuf, Qt moc/uic/rcc, export/config
// headers, and generic generated-file suffixes.
var generatedBasePrefixes = []string{"moc_", "ui_", "qrc_"}
var generatedBaseSuffixes = []string{
	".pb.h", ".pb.cc",
	"_export.h", "_config.h", "_buildflags.h",
}
var generatedNameMarkers = []string{"_generated", "_autogen"}

// Classifier assigns a Type to each discovered path. The symlink
// resolver is injectable so classification stays a pure function in
// tests.
type Classifier struct {
	// SystemPrefixes defaults to DefaultSystemPrefixes when nil.
	SystemPrefixes []string
	// Generated is the build description's declared output set. When
	// non-nil it is authoritative for GENERATED; otherwise filename
	// patterns are used.
	Generated map[string]bool
	// Resolve resolves symlinks; defaults to filepath.EvalSymlinks
	// (falling back to the input on error).
	Resolve func(string) string

	projectRoot string
}

// NewClassifier builds a Classifier for one scan. projectRoot comes
// from CommonRoot over an explicit path list; callers analyzing a
// historical revision must pass that revision's own file list, never
// the current on-disk state.
func NewClassifier(projectRoot string, generated map[string]bool) *Classifier {
	c := &Classifier{Generated: generated}
	c.projectRoot = c.resolve(projectRoot)
	return c
}

func (c *Classifier) resolve(path string) string {
	r := c.Resolve
	if r == nil {
		r = func(p string) string {
			if resolved, err := filepath.EvalSymlinks(p); err == nil {
				return resolved
			}
			return p
		}
	}
	return r(path)
}

// Classify assigns path its Type. It never fails; unclassifiable paths
// default to Project.
func (c *Classifier) Classify(path string) Type {
	prefixes := c.SystemPrefixes
	if prefixes == nil {
		prefixes = DefaultSystemPrefixes
	}
	slashed := filepath.ToSlash(path)
	for _, p := range prefixes {
		if strings.HasPrefix(slashed, p) {
			return System
		}
	}
	if c.Generated != nil {
		if c.Generated[path] || c.Generated[c.resolve(path)] {
			return Generated
		}
	} else if looksGenerated(path) {
		return Generated
	}
	if c.projectRoot == "" || !isUnder(c.resolve(path), c.projectRoot) {
		return ThirdParty
	}
	return Project
}

func looksGenerated(path string) bool {
	base := filepath.Base(path)
	for _, p := range generatedBasePrefixes {
		if strings.HasPrefix(base, p) {
			return true
		}
	}
	for _, s := range generatedBaseSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	for _, m := range generatedNameMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CommonRoot returns the deepest common ancestor directory of paths.
// A single path yields its containing directory. Empty input yields "".
func CommonRoot(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	root := filepath.Dir(filepath.Clean(paths[0]))
	for _, p := range paths[1:] {
		dir := filepath.Dir(filepath.Clean(p))
		root = commonDir(root, dir)
		if root == string(filepath.Separator) || root == "." {
			break
		}
	}
	return root
}

func commonDir(a, b string) string {
	if a == b {
		return a
	}
	as := strings.Split(filepath.ToSlash(a), "/")
	bs := strings.Split(filepath.ToSlash(b), "/")
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	i := 0
	for i < n && as[i] == bs[i] {
		i++
	}
	if i == 0 {
		return string(filepath.Separator)
	}
	common := strings.Join(as[:i], "/")
	if common == "" {
		// both paths absolute, only "/" shared
		return string(filepath.Separator)
	}
	return filepath.FromSlash(common)
}
