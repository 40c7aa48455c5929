// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscan/toolsupport/ccutil"
	"go.chromium.org/infra/build/depscan/toolsupport/shutil"
)

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".m": true, ".mm": true, ".S": true, ".s": true,
}

// Filter produces the filtered compile database for a build directory.
type Filter struct {
	// Sanitizer rewrites each entry's command.
	Sanitizer ccutil.Sanitizer
	// NinjaTool regenerates a stale raw database. Default "ninja".
	NinjaTool string
}

// Run filters buildDir's compile database and returns the filtered
// database path. A previously filtered database strictly newer than
// both the raw database and the build description is reused unchanged;
// dependency scanning is expensive and the raw database is large, so
// this memoization is the main performance lever.
func (f *Filter) Run(ctx context.Context, buildDir string) (string, error) {
	buildDir, err := filepath.Abs(buildDir)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(buildDir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: build directory %s", ErrNotFound, buildDir)
	}
	rawPath, err := securePath(buildDir, DBName)
	if err != nil {
		return "", err
	}
	filteredPath, err := securePath(buildDir, FilteredDBName)
	if err != nil {
		return "", err
	}
	ninjaPath, err := securePath(buildDir, BuildFileName)
	if err != nil {
		return "", err
	}

	if reusable(filteredPath, rawPath, ninjaPath) {
		log.Debugf("compdb: reuse filtered database %s", filteredPath)
		return filteredPath, nil
	}

	if stale(rawPath, ninjaPath) {
		if err := f.regenerate(ctx, buildDir, rawPath); err != nil {
			return "", err
		}
	}

	entries, err := Load(rawPath)
	if err != nil {
		return "", err
	}
	var kept []Entry
	skipped := 0
	for _, e := range entries {
		if !sourceExts[strings.ToLower(filepath.Ext(e.File))] && !sourceExts[filepath.Ext(e.File)] {
			skipped++
			continue
		}
		if !hasCompileMarker(e.Command) {
			skipped++
			continue
		}
		sanitized, err := f.Sanitizer.Sanitize(e.Command)
		if err != nil {
			log.Warnf("compdb: skip %s: %v", e.File, err)
			skipped++
			continue
		}
		e.Command = sanitized
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w in %s (%d skipped)", ErrEmpty, rawPath, skipped)
	}
	log.Infof("compdb: %d entries kept, %d skipped", len(kept), skipped)
	if err := Write(filteredPath, kept); err != nil {
		return "", err
	}
	return filteredPath, nil
}

// reusable reports whether filtered is strictly newer than both raw
// and the build description.
func reusable(filtered, raw, ninja string) bool {
	ffi, err := os.Stat(filtered)
	if err != nil {
		return false
	}
	rfi, err := os.Stat(raw)
	if err != nil {
		return false
	}
	if !ffi.ModTime().After(rfi.ModTime()) {
		return false
	}
	if nfi, err := os.Stat(ninja); err == nil && !ffi.ModTime().After(nfi.ModTime()) {
		return false
	}
	return true
}

// stale reports whether the raw database is missing or older than the
// build description.
func stale(raw, ninja string) bool {
	rfi, err := os.Stat(raw)
	if err != nil {
		return true
	}
	nfi, err := os.Stat(ninja)
	if err != nil {
		return false
	}
	return rfi.ModTime().Before(nfi.ModTime())
}

func (f *Filter) regenerate(ctx context.Context, buildDir, rawPath string) error {
	tool := f.NinjaTool
	if tool == "" {
		tool = "ninja"
	}
	toolPath, err := exec.LookPath(tool)
	if err != nil {
		return fmt.Errorf("%w: %s not found to regenerate %s", ErrNotFound, tool, rawPath)
	}
	cmd := exec.CommandContext(ctx, toolPath, "-C", buildDir, "-t", "compdb")
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return fmt.Errorf("%w: %s -t compdb failed: %s", ErrNotFound, tool, ee.Stderr)
		}
		return err
	}
	tmp := rawPath + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, rawPath); err != nil {
		os.Remove(tmp)
		return err
	}
	log.Infof("compdb: regenerated %s (%d bytes)", rawPath, len(out))
	return nil
}

// hasCompileMarker reports whether command contains a standalone
// compile-only flag. Entries for link or custom steps have no use for
// dependency scanning.
func hasCompileMarker(command string) bool {
	tokens, err := shutil.Split(command)
	if err != nil {
		tokens = strings.Fields(command)
	}
	for _, tok := range tokens {
		if tok == "-c" || tok == "/c" {
			return true
		}
	}
	return false
}
