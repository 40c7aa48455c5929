// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdb reads, filters and writes compile databases.
package compdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed filenames under a build directory.
const (
	DBName         = "compile_commands.json"
	FilteredDBName = "compile_commands_deps.json"
	BuildFileName  = "build.ninja"
)

var (
	// ErrNotFound reports a missing build directory, database or tool.
	ErrNotFound = errors.New("compile database not found")
	// ErrInvalidFormat reports a database that is not a list of entries.
	ErrInvalidFormat = errors.New("compile database is not a list of entries")
	// ErrEmpty reports that no entry survived filtering.
	ErrEmpty = errors.New("no usable compile database entries")
)

// PathEscapeError reports a database path resolving outside its build
// directory. Always fatal, never recovered.
type PathEscapeError struct {
	Path     string
	BuildDir string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes build directory %q", e.Path, e.BuildDir)
}

// Entry is one compilation unit of a compile database.
type Entry struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
}

// Load reads a compile database.
func Load(path string) ([]Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return decode(b, path)
}

func decode(b []byte, path string) ([]Entry, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, path)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	return entries, nil
}

// Write writes entries as a compile database via a temp file + rename.
func Write(path string, entries []Entry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// securePath joins name onto buildDir and rejects escapes.
func securePath(buildDir, name string) (string, error) {
	p := filepath.Clean(filepath.Join(buildDir, name))
	rel, err := filepath.Rel(buildDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathEscapeError{Path: name, BuildDir: buildDir}
	}
	return p, nil
}
