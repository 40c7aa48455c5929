// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps invokes the external dependency scanner against a
// filtered compile database and parses its makefile-style output.
package scandeps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscan/cache"
	"go.chromium.org/infra/build/depscan/compdb"
	"go.chromium.org/infra/build/depscan/runtimex"
)

// Defaults for Runner fields left zero.
const (
	DefaultTool        = "clang-scan-deps"
	DefaultTimeout     = 10 * time.Minute
	DefaultMaxCacheAge = 7 * 24 * time.Hour
)

// ErrToolNotFound reports that the scanner binary cannot be located.
var ErrToolNotFound = errors.New("dependency scanner not found")

// ScanError reports a scanner run that exited non-zero or timed out.
type ScanError struct {
	Tool     string
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *ScanError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("scan failed: %s timed out: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("scan failed: %s: %v\n%s", e.Tool, e.Err, e.Stderr)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Runner invokes the dependency scanner, consulting the build
// directory's cache first.
type Runner struct {
	// Tool is the scanner binary; looked up on PATH when not absolute.
	Tool string
	// Timeout bounds one scanner run.
	Timeout time.Duration
	// Jobs is the scanner concurrency hint; defaults to the CPU count.
	Jobs int
	// MaxCacheAge bounds reuse and pruning of cached scan output.
	MaxCacheAge time.Duration
}

// scanRecord is the tagged cache payload for one scan.
type scanRecord struct {
	Output         string  `json:"output"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Scan returns the scanner's makefile-style output for the filtered
// database, either from cache or from a fresh run. The returned
// elapsed time is the scanner's own runtime (the cached value on a
// hit, so cached and fresh results are indistinguishable downstream).
func (r *Runner) Scan(ctx context.Context, buildDir, filteredDB string) (string, time.Duration, error) {
	maxAge := r.MaxCacheAge
	if maxAge == 0 {
		maxAge = DefaultMaxCacheAge
	}
	c := cache.New(buildDir)
	key := cache.Key{Kind: cache.KindScanOutput, File: filteredDB}
	if ninja := filepath.Join(buildDir, compdb.BuildFileName); fileExists(ninja) {
		key.Secondary = ninja
	}
	var rec scanRecord
	if c.Get(key, maxAge, &rec) {
		log.Infof("scandeps: cache hit for %s", filteredDB)
		return rec.Output, secondsToDuration(rec.ElapsedSeconds), nil
	}

	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}
	toolPath, err := exec.LookPath(tool)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s", ErrToolNotFound, tool)
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	jobs := r.Jobs
	if jobs == 0 {
		jobs = runtimex.NumCPU()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, toolPath,
		"--compilation-database="+filteredDB,
		"--format=make",
		"-j", strconv.Itoa(jobs))
	cmd.Dir = buildDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Infof("scandeps: run %s -j%d on %s", toolPath, jobs, filteredDB)
	started := time.Now()
	err = cmd.Run()
	elapsed := time.Since(started)
	if err != nil {
		return "", elapsed, &ScanError{
			Tool:     toolPath,
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	log.Infof("scandeps: %d bytes of output in %s", stdout.Len(), elapsed)

	rec = scanRecord{Output: stdout.String(), ElapsedSeconds: elapsed.Seconds()}
	if err := c.Put(key, rec); err != nil {
		log.Warnf("scandeps: skip caching: %v", err)
	}
	c.Prune(maxAge)
	return rec.Output, elapsed, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
