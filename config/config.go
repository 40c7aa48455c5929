// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads optional analyzer configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config tunes the analysis pipeline. All fields have working
// defaults; a missing config file is not an error.
type Config struct {
	// Scanner is the dependency scanner binary.
	Scanner string `toml:"scanner"`
	// ScanTimeoutMinutes bounds one scanner run.
	ScanTimeoutMinutes int `toml:"scan_timeout_minutes"`
	// CacheMaxAgeHours bounds reuse and pruning of cached results.
	CacheMaxAgeHours int `toml:"cache_max_age_hours"`
	// Jobs overrides the scanner concurrency hint (0 = CPU count).
	Jobs int `toml:"jobs"`
	// NinjaTool regenerates a stale compile database.
	NinjaTool string `toml:"ninja_tool"`
	// SystemPrefixes replaces the default system path prefixes.
	SystemPrefixes []string `toml:"system_prefixes"`
	// TraceSanitizer enables per-token sanitizer decision logging.
	TraceSanitizer bool `toml:"trace_sanitizer"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scanner:            "clang-scan-deps",
		ScanTimeoutMinutes: 10,
		CacheMaxAgeHours:   7 * 24,
		NinjaTool:          "ninja",
	}
}

// FillDefaults returns c with each zero field replaced by its
// default. Set fields are kept, so a partially populated Config loses
// nothing.
func (c Config) FillDefaults() Config {
	def := Default()
	if c.Scanner == "" {
		c.Scanner = def.Scanner
	}
	if c.ScanTimeoutMinutes == 0 {
		c.ScanTimeoutMinutes = def.ScanTimeoutMinutes
	}
	if c.CacheMaxAgeHours == 0 {
		c.CacheMaxAgeHours = def.CacheMaxAgeHours
	}
	if c.NinjaTool == "" {
		c.NinjaTool = def.NinjaTool
	}
	return c
}

// Load reads path on top of the defaults. An empty path or a missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ScanTimeout returns the timeout as a duration.
func (c Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutMinutes) * time.Minute
}

// CacheMaxAge returns the max cache age as a duration.
func (c Config) CacheMaxAge() time.Duration {
	return time.Duration(c.CacheMaxAgeHours) * time.Hour
}
