// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scan provides the scan subcommand, the full analysis
// pipeline for one build directory.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/depscan/analyze"
	"go.chromium.org/infra/build/depscan/config"
)

const usage = `analyze the dependencies of a build directory

 $ depscan scan -C <dir> [-o result.json]

Filters the compile database, runs the dependency scanner, builds the
header include graph and classifies every discovered file. Scanner
output is cached inside the build directory; a second run on an
unchanged build is served from cache.
`

// Cmd returns the Command for the `scan` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "scan -C <dir>",
		ShortDesc: "analyze dependencies of a build directory",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir        string
	configPath string
	output     string
	format     string
	logLevel   string
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "build directory containing compile_commands.json")
	c.Flags.StringVar(&c.configPath, "config", "", "optional depscan.toml path")
	c.Flags.StringVar(&c.output, "o", "", "write the result to this file instead of stdout")
	c.Flags.StringVar(&c.format, "format", "summary", "output format: summary or json")
	c.Flags.StringVar(&c.logLevel, "log_level", "info", "log level: debug, info, warn or error")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 2
	}
	if err := setLogLevel(c.logLevel); err != nil {
		fmt.Fprintf(a.GetErr(), "%v\n", err)
		return 2
	}
	if err := c.run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	res, err := analyze.Run(ctx, c.dir, analyze.Options{Config: cfg})
	if err != nil {
		return err
	}

	out := os.Stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	switch c.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "summary":
		return summarize(out, res)
	default:
		return fmt.Errorf("unknown format %q", c.format)
	}
}

func summarize(out *os.File, res *analyze.Result) error {
	counts := make(map[string]int)
	for _, t := range res.FileTypes {
		counts[t.String()]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintf(out, "project root: %s\n", res.ProjectRoot)
	fmt.Fprintf(out, "sources: %d\n", len(res.SourceDeps))
	fmt.Fprintf(out, "headers: %d (%d include edges)\n", len(res.Headers), res.Edges())
	for _, k := range kinds {
		fmt.Fprintf(out, "%s: %d\n", k, counts[k])
	}
	fmt.Fprintf(out, "scan time: %s\n", res.ScanElapsed)
	return nil
}

func setLogLevel(s string) error {
	lv, err := log.ParseLevel(s)
	if err != nil {
		return fmt.Errorf("bad -log_level %q: %w", s, err)
	}
	log.SetLevel(lv)
	return nil
}
