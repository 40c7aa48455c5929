// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package filter provides the filter subcommand, which produces the
// filtered compile database without running the scanner.
package filter

import (
	"context"
	"fmt"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/depscan/compdb"
	"go.chromium.org/infra/build/depscan/config"
	"go.chromium.org/infra/build/depscan/toolsupport/ccutil"
)

const usage = `produce the filtered compile database

 $ depscan filter -C <dir>

Loads <dir>/compile_commands.json (regenerating it with ninja when it
is stale), keeps only C/C++ compile entries, sanitizes each command
for dependency scanning and writes compile_commands_deps.json next to
the original. Prints the filtered database path.
`

// Cmd returns the Command for the `filter` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "filter -C <dir>",
		ShortDesc: "produce the filtered compile database",
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
	trace      bool
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "build directory containing compile_commands.json")
	c.Flags.StringVar(&c.configPath, "config", "", "optional depscan.toml path")
	c.Flags.BoolVar(&c.trace, "trace", false, "log each sanitizer token decision")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 2
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	f := &compdb.Filter{
		Sanitizer: ccutil.Sanitizer{Trace: c.trace || cfg.TraceSanitizer},
		NinjaTool: cfg.NinjaTool,
	}
	path, err := f.Run(context.Background(), c.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}
