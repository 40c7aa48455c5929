// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sanitize provides the sanitize subcommand for debugging the
// compile-command sanitizer.
package sanitize

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/depscan/toolsupport/ccutil"
)

const usage = `sanitize compile commands

 $ depscan sanitize 'g++ -c foo.cc -o foo.o -Wall'
 $ depscan sanitize < commands.txt

Prints the sanitized form of each command, one per line. With no
arguments, commands are read from stdin one per line. Exits non-zero
if any command is rejected.
`

// Cmd returns the Command for the `sanitize` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "sanitize [<command>...]",
		ShortDesc: "sanitize compile commands",
		LongDesc:  usage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	trace bool
}

func (c *run) init() {
	c.Flags.BoolVar(&c.trace, "trace", false, "log each sanitizer token decision")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	s := ccutil.Sanitizer{Trace: c.trace}
	commands := args
	if len(commands) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				commands = append(commands, line)
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	failed := 0
	for _, cmdline := range commands {
		sanitized, err := s.Sanitize(cmdline)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}
		fmt.Println(sanitized)
	}
	if failed > 0 {
		return 1
	}
	return 0
}
