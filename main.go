// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command depscan analyzes the C/C++ dependency structure of ninja
// build directories using a clang-scan-deps style dependency scanner.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/depscan/subcmd/filter"
	"go.chromium.org/infra/build/depscan/subcmd/sanitize"
	"go.chromium.org/infra/build/depscan/subcmd/scan"
	"go.chromium.org/infra/build/depscan/subcmd/version"
)

const versionID = "0.1"

func getApplication() *subcommands.DefaultApplication {
	return &subcommands.DefaultApplication{
		Name:  "depscan",
		Title: fmt.Sprintf("depscan version %s", versionID),
		Commands: []*subcommands.Command{
			scan.Cmd(),
			filter.Cmd(),
			sanitize.Cmd(),
			version.Cmd(versionID),
			subcommands.CmdHelp,
		},
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("panic: %v\n%s", r, buf)
			os.Exit(2)
		}
	}()
	os.Exit(subcommands.Run(getApplication(), nil))
}
