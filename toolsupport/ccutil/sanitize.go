// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ccutil rewrites C/C++ compiler invocations into minimal
// scanner-safe commands.
//
// A dependency scanner only needs preprocessing-relevant flags
// (include paths, defines, language mode, the -o disambiguator).
// Everything else a build wrapper or the build system injects
// (optimization, warnings, codegen, linking, wrapper residue) is
// dropped, since it can be incompatible with the scanner's argument
// parser.
package ccutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscan/toolsupport/shutil"
)

// InvalidCommandError reports a command that cannot be made scanner-safe.
type InvalidCommandError struct {
	Reason    string
	Original  []string
	Sanitized []string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command: %s (original=%q sanitized=%q)",
		e.Reason, truncateTokens(e.Original), truncateTokens(e.Sanitized))
}

func truncateTokens(tokens []string) []string {
	const max = 8
	if len(tokens) <= max {
		return tokens
	}
	out := make([]string, max+1)
	copy(out, tokens[:max])
	out[max] = fmt.Sprintf("... (%d more)", len(tokens)-max)
	return out
}

// build wrappers that may prefix the real compiler.
var wrapperNames = map[string]bool{
	"ccache":  true,
	"distcc":  true,
	"icecc":   true,
	"sccache": true,
}

// compilerAliases translates recognized compiler basenames to
// scanner-compatible equivalents.
var compilerAliases = map[string]string{
	"cc":    "clang",
	"gcc":   "clang",
	"c++":   "clang++",
	"g++":   "clang++",
	"cl":    "clang-cl",
	"tcc":   "clang",
	"icc":   "clang",
	"icpc":  "clang++",
	"icx":   "clang",
	"icpx":  "clang++",
	"clang": "clang", "clang++": "clang++", "clang-cl": "clang-cl",
}

// dependency-output flags that take a following argument. They conflict
// with the scanner's own dependency tracking.
var depsOutputFlags = map[string]bool{
	"-MF": true, "-MT": true, "-MQ": true, "-MJ": true,
}

// dependency-generation mode flags, no argument.
var depsModeFlags = map[string]bool{
	"-M": true, "-MM": true, "-MD": true, "-MMD": true, "-MG": true,
}

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".m": true, ".mm": true, ".S": true, ".s": true,
}

// validFlag is a whitelisted flag. If sepArg is set and the token is
// exactly the flag, the following token is its argument. If inline is
// set, the argument may be glued to the flag (-I../.., -std=c++17).
type validFlag struct {
	prefix string
	sepArg bool
	inline bool
}

// whitelist of preprocessing-relevant flags.
var validFlags = []validFlag{
	{"-I", true, true},
	{"-D", true, true},
	{"-U", true, true},
	{"-isystem", true, true},
	{"-iquote", true, true},
	{"-idirafter", true, true},
	{"-include", true, true},
	{"-imacros", true, true},
	{"-x", true, true},
	{"--sysroot", true, true}, // --sysroot=path matches inline
	{"--target=", false, true},
	{"-target", true, false},
	{"-std=", false, true},
	{"-nostdinc", false, false},
	{"-nostdinc++", false, false},
	{"-pthread", false, false},
	{"-c", false, false},
	// MSVC spellings.
	{"/I", true, true},
	{"/D", true, true},
	{"/U", true, true},
	{"/FI", true, true},
	{"/std:", false, true},
	{"/TP", false, false},
	{"/TC", false, false},
	{"/X", false, false},
	{"/Zc:", false, true},
	{"/c", false, false},
}

// Sanitizer rewrites raw compile commands. Trace enables per-token
// decision logging at debug level; it is explicit state here instead of
// a process-wide debug flag so concurrent pipelines can trace
// independently.
type Sanitizer struct {
	Trace bool
}

// Sanitize rewrites one raw compiler invocation into a minimal
// scanner-safe invocation. It fails with *InvalidCommandError when the
// input is blank, or when no compiler or no source file survives
// filtering.
func (s Sanitizer) Sanitize(cmdline string) (string, error) {
	if strings.TrimSpace(cmdline) == "" {
		return "", &InvalidCommandError{Reason: "empty command"}
	}
	tokens, err := shutil.Split(cmdline)
	if err != nil {
		return "", &InvalidCommandError{Reason: fmt.Sprintf("unparseable command: %v", err)}
	}
	var out []string
	compilerFound := false
	sourceFound := false
	dropped := 0

	drop := func(tok, why string) {
		dropped++
		if s.Trace {
			log.Debugf("sanitize: drop %q (%s)", tok, why)
		}
	}
	keep := func(toks ...string) {
		out = append(out, toks...)
		if s.Trace {
			log.Debugf("sanitize: keep %q", toks)
		}
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case isWrapper(tok):
			drop(tok, "build wrapper")

		case isBareKeyValue(tok):
			// wrapper environment residue, e.g. CCACHE_SLOPPINESS=...
			drop(tok, "bare key=value")

		case strings.HasPrefix(tok, "@"):
			// response file contents cannot be trusted to be scanner-safe.
			drop(tok, "response file")

		case depsOutputFlags[tok]:
			drop(tok, "deps output flag")
			if i+1 < len(tokens) {
				drop(tokens[i+1], "deps output arg")
				i++
			}

		case hasDepsOutputPrefix(tok):
			drop(tok, "deps output flag")

		case tok == "-o":
			// keep the output path; it disambiguates compilation units
			// that share a source basename.
			if i+1 < len(tokens) {
				keep(tok, tokens[i+1])
				i++
			} else {
				drop(tok, "dangling -o")
			}

		case strings.HasPrefix(tok, "-o"):
			// glued form, -oobj/a.o
			keep(tok)

		case strings.HasPrefix(tok, "/Fo"):
			keep(tok)

		case depsModeFlags[tok]:
			drop(tok, "deps mode flag")

		case strings.HasPrefix(tok, "-Wl,"), strings.HasPrefix(tok, "--linker-option"):
			drop(tok, "linker flag")

		case tok == "-Xlinker":
			drop(tok, "linker flag")
			if i+1 < len(tokens) {
				drop(tokens[i+1], "linker arg")
				i++
			}

		case !compilerFound && isCompiler(tok):
			keep(translateCompiler(tok))
			compilerFound = true

		case !strings.HasPrefix(tok, "-") && sourceExts[fileExt(tok)]:
			if sourceFound {
				drop(tok, "extra source file")
				break
			}
			keep(tok)
			sourceFound = true

		default:
			if n, ok := matchValidFlag(tok, tokens[i+1:]); ok {
				keep(tokens[i : i+1+n]...)
				i += n
				break
			}
			drop(tok, "not whitelisted")
		}
	}

	if s.Trace {
		log.Debugf("sanitize: %d tokens in, %d kept, %d dropped", len(tokens), len(out), dropped)
	}
	switch {
	case len(out) == 0:
		return "", &InvalidCommandError{Reason: "all tokens filtered", Original: tokens}
	case !compilerFound:
		return "", &InvalidCommandError{Reason: "no compiler in command", Original: tokens, Sanitized: out}
	case !sourceFound:
		return "", &InvalidCommandError{Reason: "no source file in command", Original: tokens, Sanitized: out}
	}
	return shutil.Join(out), nil
}

func isWrapper(tok string) bool {
	base := strings.ToLower(basename(tok))
	return wrapperNames[base]
}

func isBareKeyValue(tok string) bool {
	if strings.HasPrefix(tok, "-") || strings.HasPrefix(tok, "/") {
		return false
	}
	return strings.Contains(tok, "=")
}

func hasDepsOutputPrefix(tok string) bool {
	for f := range depsOutputFlags {
		if len(tok) > len(f) && strings.HasPrefix(tok, f) {
			return true
		}
	}
	return false
}

// basename strips the directory (either separator style) and a
// trailing ".exe".
func basename(tok string) string {
	base := tok
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if strings.EqualFold(filepath.Ext(base), ".exe") {
		base = base[:len(base)-len(".exe")]
	}
	return base
}

func fileExt(tok string) string {
	ext := filepath.Ext(tok)
	if ext == ".s" || ext == ".S" {
		return ext
	}
	return strings.ToLower(ext)
}

func isCompiler(tok string) bool {
	if strings.HasPrefix(tok, "-") {
		return false
	}
	base := basename(tok)
	if _, ok := compilerAliases[base]; ok {
		return true
	}
	// cross toolchains, e.g. x86_64-nacl-gcc, armv7a-cros-linux-gnueabihf-clang++.
	for _, suffix := range []string{"-gcc", "-g++", "-clang", "-clang++", "-clang-cl", "-cc", "-c++"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// translateCompiler maps a recognized compiler token to a
// scanner-compatible equivalent. Clang-named compilers pass through
// with their full path; everything else loses its path since the
// translated binary lives elsewhere.
func translateCompiler(tok string) string {
	base := basename(tok)
	if strings.HasPrefix(base, "clang") || strings.HasSuffix(base, "clang") ||
		strings.HasSuffix(base, "clang++") || strings.HasSuffix(base, "clang-cl") {
		return tok
	}
	if alias, ok := compilerAliases[base]; ok {
		return alias
	}
	switch {
	case strings.HasSuffix(base, "-gcc"), strings.HasSuffix(base, "-cc"):
		return "clang"
	case strings.HasSuffix(base, "-g++"), strings.HasSuffix(base, "-c++"):
		return "clang++"
	}
	log.Warnf("sanitize: unknown compiler %q, assuming C++", tok)
	return "clang++"
}

// matchValidFlag reports whether tok is whitelisted and how many
// following tokens belong to it. Exact matches win over inline prefix
// matches so that -include is not mistaken for -I with a glued argument.
func matchValidFlag(tok string, rest []string) (nargs int, ok bool) {
	inline := false
	for _, f := range validFlags {
		if tok == f.prefix {
			if f.sepArg {
				if len(rest) == 0 {
					return 0, false
				}
				return 1, true
			}
			return 0, true
		}
		if f.inline && strings.HasPrefix(tok, f.prefix) {
			inline = true
		}
	}
	if inline {
		return 0, true
	}
	return 0, false
}
