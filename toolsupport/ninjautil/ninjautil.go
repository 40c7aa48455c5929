// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ninjautil extracts file facts from ninja build descriptions.
//
// It is deliberately not a full ninja parser: it reads only `build`
// statements (plus one level of include/subninja) to learn two facts
// the analyzer needs: which paths the build declares as outputs, and
// which source/header paths its rules reference. Rule bodies,
// variables and pools are skipped.
package ninjautil

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Facts are the file-level facts extracted from a build description.
type Facts struct {
	// Outputs are all declared build outputs.
	Outputs map[string]bool
	// Sources are source files referenced by build rules, sorted.
	Sources []string
	// Headers are header files referenced by build rules, sorted.
	Headers []string
}

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".m": true, ".mm": true, ".S": true, ".s": true,
}

var headerExts = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".h++": true,
	".inc": true, ".inl": true, ".ipp": true,
}

// ExtractFacts parses the build description at path.
func ExtractFacts(path string) (*Facts, error) {
	f := &Facts{Outputs: make(map[string]bool)}
	seenSrc := make(map[string]bool)
	seenHdr := make(map[string]bool)
	err := extract(path, 0, f, seenSrc, seenHdr)
	if err != nil {
		return nil, err
	}
	sort.Strings(f.Sources)
	sort.Strings(f.Headers)
	return f, nil
}

const maxIncludeDepth = 1

func extract(path string, depth int, f *Facts, seenSrc, seenHdr map[string]bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	record := func(p string, isOutput bool) {
		if isOutput {
			f.Outputs[p] = true
		}
		switch ext := strings.ToLower(filepath.Ext(p)); {
		case sourceExts[ext] || sourceExts[filepath.Ext(p)]:
			if !seenSrc[p] {
				seenSrc[p] = true
				f.Sources = append(f.Sources, p)
			}
		case headerExts[ext]:
			if !seenHdr[p] {
				seenHdr[p] = true
				f.Headers = append(f.Headers, p)
			}
		}
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var stmt strings.Builder
	flush := func() {
		line := stmt.String()
		stmt.Reset()
		switch {
		case strings.HasPrefix(line, "build "):
			outs, ins, ok := splitBuild(strings.TrimPrefix(line, "build "))
			if !ok {
				log.Debugf("ninjautil: skip malformed build statement %q", line)
				return
			}
			for _, p := range outs {
				record(p, true)
			}
			for _, p := range ins {
				record(p, false)
			}
		case strings.HasPrefix(line, "include "), strings.HasPrefix(line, "subninja "):
			if depth >= maxIncludeDepth {
				return
			}
			_, name, _ := strings.Cut(line, " ")
			sub := unescape(strings.TrimSpace(name))
			if !filepath.IsAbs(sub) {
				sub = filepath.Join(filepath.Dir(path), sub)
			}
			if err := extract(sub, depth+1, f, seenSrc, seenHdr); err != nil {
				log.Debugf("ninjautil: skip %s: %v", sub, err)
			}
		}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasSuffix(line, "$") && !strings.HasSuffix(line, "$$") {
			stmt.WriteString(strings.TrimSuffix(line, "$"))
			continue
		}
		stmt.WriteString(line)
		flush()
	}
	if stmt.Len() > 0 {
		flush()
	}
	return scanner.Err()
}

// splitBuild splits the remainder of a build statement into output and
// input paths. Rule name, implicit (|) and order-only (||) separators
// are handled; the variable block after the statement line is not part
// of the input.
func splitBuild(s string) (outs, ins []string, ok bool) {
	colon := indexUnescaped(s, ':')
	if colon < 0 {
		return nil, nil, false
	}
	outs = splitPaths(s[:colon])
	rest := strings.TrimSpace(s[colon+1:])
	// drop the rule name
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = ""
	}
	// implicit and order-only sections still name real files
	rest = strings.ReplaceAll(rest, "||", " ")
	rest = strings.ReplaceAll(rest, "|", " ")
	ins = splitPaths(rest)
	return outs, ins, true
}

// indexUnescaped finds c outside of "$"-escapes.
func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '$' {
			i++
			continue
		}
		if s[i] == c {
			return i
		}
	}
	return -1
}

func splitPaths(s string) []string {
	var paths []string
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			paths = append(paths, sb.String())
			sb.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '$':
			if i+1 < len(s) {
				i++
				switch s[i] {
				case ' ', ':', '$':
					sb.WriteByte(s[i])
				default:
					// unexpanded variable reference; keep the text as-is,
					// the analyzer only needs literal paths.
					sb.WriteByte('$')
					sb.WriteByte(s[i])
				}
			}
		case ' ', '\t':
			flush()
		default:
			sb.WriteByte(s[i])
		}
	}
	flush()
	return paths
}

func unescape(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	out := splitPaths(s)
	if len(out) == 0 {
		return ""
	}
	return out[0]
}
