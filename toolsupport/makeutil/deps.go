// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil parses makefile-style dependency listings.
package makeutil

import (
	"strings"
)

// Target is one rule of a dependency listing.
type Target struct {
	// Name is the rule target (usually an object file path).
	Name string
	// Deps are the dependency paths in listed order.
	Deps []string
}

// ParseTargets parses a makefile-style dependency listing such as the
// output of a dependency scanner in make format.
//
//	<target>: <dep> <dep> \
//	  <dep> ...
//
// '\'+newline is a space, '\'+space is an escaped space (not a separator).
// A token ending with an unescaped ':' starts a new rule; dependency
// tokens accumulate to the current rule until the next one. A separated
// colon ("foo.o :") promotes the preceding token to a target.
func ParseTargets(b []byte) []Target {
	var targets []Target
	var hold []string // tokens seen before any target; dropped at the end
	cur := -1

	appendDep := func(tok string) {
		if cur >= 0 {
			targets[cur].Deps = append(targets[cur].Deps, tok)
		} else {
			hold = append(hold, tok)
		}
	}
	takePrev := func() (string, bool) {
		if cur >= 0 {
			if n := len(targets[cur].Deps); n > 0 {
				tok := targets[cur].Deps[n-1]
				targets[cur].Deps = targets[cur].Deps[:n-1]
				return tok, true
			}
			return "", false
		}
		if n := len(hold); n > 0 {
			tok := hold[n-1]
			hold = hold[:n-1]
			return tok, true
		}
		return "", false
	}
	startTarget := func(name string) {
		targets = append(targets, Target{Name: name})
		cur = len(targets) - 1
	}

	var token string
	for s := b; len(s) > 0; {
		token, s = nextToken(s)
		switch {
		case token == "":
		case token == ":":
			if name, ok := takePrev(); ok {
				startTarget(name)
			}
		case strings.HasSuffix(token, ":"):
			startTarget(strings.TrimSuffix(token, ":"))
		default:
			appendDep(token)
		}
	}
	return targets
}

// ParseDeps parses a listing and returns all dependencies, in order.
func ParseDeps(b []byte) []string {
	var deps []string
	for _, t := range ParseTargets(b) {
		deps = append(deps, t.Deps...)
	}
	return deps
}

func nextToken(s []byte) (string, []byte) {
	var sb strings.Builder
	// skip spaces and escaped newlines
skipSpaces:
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if s[i] == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			s = s[i:]
			break skipSpaces
		}
	}
	// extract up to the next unescaped space
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case ' ':
				sb.WriteByte(s[i])
			case '\r', '\n':
				// '\'+newline is a space
				return sb.String(), s[i+1:]
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			return sb.String(), s[i+1:]
		case ':':
			// a colon followed by whitespace or EOL ends a target token.
			// "c:\obj\foo.obj" keeps its drive colon since it is followed
			// by a path character.
			if i+1 == len(s) || isSpace(s[i+1]) {
				sb.WriteByte(':')
				return sb.String(), s[i+1:]
			}
			sb.WriteByte(':')
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
