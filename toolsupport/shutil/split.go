// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil provides shell command line utilities.
package shutil

import (
	"fmt"
	"strings"
)

// Split splits a compile command line into tokens.
// It understands backslash escapes, double quotes and single quotes
// (compiler defines like -DNAME='"value"' are common in compile databases).
// It returns an error for pipeline metacharacters, since a compile database
// entry is a single invocation, not a shell script.
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	escaped := false
	inDQuote := false
	inSQuote := false
	inToken := false
	for _, ch := range cmdline {
		if escaped {
			sb.WriteRune(ch)
			escaped = false
			continue
		}
		if inSQuote {
			if ch == '\'' {
				inSQuote = false
				continue
			}
			sb.WriteRune(ch)
			continue
		}
		if inDQuote {
			switch ch {
			case '"':
				inDQuote = false
			case '\\':
				escaped = true
			default:
				sb.WriteRune(ch)
			}
			continue
		}
		switch ch {
		case '\\':
			escaped = true
			inToken = true
		case '"':
			inDQuote = true
			inToken = true
		case '\'':
			inSQuote = true
			inToken = true
		case ' ', '\t':
			if inToken {
				args = append(args, sb.String())
				sb.Reset()
				inToken = false
			}
		case ';', '&', '|', '<', '>', '`':
			return nil, fmt.Errorf("cmdline contains shell metachar %c", ch)
		default:
			sb.WriteRune(ch)
			inToken = true
		}
	}
	if inDQuote || inSQuote {
		return nil, fmt.Errorf("cmdline has unterminated quote")
	}
	if escaped {
		return nil, fmt.Errorf("cmdline has trailing backslash")
	}
	if inToken {
		args = append(args, sb.String())
	}
	return args, nil
}
