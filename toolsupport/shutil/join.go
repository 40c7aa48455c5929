// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil

import "strings"

// Join joins command line args to a single string, quoting args that
// contain whitespace or quotes so that Split(Join(args)) == args.
func Join(args []string) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(quote(arg))
	}
	return sb.String()
}

func quote(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, " \t\"'\\;&|<>`") {
		return arg
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '"', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(arg[i])
	}
	sb.WriteByte('"')
	return sb.String()
}
