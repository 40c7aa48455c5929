// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runtimex supplements the standard runtime package.
package runtimex

import (
	"runtime"
	"sync"
)

var numCPU = sync.OnceValue(func() int {
	if n := getproccount(); n > 0 {
		return n
	}
	return runtime.NumCPU()
})

// NumCPU returns the number of logical CPUs usable by the process.
// On Windows runtime.NumCPU only reports one processor group (up to
// 64 CPUs); GetActiveProcessorCount counts across all groups. See
// https://github.com/kubernetes/kubernetes/blob/a4b8a3b2/pkg/kubelet/winstats/perfcounter_nodestats_windows.go#L205
func NumCPU() int {
	return numCPU()
}
