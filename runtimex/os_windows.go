// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package runtimex

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// ALL_PROCESSOR_GROUPS
const allProcessorGroups = 0xFFFF

func getproccount() int {
	proc := windows.NewLazySystemDLL("kernel32.dll").NewProc("GetActiveProcessorCount")
	r0, _, _ := syscall.SyscallN(proc.Addr(), uintptr(allProcessorGroups))
	return int(r0)
}
