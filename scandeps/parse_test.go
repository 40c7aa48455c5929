// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseOutput(t *testing.T) {
	output := `obj/a.o: \
  /proj/src/a.cc \
  /proj/src/a.h \
  /proj/src/common.h \
  /usr/include/stdio.h

obj/b.o: \
  /proj/src/b.cc \
  /proj/src/common.h
`
	srcDeps, headers := ParseOutput(output)

	wantDeps := map[string][]string{
		"/proj/src/a.cc": {
			"/proj/src/a.cc",
			"/proj/src/a.h",
			"/proj/src/common.h",
			"/usr/include/stdio.h",
		},
		"/proj/src/b.cc": {
			"/proj/src/b.cc",
			"/proj/src/common.h",
		},
	}
	if diff := cmp.Diff(wantDeps, srcDeps); diff != "" {
		t.Errorf("srcDeps -want +got:\n%s", diff)
	}
	// system headers are excluded from the discovered set.
	wantHeaders := []string{"/proj/src/a.h", "/proj/src/common.h"}
	if diff := cmp.Diff(wantHeaders, headers); diff != "" {
		t.Errorf("headers -want +got:\n%s", diff)
	}
}

func TestParseOutputTargetFallback(t *testing.T) {
	// first dependency is not a source file: the raw target is kept.
	output := "obj/gen.o: gen/version.h gen/version.inc\n"
	srcDeps, headers := ParseOutput(output)

	wantDeps := map[string][]string{
		"obj/gen.o": {"gen/version.h", "gen/version.inc"},
	}
	if diff := cmp.Diff(wantDeps, srcDeps); diff != "" {
		t.Errorf("srcDeps -want +got:\n%s", diff)
	}
	wantHeaders := []string{"gen/version.h", "gen/version.inc"}
	if diff := cmp.Diff(wantHeaders, headers); diff != "" {
		t.Errorf("headers -want +got:\n%s", diff)
	}
}

func TestParseOutputEmpty(t *testing.T) {
	srcDeps, headers := ParseOutput("")
	if len(srcDeps) != 0 || len(headers) != 0 {
		t.Errorf("ParseOutput(\"\") = %v, %v; want empty", srcDeps, headers)
	}
}
