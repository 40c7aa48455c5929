// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package filetype

import (
	"testing"
)

func identity(p string) string { return p }

func TestClassify(t *testing.T) {
	generated := map[string]bool{
		"/proj/out/gen/settings.h": true,
	}
	c := &Classifier{
		Generated: generated,
		Resolve:   identity,
	}
	c.projectRoot = "/proj"

	for _, tc := range []struct {
		path string
		want Type
	}{
		{"/usr/include/stdio.h", System},
		{"/lib64/gcc/include/stddef.h", System},
		{"/opt/sysroot/usr/include/features.h", System},
		{"/proj/out/gen/settings.h", Generated},
		{"/proj/src/widget.h", Project},
		{"/proj/src/widget.cpp", Project},
		{"/home/vendor/abseil/base.h", ThirdParty},
		// hint set is authoritative: pattern-looking names inside the
		// project are not generated when absent from the hint.
		{"/proj/src/moc_widget.h", Project},
	} {
		if got := c.Classify(tc.path); got != tc.want {
			t.Errorf("Classify(%q)=%v; want %v", tc.path, got, tc.want)
		}
	}
}

func TestClassifyPatternFallback(t *testing.T) {
	c := &Classifier{Resolve: identity}
	c.projectRoot = "/proj"

	for _, tc := range []struct {
		path string
		want Type
	}{
		{"/proj/gen/message.pb.h", Generated},
		{"/proj/gen/message.pb.cc", Generated},
		{"/proj/gen/moc_window.cpp", Generated},
		{"/proj/gen/ui_dialog.h", Generated},
		{"/proj/gen/qrc_resources.cpp", Generated},
		{"/proj/gen/base_export.h", Generated},
		{"/proj/gen/feature_buildflags.h", Generated},
		{"/proj/gen/schema_generated.h", Generated},
		{"/proj/gen/widget_autogen.h", Generated},
		{"/proj/src/widget.h", Project},
	} {
		if got := c.Classify(tc.path); got != tc.want {
			t.Errorf("Classify(%q)=%v; want %v", tc.path, got, tc.want)
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	// SYSTEM wins over GENERATED even for paths in the hint set.
	c := &Classifier{
		Generated: map[string]bool{"/usr/include/conf.pb.h": true},
		Resolve:   identity,
	}
	c.projectRoot = "/proj"
	if got := c.Classify("/usr/include/conf.pb.h"); got != System {
		t.Errorf("Classify system+generated = %v; want System", got)
	}
}

func TestCommonRoot(t *testing.T) {
	for _, tc := range []struct {
		name  string
		paths []string
		want  string
	}{
		{
			name:  "empty",
			paths: nil,
			want:  "",
		},
		{
			name:  "single file uses its directory",
			paths: []string{"/proj/src/main.cpp"},
			want:  "/proj/src",
		},
		{
			name:  "siblings",
			paths: []string{"/proj/src/a.cpp", "/proj/src/b.cpp"},
			want:  "/proj/src",
		},
		{
			name:  "different depths",
			paths: []string{"/proj/src/a.cpp", "/proj/include/deep/x.h"},
			want:  "/proj",
		},
		{
			name:  "nothing shared",
			paths: []string{"/alpha/a.cpp", "/beta/b.cpp"},
			want:  "/",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := CommonRoot(tc.paths); got != tc.want {
				t.Errorf("CommonRoot(%q)=%q; want %q", tc.paths, got, tc.want)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	for _, tc := range []struct {
		t    Type
		want string
	}{
		{System, "SYSTEM"},
		{Generated, "GENERATED"},
		{ThirdParty, "THIRD_PARTY"},
		{Project, "PROJECT"},
	} {
		if got := tc.t.String(); got != tc.want {
			t.Errorf("%d.String()=%q; want %q", tc.t, got, tc.want)
		}
	}
}
