// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cache persists scan results under a build directory.
//
// Every cache lives in a fixed-name subdirectory of its build
// directory, so concurrent analyses of different build directories can
// never read or write each other's records. A record is validated
// against the mtime+size of the file it was derived from, an optional
// secondary file mtime, and its age; any mismatch is a miss. Caching
// is a performance optimization only: read and write failures degrade
// to miss/skip, never to a pipeline failure.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"
)

// DirName is the cache subdirectory under a build directory.
const DirName = ".depscan_cache"

// recordVersion guards the serialization format. A version mismatch
// fails closed as a miss, never as a type confusion.
const recordVersion = 1

// ErrCorrupt reports an undecodable record. It is handled inside Get
// (delete + miss) and exported only for tests.
var ErrCorrupt = errors.New("corrupt cache record")

// Kind tags what a record's payload holds.
type Kind string

const (
	// KindScanOutput is a (scanner output, elapsed) pair.
	KindScanOutput Kind = "scan-output"
	// KindIncludePaths is an include-path set.
	KindIncludePaths Kind = "include-paths"
)

// Key identifies one logical cache entry.
type Key struct {
	Kind Kind
	// File is the primary referenced file; its mtime and size
	// invalidate the record.
	File string
	// Secondary optionally names a second file whose mtime also
	// invalidates the record (e.g. the build description).
	Secondary string
}

type meta struct {
	MTimeNanos          int64     `json:"mtime_nanos"`
	Size                int64     `json:"size"`
	SecondaryMTimeNanos int64     `json:"secondary_mtime_nanos,omitempty"`
	Created             time.Time `json:"created"`
}

type record struct {
	Version int             `json:"version"`
	Kind    Kind            `json:"kind"`
	Meta    meta            `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// Cache is a build-directory-local record store.
type Cache struct {
	dir string

	singleflight singleflight.Group
	timestamp    time.Time
}

// New returns the cache for buildDir.
func New(buildDir string) *Cache {
	return &Cache{
		dir: filepath.Join(buildDir, DirName),
		// one timestamp per pipeline run keeps pruning decisions stable.
		timestamp: time.Now(),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) filename(k Key) string {
	h := sha256.Sum256([]byte(string(k.Kind) + "\x00" + k.File + "\x00" + k.Secondary))
	name := hex.EncodeToString(h[:])
	return filepath.Join(c.dir, name[:2], name[2:]+".json.gz")
}

// Get loads the record for k into payload. It returns false on any
// miss: absent record, metadata mismatch, age overrun, version or kind
// mismatch. Corrupt records are deleted and treated as a miss.
func (c *Cache) Get(k Key, maxAge time.Duration, payload any) bool {
	fname := c.filename(k)
	b, err := os.ReadFile(fname)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		log.Warnf("cache: read %s: %v", fname, err)
		return false
	}
	rec, err := decodeRecord(b)
	if err != nil {
		log.Warnf("cache: %v in %s, removing", err, fname)
		if rerr := os.Remove(fname); rerr != nil {
			log.Warnf("cache: remove corrupt %s: %v", fname, rerr)
		}
		return false
	}
	if rec.Version != recordVersion || rec.Kind != k.Kind {
		return false
	}
	fi, err := os.Stat(k.File)
	if err != nil {
		return false
	}
	if fi.ModTime().UnixNano() != rec.Meta.MTimeNanos || fi.Size() != rec.Meta.Size {
		return false
	}
	if k.Secondary != "" {
		sfi, err := os.Stat(k.Secondary)
		if err != nil || sfi.ModTime().UnixNano() != rec.Meta.SecondaryMTimeNanos {
			return false
		}
	}
	if maxAge > 0 && c.timestamp.Sub(rec.Meta.Created) > maxAge {
		return false
	}
	if err := json.Unmarshal(rec.Payload, payload); err != nil {
		log.Warnf("cache: payload of %s does not decode: %v, removing", fname, err)
		if rerr := os.Remove(fname); rerr != nil {
			log.Warnf("cache: remove corrupt %s: %v", fname, rerr)
		}
		return false
	}
	// refresh mtime so Prune measures recency of use, not of creation.
	if err := os.Chtimes(fname, c.timestamp, c.timestamp); err != nil {
		log.Debugf("cache: chtimes %s: %v", fname, err)
	}
	return true
}

func decodeRecord(b []byte) (*record, error) {
	gr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer gr.Close()
	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec := &record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rec, nil
}

// Put stores payload for k, capturing the referenced files' current
// metadata. Failures are returned for logging but callers treat them
// as "skip saving".
func (c *Cache) Put(k Key, payload any) error {
	fi, err := os.Stat(k.File)
	if err != nil {
		return fmt.Errorf("cache: stat %s: %w", k.File, err)
	}
	m := meta{
		MTimeNanos: fi.ModTime().UnixNano(),
		Size:       fi.Size(),
		Created:    c.timestamp,
	}
	if k.Secondary != "" {
		sfi, err := os.Stat(k.Secondary)
		if err != nil {
			return fmt.Errorf("cache: stat %s: %w", k.Secondary, err)
		}
		m.SecondaryMTimeNanos = sfi.ModTime().UnixNano()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: encode payload: %w", err)
	}
	b, err := json.Marshal(&record{
		Version: recordVersion,
		Kind:    k.Kind,
		Meta:    m,
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("cache: encode record: %w", err)
	}

	fname := c.filename(k)
	_, err, _ = c.singleflight.Do(fname, func() (any, error) {
		if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(b); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		// temp file + rename for an atomic write.
		tmp := fname + "." + uuid.NewString() + ".tmp"
		if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
			os.Remove(tmp)
			return nil, err
		}
		if err := os.Rename(tmp, fname); err != nil {
			os.Remove(tmp)
			return nil, err
		}
		return nil, nil
	})
	return err
}

// Prune removes records not used within maxAge. Errors are logged and
// skipped; pruning is opportunistic.
func (c *Cache) Prune(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	threshold := c.timestamp.Add(-maxAge)
	n, reclaimed := prune(c.dir, threshold)
	if n > 0 {
		log.Infof("cache: pruned %d records (%d bytes)", n, reclaimed)
	}
}

func prune(dir string, threshold time.Time) (n int, reclaimed int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warnf("cache: read %s: %v", dir, err)
		}
		return 0, 0
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			pn, ps := prune(path, threshold)
			n += pn
			reclaimed += ps
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if err := os.Remove(path); err != nil {
				log.Warnf("cache: remove %s: %v", path, err)
				continue
			}
			n++
			reclaimed += info.Size()
		}
	}
	return n, reclaimed
}
