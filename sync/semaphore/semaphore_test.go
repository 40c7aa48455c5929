// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package semaphore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.chromium.org/infra/build/depscan/sync/semaphore"
)

func TestNew(t *testing.T) {
	sema := semaphore.New(t.Name(), 3)
	if name := sema.Name(); name != t.Name() {
		t.Errorf("Name=%q; want %q", name, t.Name())
	}
	if n := sema.Capacity(); n != 3 {
		t.Errorf("Capacity=%d; want 3", n)
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()
	sema := semaphore.New(t.Name(), 2)

	var cur, max atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sema.Do(ctx, func(ctx context.Context) error {
				n := cur.Add(1)
				defer cur.Add(-1)
				for {
					m := max.Load()
					if n <= m || max.CompareAndSwap(m, n) {
						return nil
					}
				}
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()
	if m := max.Load(); m > 2 {
		t.Errorf("max concurrency=%d; want <= 2", m)
	}
	if n := sema.NumRequests(); n != 10 {
		t.Errorf("NumRequests=%d; want 10", n)
	}
	if n := sema.NumServs(); n != 0 {
		t.Errorf("NumServs=%d; want 0", n)
	}
}

func TestWaitAcquireCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sema := semaphore.New(t.Name(), 1)
	done, err := sema.WaitAcquire(ctx)
	if err != nil {
		t.Fatalf("WaitAcquire: %v", err)
	}
	defer done()

	cancel()
	_, err = sema.WaitAcquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitAcquire on canceled ctx: %v; want context.Canceled", err)
	}
}
