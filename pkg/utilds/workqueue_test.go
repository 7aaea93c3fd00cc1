// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWorkQueue_Order(t *testing.T) {
	var lock sync.Mutex
	var got []int
	wq := NewWorkQueue("test", func(v int) {
		lock.Lock()
		defer lock.Unlock()
		got = append(got, v)
	})
	for i := 0; i < 5; i++ {
		wq.Enqueue(i)
	}
	wq.Drain()
	lock.Lock()
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	lock.Unlock()
	wq.Close(false)
	wq.Wait()
	if wq.Enqueue(9) {
		t.Errorf("enqueue after close should fail")
	}
}

func TestWorkQueue_PanicKeepsWorker(t *testing.T) {
	var count int
	wq := NewWorkQueue("panic", func(v int) {
		if v == 1 {
			panic("bad item")
		}
		count++
	})
	wq.Enqueue(0)
	wq.Enqueue(1)
	wq.Enqueue(2)
	wq.Drain()
	if count != 2 {
		t.Errorf("expected 2 items processed around the panic, got %d", count)
	}
	wq.Close(true)
	wq.Wait()
}
