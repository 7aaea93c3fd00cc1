// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"sync"

	"github.com/wavetermdev/shadowtree/pkg/panichandler"
)

// WorkQueue runs workFn for every enqueued item on a single worker
// goroutine, in enqueue order. The worker starts on the first Enqueue. A
// panicking workFn is logged and the worker moves on to the next item.
type WorkQueue[T any] struct {
	name    string
	lock    sync.Mutex
	cond    *sync.Cond
	queue   []T
	closed  bool
	started bool
	busy    bool
	wg      sync.WaitGroup
	workFn  func(T)
}

func NewWorkQueue[T any](name string, workFn func(T)) *WorkQueue[T] {
	wq := &WorkQueue[T]{
		name:   name,
		workFn: workFn,
	}
	wq.cond = sync.NewCond(&wq.lock)
	return wq
}

func (wq *WorkQueue[T]) Enqueue(item T) bool {
	wq.lock.Lock()
	defer wq.lock.Unlock()
	if wq.closed {
		return false
	}
	if !wq.started {
		wq.started = true
		wq.wg.Add(1)
		go wq.worker()
	}
	wq.queue = append(wq.queue, item)
	wq.cond.Broadcast()
	return true
}

func (wq *WorkQueue[T]) worker() {
	defer wq.wg.Done()
	for {
		wq.lock.Lock()
		for len(wq.queue) == 0 && !wq.closed {
			wq.cond.Wait()
		}
		if wq.closed && len(wq.queue) == 0 {
			wq.lock.Unlock()
			return
		}
		item := wq.queue[0]
		wq.queue = wq.queue[1:]
		wq.busy = true
		wq.lock.Unlock()

		wq.runItem(item)

		wq.lock.Lock()
		wq.busy = false
		wq.cond.Broadcast()
		wq.lock.Unlock()
	}
}

func (wq *WorkQueue[T]) runItem(item T) {
	defer func() {
		panichandler.PanicHandler("workqueue:"+wq.name, recover())
	}()
	wq.workFn(item)
}

// Len is the number of items not yet started.
func (wq *WorkQueue[T]) Len() int {
	wq.lock.Lock()
	defer wq.lock.Unlock()
	return len(wq.queue)
}

// Drain blocks until every item enqueued so far has been processed.
func (wq *WorkQueue[T]) Drain() {
	wq.lock.Lock()
	defer wq.lock.Unlock()
	for len(wq.queue) > 0 || wq.busy {
		wq.cond.Wait()
	}
}

// Close stops accepting items. With immediate, items not yet started are dropped.
func (wq *WorkQueue[T]) Close(immediate bool) {
	wq.lock.Lock()
	wq.closed = true
	if immediate {
		wq.queue = nil
	}
	wq.cond.Broadcast()
	wq.lock.Unlock()
}

// Wait blocks until the worker exits (after Close).
func (wq *WorkQueue[T]) Wait() {
	wq.wg.Wait()
}
