// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mounting turns shadow tree commits into transactions and hands
// them to the mounting layer.
package mounting

import (
	"sync"
	"time"

	"github.com/wavetermdev/shadowtree/pkg/differ"
	"github.com/wavetermdev/shadowtree/pkg/panichandler"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"github.com/wavetermdev/shadowtree/pkg/shadowtree"
	"github.com/wavetermdev/shadowtree/pkg/util/ds"
	"github.com/wavetermdev/shadowtree/pkg/util/logutil"
)

type CoordinatorOptions struct {
	// Coalesce folds a commit into a still pending transaction instead of
	// queueing a second one. Applying the result is equivalent to applying
	// both in order.
	Coalesce bool
}

// TransactionCallback is told that a transaction is ready to Take. It runs
// on the committing goroutine and must not block.
type TransactionCallback func(surfaceId string, number int64)

type Coordinator struct {
	surfaceId string
	coalesce  bool

	lock        sync.Mutex
	pending     *ds.SeqHeap[*Transaction]
	delivered   int64
	invalidated bool
	callbacks   []TransactionCallback
}

// NewCoordinator attaches a coordinator to tree. The first transaction
// mounts the tree's current root from nothing; every later commit is queued
// after it.
func NewCoordinator(tree *shadowtree.ShadowTree, opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		surfaceId: tree.SurfaceId(),
		coalesce:  opts.Coalesce,
		pending:   ds.MakeSeqHeap[*Transaction](),
		delivered: -1,
	}
	// commits notified before the initial transaction is queued wait on c.lock
	c.lock.Lock()
	defer c.lock.Unlock()
	root, number, invalidated := tree.AttachDelegate(c)
	if invalidated {
		c.invalidated = true
		return c
	}
	c.pending.Push(number, c.makeTransaction(&shadowtree.CommitResult{Number: number, SurfaceId: c.surfaceId, NewRoot: root}, nil, 0))
	return c
}

func (c *Coordinator) SurfaceId() string {
	return c.surfaceId
}

// OnTransaction registers a callback for newly available transactions.
func (c *Coordinator) OnTransaction(cb TransactionCallback) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

func (c *Coordinator) ShadowTreeDidCommit(tree *shadowtree.ShadowTree, result *shadowtree.CommitResult) {
	c.Push(result)
}

// ShadowTreeDidInvalidate drops everything still pending. Take returns
// nothing from now on.
func (c *Coordinator) ShadowTreeDidInvalidate(tree *shadowtree.ShadowTree) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.invalidated = true
	if !c.pending.Empty() {
		logutil.DevPrintf("[mounting] surface %s: discarding %d pending transactions\n", c.surfaceId, c.pending.Len())
	}
	c.pending.Clear()
}

// Push computes the transaction for a commit and queues it.
func (c *Coordinator) Push(result *shadowtree.CommitResult) {
	if result == nil || result.Unchanged {
		return
	}
	if c.push(result) {
		c.notify(result.Number)
	}
}

func (c *Coordinator) push(result *shadowtree.CommitResult) bool {
	base := result.OldRoot
	coalesced := 0
	c.lock.Lock()
	if c.invalidated {
		c.lock.Unlock()
		return false
	}
	if c.coalesce {
		if _, prev, ok := c.pending.PopLast(); ok {
			base = prev.base
			coalesced = prev.CoalescedCount + 1
		}
	}
	c.lock.Unlock()

	tx := c.makeTransaction(result, base, coalesced)

	c.lock.Lock()
	defer c.lock.Unlock()
	if c.invalidated {
		return false
	}
	c.pending.Push(tx.Number, tx)
	return true
}

func (c *Coordinator) makeTransaction(result *shadowtree.CommitResult, base *shadownode.ShadowNode, coalesced int) *Transaction {
	tx := &Transaction{
		Number:         result.Number,
		SurfaceId:      c.surfaceId,
		Root:           result.NewRoot,
		CoalescedCount: coalesced,
		base:           base,
	}
	tx.Telemetry.Commit = result.Telemetry
	tx.Telemetry.DiffStart = time.Now()
	tx.Mutations = differ.Diff(base, result.NewRoot)
	tx.Telemetry.DiffEnd = time.Now()
	tx.Telemetry.Counts = differ.Summarize(tx.Mutations)
	return tx
}

func (c *Coordinator) notify(number int64) {
	c.lock.Lock()
	callbacks := append([]TransactionCallback(nil), c.callbacks...)
	c.lock.Unlock()
	for _, cb := range callbacks {
		func() {
			defer func() {
				panichandler.PanicHandler("mounting:ontransaction", recover())
			}()
			cb(c.surfaceId, number)
		}()
	}
}

// Take returns the oldest pending transaction, never blocking.
func (c *Coordinator) Take() (*Transaction, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.invalidated {
		return nil, false
	}
	_, tx, ok := c.pending.Pop()
	if !ok {
		return nil, false
	}
	c.delivered = tx.Number
	return tx, true
}

// Revision is the number of the last transaction handed out by Take, -1 if none.
func (c *Coordinator) Revision() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.delivered
}

func (c *Coordinator) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending.Len()
}
