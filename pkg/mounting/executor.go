// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package mounting

import (
	"log"
	"sync"
	"time"

	"github.com/wavetermdev/shadowtree/pkg/utilds"
)

// TelemetrySink receives every transaction after it was mounted.
type TelemetrySink interface {
	RecordTransaction(tx *Transaction, mountErr error)
}

// Executor plays the mounting role: a single worker pulls transactions from
// a coordinator and applies them to a Mounter, one at a time, in order.
type Executor struct {
	coord   *Coordinator
	mounter Mounter
	sink    TelemetrySink
	queue   *utilds.WorkQueue[int64]

	lock    sync.Mutex
	mounted int
	lastErr error
}

// NewExecutor wires itself to coord's notifications. sink may be nil.
func NewExecutor(coord *Coordinator, mounter Mounter, sink TelemetrySink) *Executor {
	ex := &Executor{
		coord:   coord,
		mounter: mounter,
		sink:    sink,
	}
	ex.queue = utilds.NewWorkQueue("mounting:"+coord.SurfaceId(), ex.pull)
	coord.OnTransaction(func(surfaceId string, number int64) {
		ex.queue.Enqueue(number)
	})
	// anything already pending (the initial mount)
	ex.queue.Enqueue(-1)
	return ex
}

// pull drains the coordinator; number is only a wakeup.
func (ex *Executor) pull(number int64) {
	for {
		tx, ok := ex.coord.Take()
		if !ok {
			return
		}
		tx.Telemetry.MountStart = time.Now()
		err := ex.mounter.Apply(tx)
		tx.Telemetry.MountEnd = time.Now()
		ex.lock.Lock()
		if err != nil {
			ex.lastErr = err
		} else {
			ex.mounted++
		}
		ex.lock.Unlock()
		if err != nil {
			log.Printf("[mounting] surface %s: %s failed to mount: %v\n", tx.SurfaceId, tx, err)
		}
		if ex.sink != nil {
			ex.sink.RecordTransaction(tx, err)
		}
	}
}

// Flush waits until every transaction announced so far has been mounted.
func (ex *Executor) Flush() {
	ex.queue.Drain()
}

func (ex *Executor) Mounted() int {
	ex.lock.Lock()
	defer ex.lock.Unlock()
	return ex.mounted
}

func (ex *Executor) LastError() error {
	ex.lock.Lock()
	defer ex.lock.Unlock()
	return ex.lastErr
}

func (ex *Executor) Close() {
	ex.queue.Close(false)
	ex.queue.Wait()
}
