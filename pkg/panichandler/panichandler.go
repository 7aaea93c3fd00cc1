// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package panichandler turns recovered panics into errors. Callers recover
// at goroutine and callback boundaries (commit hooks, transaction callbacks,
// work queues) so one bad callback cannot take the process down.
package panichandler

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

type Observer func(debugStr string, recoverVal any)

var panicCount atomic.Int64
var observerLock sync.Mutex
var observer Observer

// SetObserver installs fn to be told about every handled panic (nil removes
// it). The observer runs after logging and must not panic itself.
func SetObserver(fn Observer) {
	observerLock.Lock()
	defer observerLock.Unlock()
	observer = fn
}

func getObserver() Observer {
	observerLock.Lock()
	defer observerLock.Unlock()
	return observer
}

// PanicCount is the number of panics handled since the process started.
func PanicCount() int64 {
	return panicCount.Load()
}

// PanicHandler handles panics and returns an error (wrapping the panic) if a panic occurred
func PanicHandler(debugStr string, recoverVal any) error {
	if recoverVal == nil {
		return nil
	}
	panicCount.Add(1)
	log.Printf("[panic] in %s: %v\n", debugStr, recoverVal)
	debug.PrintStack()
	if fn := getObserver(); fn != nil {
		fn(debugStr, recoverVal)
	}
	if err, ok := recoverVal.(error); ok {
		return fmt.Errorf("panic in %s: %w", debugStr, err)
	}
	return fmt.Errorf("panic in %s: %v", debugStr, recoverVal)
}
