// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logutil

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose turns DevPrintf output on or off (settings "log:verbose").
func SetVerbose(v bool) {
	verbose.Store(v)
}

func IsVerbose() bool {
	return verbose.Load()
}

// DevPrintf logs using log.Printf only if verbose logging is on
func DevPrintf(format string, v ...any) {
	if verbose.Load() {
		log.Printf(format, v...)
	}
}
