// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package mounting

import (
	"fmt"
	"time"

	"github.com/wavetermdev/shadowtree/pkg/differ"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"github.com/wavetermdev/shadowtree/pkg/shadowtree"
)

type TransactionTelemetry struct {
	Commit     shadowtree.CommitTelemetry `json:"commit"`
	DiffStart  time.Time                  `json:"diffstart"`
	DiffEnd    time.Time                  `json:"diffend"`
	MountStart time.Time                  `json:"mountstart,omitempty"`
	MountEnd   time.Time                  `json:"mountend,omitempty"`
	Counts     differ.MutationCounts      `json:"counts"`
}

func (tt TransactionTelemetry) DiffDuration() time.Duration {
	return tt.DiffEnd.Sub(tt.DiffStart)
}

func (tt TransactionTelemetry) MountDuration() time.Duration {
	if tt.MountStart.IsZero() {
		return 0
	}
	return tt.MountEnd.Sub(tt.MountStart)
}

// Transaction is everything the mounting layer needs to move from one
// committed revision to another. It must be applied in full or not at all.
type Transaction struct {
	Number         int64
	SurfaceId      string
	Mutations      []differ.Mutation
	Root           *shadownode.ShadowNode // the revision this transaction brings the mounted tree to
	CoalescedCount int                    // commits folded into this one besides Number itself
	Telemetry      TransactionTelemetry

	base *shadownode.ShadowNode // what Mutations were computed against
}

func (tx *Transaction) String() string {
	counts := tx.Telemetry.Counts
	return fmt.Sprintf("tx#%d[%s] create=%d delete=%d insert=%d remove=%d update=%d coalesced=%d",
		tx.Number, tx.SurfaceId, counts.Create, counts.Delete, counts.Insert, counts.Remove, counts.Update, tx.CoalescedCount)
}
