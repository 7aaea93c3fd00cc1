// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package shadowtree owns the committed root of one surface. Commits are
// serialized: transform, commit hooks, layout, seal, then an atomic swap.
package shadowtree

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/outrigdev/goid"
	"github.com/wavetermdev/shadowtree/pkg/panichandler"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"github.com/wavetermdev/shadowtree/pkg/statecodec"
	"github.com/wavetermdev/shadowtree/pkg/util/logutil"
)

const (
	CommitSource_Unknown     = "unknown"
	CommitSource_App         = "app"
	CommitSource_State       = "state"
	CommitSource_Constraints = "constraints"
)

// Transform builds the candidate root from the committed one. It may return
// oldRoot itself to signal "no change".
type Transform func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error)

// CommitHook can inspect or replace the candidate before layout.
type CommitHook func(tree *ShadowTree, oldRoot *shadownode.ShadowNode, candidate *shadownode.ShadowNode) (*shadownode.ShadowNode, error)

// Delegate is told about every successful commit, on the committing
// goroutine and in commit order.
type Delegate interface {
	ShadowTreeDidCommit(tree *ShadowTree, result *CommitResult)
	ShadowTreeDidInvalidate(tree *ShadowTree)
}

type Options struct {
	SurfaceId   string // generated if empty
	Engine      LayoutEngine
	Constraints shadownode.LayoutConstraints
	Codec       statecodec.Codec // defaults to JSONCodec
}

type CommitOptions struct {
	Source string
}

type CommitTelemetry struct {
	Source      string    `json:"source"`
	CommitStart time.Time `json:"commitstart"`
	CommitEnd   time.Time `json:"commitend"`
	LayoutStart time.Time `json:"layoutstart"`
	LayoutEnd   time.Time `json:"layoutend"`
	Measured    int       `json:"measured"`
	Cloned      int       `json:"cloned"`
}

func (ct CommitTelemetry) CommitDuration() time.Duration {
	return ct.CommitEnd.Sub(ct.CommitStart)
}

func (ct CommitTelemetry) LayoutDuration() time.Duration {
	return ct.LayoutEnd.Sub(ct.LayoutStart)
}

type CommitResult struct {
	Number    int64
	SurfaceId string
	OldRoot   *shadownode.ShadowNode
	NewRoot   *shadownode.ShadowNode
	Unchanged bool // the transform produced the committed root again; no revision was created
	Telemetry CommitTelemetry
}

type commitHookEntry struct {
	name string
	hook CommitHook
}

type ShadowTree struct {
	surfaceId string
	engine    LayoutEngine
	codec     statecodec.Codec

	commitLock  sync.Mutex // held for the whole commit, gives the total commit order
	committerId atomic.Uint64

	lock        sync.Mutex // guards the fields below
	root        *shadownode.ShadowNode
	constraints shadownode.LayoutConstraints
	number      int64
	invalidated bool
	delegate    Delegate
	hooks       []commitHookEntry
}

// New lays out and seals root, which becomes revision 0 of the tree.
func New(root *shadownode.ShadowNode, opts Options) (*ShadowTree, error) {
	if root == nil {
		return nil, fmt.Errorf("shadow tree needs a root node")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("shadow tree needs a layout engine")
	}
	if err := opts.Constraints.Validate(); err != nil {
		return nil, scerr.LayoutFailed(root.Tag(), err)
	}
	if opts.SurfaceId == "" {
		opts.SurfaceId = uuid.NewString()
	}
	if opts.Codec == nil {
		opts.Codec = statecodec.JSONCodec{}
	}
	if err := checkUniqueTags(root); err != nil {
		return nil, err
	}
	lp := &layoutPass{engine: opts.Engine}
	laidOut, err := lp.layoutNode(root, opts.Constraints)
	if err != nil {
		return nil, err
	}
	laidOut.Seal()
	return &ShadowTree{
		surfaceId:   opts.SurfaceId,
		engine:      opts.Engine,
		codec:       opts.Codec,
		root:        laidOut,
		constraints: opts.Constraints,
	}, nil
}

func (t *ShadowTree) SurfaceId() string {
	return t.surfaceId
}

func (t *ShadowTree) Codec() statecodec.Codec {
	return t.codec
}

// Root returns the committed root and its revision number.
func (t *ShadowTree) Root() (*shadownode.ShadowNode, int64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.root, t.number
}

func (t *ShadowTree) Constraints() shadownode.LayoutConstraints {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.constraints
}

func (t *ShadowTree) IsInvalidated() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.invalidated
}

func (t *ShadowTree) SetDelegate(d Delegate) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.delegate = d
}

// AttachDelegate sets d and returns the committed root, its number and the
// invalidated flag, all read together: every commit published after that
// root is reported to d.
func (t *ShadowTree) AttachDelegate(d Delegate) (*shadownode.ShadowNode, int64, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.delegate = d
	return t.root, t.number, t.invalidated
}

// AddCommitHook registers hook under name, replacing a hook with the same name.
func (t *ShadowTree) AddCommitHook(name string, hook CommitHook) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for idx, entry := range t.hooks {
		if entry.name == name {
			t.hooks[idx].hook = hook
			return
		}
	}
	t.hooks = append(t.hooks, commitHookEntry{name: name, hook: hook})
}

func (t *ShadowTree) RemoveCommitHook(name string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for idx, entry := range t.hooks {
		if entry.name == name {
			t.hooks = append(t.hooks[:idx:idx], t.hooks[idx+1:]...)
			return
		}
	}
}

// Invalidate makes every later commit fail. A commit already running when
// Invalidate is called fails before publishing.
func (t *ShadowTree) Invalidate() {
	t.lock.Lock()
	if t.invalidated {
		t.lock.Unlock()
		return
	}
	t.invalidated = true
	delegate := t.delegate
	t.lock.Unlock()
	if delegate != nil {
		func() {
			defer func() {
				panichandler.PanicHandler("shadowtree:didinvalidate", recover())
			}()
			delegate.ShadowTreeDidInvalidate(t)
		}()
	}
}

func (t *ShadowTree) Commit(transform Transform) (*CommitResult, error) {
	return t.CommitWithOptions(transform, CommitOptions{})
}

func (t *ShadowTree) CommitWithOptions(transform Transform, opts CommitOptions) (*CommitResult, error) {
	return t.commit(transform, opts, nil)
}

func (t *ShadowTree) commit(transform Transform, opts CommitOptions, newConstraints *shadownode.LayoutConstraints) (*CommitResult, error) {
	if transform == nil {
		return nil, fmt.Errorf("commit on surface %s: nil transform", t.surfaceId)
	}
	gid := goid.Get()
	if t.committerId.Load() == gid {
		return nil, scerr.Errorf(scerr.Code_Reentrant, "commit on surface %s called from inside a running commit", t.surfaceId)
	}
	t.commitLock.Lock()
	defer t.commitLock.Unlock()
	t.committerId.Store(gid)
	defer t.committerId.Store(0)

	if opts.Source == "" {
		opts.Source = CommitSource_Unknown
	}
	telemetry := CommitTelemetry{Source: opts.Source, CommitStart: time.Now()}

	t.lock.Lock()
	if t.invalidated {
		t.lock.Unlock()
		return nil, scerr.TreeInvalidated(t.surfaceId)
	}
	oldRoot := t.root
	constraints := t.constraints
	hooks := append([]commitHookEntry(nil), t.hooks...)
	t.lock.Unlock()
	if newConstraints != nil {
		constraints = *newConstraints
	}

	candidate, err := runTransform(transform, oldRoot)
	if err != nil {
		return nil, err
	}
	for _, entry := range hooks {
		candidate, err = runHook(t, entry, oldRoot, candidate)
		if err != nil {
			return nil, err
		}
	}
	if candidate == oldRoot && newConstraints == nil {
		telemetry.CommitEnd = time.Now()
		return &CommitResult{Number: t.currentNumber(), SurfaceId: t.surfaceId, OldRoot: oldRoot, NewRoot: oldRoot, Unchanged: true, Telemetry: telemetry}, nil
	}

	if candidate != oldRoot {
		if err := checkUniqueTags(candidate); err != nil {
			return nil, err
		}
	}

	telemetry.LayoutStart = time.Now()
	lp := &layoutPass{engine: t.engine}
	newRoot, err := lp.layoutNode(candidate, constraints)
	telemetry.LayoutEnd = time.Now()
	if err != nil {
		log.Printf("[shadowtree] surface %s: layout failed: %v\n", t.surfaceId, err)
		return nil, err
	}
	telemetry.Measured = lp.measured
	telemetry.Cloned = lp.cloned
	if newRoot == oldRoot {
		telemetry.CommitEnd = time.Now()
		return &CommitResult{Number: t.currentNumber(), SurfaceId: t.surfaceId, OldRoot: oldRoot, NewRoot: oldRoot, Unchanged: true, Telemetry: telemetry}, nil
	}
	newRoot.Seal()

	t.lock.Lock()
	if t.invalidated {
		t.lock.Unlock()
		return nil, scerr.TreeInvalidated(t.surfaceId)
	}
	t.root = newRoot
	t.constraints = constraints
	t.number++
	number := t.number
	delegate := t.delegate
	t.lock.Unlock()

	telemetry.CommitEnd = time.Now()
	result := &CommitResult{
		Number:    number,
		SurfaceId: t.surfaceId,
		OldRoot:   oldRoot,
		NewRoot:   newRoot,
		Telemetry: telemetry,
	}
	logutil.DevPrintf("[shadowtree] surface %s: commit %d (%s) measured=%d in %v\n", t.surfaceId, number, opts.Source, lp.measured, telemetry.CommitDuration())
	if delegate != nil {
		notifyCommit(delegate, t, result)
	}
	return result, nil
}

func (t *ShadowTree) currentNumber() int64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.number
}

func runTransform(transform Transform, oldRoot *shadownode.ShadowNode) (rtn *shadownode.ShadowNode, rtnErr error) {
	defer func() {
		panicErr := panichandler.PanicHandler("shadowtree:transform", recover())
		if panicErr != nil {
			rtn = nil
			rtnErr = scerr.MakeCodedError(scerr.Code_Transform, panicErr)
		}
	}()
	candidate, err := transform(oldRoot)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, scerr.Errorf(scerr.Code_Transform, "transform returned no root")
	}
	return candidate, nil
}

func runHook(t *ShadowTree, entry commitHookEntry, oldRoot *shadownode.ShadowNode, candidate *shadownode.ShadowNode) (rtn *shadownode.ShadowNode, rtnErr error) {
	defer func() {
		panicErr := panichandler.PanicHandler("shadowtree:commithook:"+entry.name, recover())
		if panicErr != nil {
			rtn = nil
			rtnErr = scerr.MakeCodedError(scerr.Code_Transform, panicErr)
		}
	}()
	next, err := entry.hook(t, oldRoot, candidate)
	if err != nil {
		return nil, fmt.Errorf("commit hook %q: %w", entry.name, err)
	}
	if next == nil {
		return candidate, nil
	}
	return next, nil
}

func notifyCommit(delegate Delegate, t *ShadowTree, result *CommitResult) {
	defer func() {
		panichandler.PanicHandler("shadowtree:didcommit", recover())
	}()
	delegate.ShadowTreeDidCommit(t, result)
}
