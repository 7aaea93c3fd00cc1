// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package mounting

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wavetermdev/shadowtree/pkg/differ"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"github.com/wavetermdev/shadowtree/pkg/statecodec"
)

// Mounter applies transactions to a mounted view hierarchy.
type Mounter interface {
	Apply(tx *Transaction) error
}

type StubView struct {
	Tag             int64
	ComponentName   string
	ComponentHandle int64
	Props           props.Props
	LayoutMetrics   shadownode.LayoutMetrics
	State           *shadownode.State
	ParentTag       int64 // -1 when detached
	Children        []*StubView
}

func (sv *StubView) assign(view differ.ShadowView) {
	sv.ComponentName = view.ComponentName
	sv.ComponentHandle = view.ComponentHandle
	sv.Props = view.Props
	sv.LayoutMetrics = view.LayoutMetrics
	sv.State = view.State
}

func (sv *StubView) indexOf(tag int64) int {
	for idx, child := range sv.Children {
		if child.Tag == tag {
			return idx
		}
	}
	return -1
}

// StubViewTree is an in-memory mounted view tree. It checks every mutation
// against its current shape, which makes it the reference consumer for
// replaying mutation lists.
type StubViewTree struct {
	lock       sync.Mutex
	views      map[int64]*StubView
	rootParent *StubView
	applied    int
	lastNumber int64
}

func NewStubViewTree() *StubViewTree {
	rootParent := &StubView{Tag: differ.RootParentTag, ComponentName: differ.RootParent.ComponentName, ParentTag: -1}
	return &StubViewTree{
		views:      map[int64]*StubView{differ.RootParentTag: rootParent},
		rootParent: rootParent,
		lastNumber: -1,
	}
}

func (st *StubViewTree) Apply(tx *Transaction) error {
	st.lock.Lock()
	defer st.lock.Unlock()
	if tx.Number <= st.lastNumber {
		return fmt.Errorf("transaction %d applied after %d", tx.Number, st.lastNumber)
	}
	if err := st.applyLocked(tx.Mutations); err != nil {
		return fmt.Errorf("transaction %d: %w", tx.Number, err)
	}
	st.lastNumber = tx.Number
	return nil
}

// ApplyMutations applies list in order and stops at the first invalid
// mutation. Mutations before the failing one stay applied.
func (st *StubViewTree) ApplyMutations(list []differ.Mutation) error {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.applyLocked(list)
}

func (st *StubViewTree) applyLocked(list []differ.Mutation) error {
	for pos, m := range list {
		if err := st.applyOne(m); err != nil {
			return fmt.Errorf("mutation %d %s: %w", pos, m, err)
		}
		st.applied++
	}
	return nil
}

func (st *StubViewTree) parentOf(m differ.Mutation) (*StubView, error) {
	parent, ok := st.views[m.ParentView.Tag]
	if !ok {
		return nil, fmt.Errorf("unknown parent tag=%d", m.ParentView.Tag)
	}
	return parent, nil
}

func (st *StubViewTree) applyOne(m differ.Mutation) error {
	switch m.Type {
	case differ.MutationType_Create:
		tag := m.NewChildView.Tag
		if _, exists := st.views[tag]; exists {
			return fmt.Errorf("view tag=%d already exists", tag)
		}
		view := &StubView{Tag: tag, ParentTag: -1}
		view.assign(m.NewChildView)
		st.views[tag] = view
	case differ.MutationType_Delete:
		tag := m.OldChildView.Tag
		view, ok := st.views[tag]
		if !ok {
			return fmt.Errorf("unknown view tag=%d", tag)
		}
		if view.ParentTag != -1 || len(view.Children) > 0 {
			return fmt.Errorf("view tag=%d is still mounted (parent=%d children=%d)", tag, view.ParentTag, len(view.Children))
		}
		delete(st.views, tag)
	case differ.MutationType_Insert:
		parent, err := st.parentOf(m)
		if err != nil {
			return err
		}
		view, ok := st.views[m.NewChildView.Tag]
		if !ok {
			return fmt.Errorf("unknown view tag=%d", m.NewChildView.Tag)
		}
		if view.ParentTag != -1 {
			return fmt.Errorf("view tag=%d already has parent %d", view.Tag, view.ParentTag)
		}
		if m.Index < 0 || m.Index > len(parent.Children) {
			return fmt.Errorf("insert index %d out of range (%d children)", m.Index, len(parent.Children))
		}
		view.assign(m.NewChildView)
		parent.Children = insertView(parent.Children, m.Index, view)
		view.ParentTag = parent.Tag
	case differ.MutationType_Remove:
		parent, err := st.parentOf(m)
		if err != nil {
			return err
		}
		if m.Index < 0 || m.Index >= len(parent.Children) {
			return fmt.Errorf("remove index %d out of range (%d children)", m.Index, len(parent.Children))
		}
		view := parent.Children[m.Index]
		if view.Tag != m.OldChildView.Tag {
			return fmt.Errorf("remove expected tag=%d at index %d, found tag=%d", m.OldChildView.Tag, m.Index, view.Tag)
		}
		parent.Children = append(parent.Children[:m.Index:m.Index], parent.Children[m.Index+1:]...)
		view.ParentTag = -1
	case differ.MutationType_Update:
		parent, err := st.parentOf(m)
		if err != nil {
			return err
		}
		cur := parent.indexOf(m.NewChildView.Tag)
		if cur == -1 {
			return fmt.Errorf("view tag=%d is not a child of tag=%d", m.NewChildView.Tag, parent.Tag)
		}
		view := parent.Children[cur]
		if view.ComponentHandle != m.NewChildView.ComponentHandle {
			return fmt.Errorf("update changes component of tag=%d from %s to %s", view.Tag, view.ComponentName, m.NewChildView.ComponentName)
		}
		view.assign(m.NewChildView)
		if m.Index != cur {
			rest := append(parent.Children[:cur:cur], parent.Children[cur+1:]...)
			if m.Index < 0 || m.Index > len(rest) {
				return fmt.Errorf("update index %d out of range (%d siblings)", m.Index, len(rest))
			}
			parent.Children = insertView(rest, m.Index, view)
		}
	default:
		return fmt.Errorf("invalid mutation type %d", int(m.Type))
	}
	return nil
}

func insertView(list []*StubView, idx int, view *StubView) []*StubView {
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = view
	return list
}

// Root returns the mounted root view, nil before anything is mounted.
func (st *StubViewTree) Root() *StubView {
	st.lock.Lock()
	defer st.lock.Unlock()
	if len(st.rootParent.Children) == 0 {
		return nil
	}
	return st.rootParent.Children[0]
}

// ViewCount is the number of live views, mounted or detached.
func (st *StubViewTree) ViewCount() int {
	st.lock.Lock()
	defer st.lock.Unlock()
	return len(st.views) - 1
}

func (st *StubViewTree) AppliedCount() int {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.applied
}

func (st *StubViewTree) View(tag int64) (*StubView, bool) {
	st.lock.Lock()
	defer st.lock.Unlock()
	view, ok := st.views[tag]
	return view, ok
}

// Verify checks that the mounted tree matches root exactly: same tags in the
// same order, same component types, equal props, layout and state.
func (st *StubViewTree) Verify(root *shadownode.ShadowNode) error {
	st.lock.Lock()
	defer st.lock.Unlock()
	if root == nil {
		if len(st.rootParent.Children) != 0 {
			return fmt.Errorf("expected nothing mounted, found %d root views", len(st.rootParent.Children))
		}
		return nil
	}
	if len(st.rootParent.Children) != 1 {
		return fmt.Errorf("expected one mounted root, found %d", len(st.rootParent.Children))
	}
	mounted := 0
	if err := verifyView(st.rootParent.Children[0], root, &mounted); err != nil {
		return err
	}
	if detached := len(st.views) - 1 - mounted; detached != 0 {
		return fmt.Errorf("%d views leaked (created or removed but never deleted)", detached)
	}
	return nil
}

func verifyView(view *StubView, node *shadownode.ShadowNode, count *int) error {
	*count++
	if view.Tag != node.Tag() {
		return fmt.Errorf("expected tag=%d, mounted tag=%d", node.Tag(), view.Tag)
	}
	if view.ComponentHandle != node.ComponentHandle() {
		return fmt.Errorf("tag=%d: expected component %s, mounted %s", view.Tag, node.ComponentName(), view.ComponentName)
	}
	if !props.Equal(view.Props, node.Props()) {
		return fmt.Errorf("tag=%d: props differ", view.Tag)
	}
	if view.LayoutMetrics != node.LayoutMetrics() {
		return fmt.Errorf("tag=%d: layout differs (mounted %v, expected %v)", view.Tag, view.LayoutMetrics.Frame, node.LayoutMetrics().Frame)
	}
	if !shadownode.StateEqual(view.State, node.State()) {
		return fmt.Errorf("tag=%d: state differs", view.Tag)
	}
	children := node.Children()
	if len(view.Children) != len(children) {
		return fmt.Errorf("tag=%d: expected %d children, mounted %d", view.Tag, len(children), len(view.Children))
	}
	for idx, child := range children {
		if err := verifyView(view.Children[idx], child, count); err != nil {
			return err
		}
	}
	return nil
}

// EncodeState renders a mounted view's state the way the platform sees it.
func (st *StubViewTree) EncodeState(codec statecodec.Codec, tag int64) (props.RawValue, error) {
	view, ok := st.View(tag)
	if !ok {
		return props.Null(), fmt.Errorf("no mounted view tag=%d", tag)
	}
	return codec.Encode(view.State.Data())
}

func (st *StubViewTree) Dump() string {
	st.lock.Lock()
	defer st.lock.Unlock()
	var sb strings.Builder
	for _, root := range st.rootParent.Children {
		dumpView(&sb, root, 0)
	}
	return sb.String()
}

func dumpView(sb *strings.Builder, view *StubView, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(fmt.Sprintf("%s#%d %s\n", view.ComponentName, view.Tag, view.LayoutMetrics.Frame))
	for _, child := range view.Children {
		dumpView(sb, child, depth+1)
	}
}
