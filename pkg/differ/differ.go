// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package differ computes the ordered mutation list that turns the mounted
// view tree for one shadow tree revision into the next.
package differ

import (
	"sort"

	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

type differ struct {
	mutations []Mutation
	moved     map[int64]*shadownode.ShadowNode // old node of every view that changes parent
	detached  map[int64]bool                   // views taken out of their old parent before the main pass
}

// Diff returns the mutations that transform the mounted tree for oldRoot into
// the one for newRoot. A nil oldRoot mounts newRoot under RootParent and a nil
// newRoot unmounts oldRoot. Subtrees shared by pointer are skipped.
func Diff(oldRoot *shadownode.ShadowNode, newRoot *shadownode.ShadowNode) []Mutation {
	d := &differ{}
	switch {
	case oldRoot == nil && newRoot == nil:
		return nil
	case oldRoot == nil:
		d.mountSubtree(RootParent, newRoot, 0)
	case newRoot == nil:
		d.unmountSubtree(RootParent, oldRoot, 0)
	case oldRoot == newRoot:
		return nil
	case !sameKind(oldRoot, newRoot):
		d.detachReparented(oldRoot, newRoot)
		d.unmountSubtree(RootParent, oldRoot, 0)
		d.mountSubtree(RootParent, newRoot, 0)
	default:
		d.detachReparented(oldRoot, newRoot)
		oldView := ViewFromNode(oldRoot)
		newView := ViewFromNode(newRoot)
		if !ViewEqual(oldView, newView) {
			d.emit(UpdateMutation(RootParent, oldView, newView, 0))
		}
		d.diffChildren(newView, oldRoot.Children(), newRoot.Children())
	}
	return d.mutations
}

// sameKind reports whether old can be updated into new. A tag that changed
// component type is replaced instead.
func sameKind(oldNode *shadownode.ShadowNode, newNode *shadownode.ShadowNode) bool {
	return oldNode.Tag() == newNode.Tag() && oldNode.ComponentHandle() == newNode.ComponentHandle()
}

func (d *differ) emit(m Mutation) {
	d.mutations = append(d.mutations, m)
}

func (d *differ) mountSubtree(parent ShadowView, node *shadownode.ShadowNode, index int) {
	if oldNode, ok := d.moved[node.Tag()]; ok {
		d.remount(parent, oldNode, node, index)
		return
	}
	view := ViewFromNode(node)
	d.emit(CreateMutation(view))
	for idx, child := range node.Children() {
		d.mountSubtree(view, child, idx)
	}
	d.emit(InsertMutation(parent, view, index))
}

// remount attaches a view that left its old parent, bringing its children up
// to date first the way a freshly created view is built before insertion.
func (d *differ) remount(parent ShadowView, oldNode *shadownode.ShadowNode, newNode *shadownode.ShadowNode, index int) {
	oldView := ViewFromNode(oldNode)
	newView := ViewFromNode(newNode)
	if oldNode != newNode {
		d.diffChildren(newView, oldNode.Children(), newNode.Children())
	}
	d.emit(InsertMutation(parent, newView, index))
	if !ViewEqual(oldView, newView) {
		d.emit(UpdateMutation(parent, oldView, newView, index))
	}
}

func (d *differ) unmountSubtree(parent ShadowView, node *shadownode.ShadowNode, index int) {
	if d.detached[node.Tag()] {
		return
	}
	d.emit(RemoveMutation(parent, ViewFromNode(node), index))
	d.removeDescendants(node)
	d.deleteSubtree(node)
}

// removeDescendants detaches every descendant of node from its own parent,
// last child first so indexes stay valid.
func (d *differ) removeDescendants(node *shadownode.ShadowNode) {
	children := d.attached(node.Children())
	if len(children) == 0 {
		return
	}
	view := ViewFromNode(node)
	for idx := len(children) - 1; idx >= 0; idx-- {
		d.emit(RemoveMutation(view, ViewFromNode(children[idx]), idx))
		d.removeDescendants(children[idx])
	}
}

// deleteSubtree emits Delete for node and all its descendants, children first.
func (d *differ) deleteSubtree(node *shadownode.ShadowNode) {
	for _, child := range node.Children() {
		if !d.detached[child.Tag()] {
			d.deleteSubtree(child)
		}
	}
	d.emit(DeleteMutation(ViewFromNode(node)))
}

func (d *differ) diffChildren(parent ShadowView, oldChildren []*shadownode.ShadowNode, newChildren []*shadownode.ShadowNode) {
	if len(oldChildren) == 0 && len(newChildren) == 0 {
		return
	}
	oldChildren = d.attached(oldChildren)
	oldByTag := make(map[int64]*shadownode.ShadowNode, len(oldChildren))
	for _, child := range oldChildren {
		oldByTag[child.Tag()] = child
	}
	kept := make(map[int64]bool, len(newChildren))
	for _, child := range newChildren {
		if oldChild, ok := oldByTag[child.Tag()]; ok && sameKind(oldChild, child) {
			kept[child.Tag()] = true
		}
	}

	// removals, then deletes for everything removed from this list
	var removed []*shadownode.ShadowNode
	for idx := len(oldChildren) - 1; idx >= 0; idx-- {
		child := oldChildren[idx]
		if kept[child.Tag()] {
			continue
		}
		d.emit(RemoveMutation(parent, ViewFromNode(child), idx))
		d.removeDescendants(child)
		removed = append(removed, child)
	}
	for idx := len(removed) - 1; idx >= 0; idx-- {
		d.deleteSubtree(removed[idx])
	}

	// mounted mirrors the parent's mounted child list as mutations are emitted
	mounted := make([]int64, 0, len(newChildren))
	for _, child := range oldChildren {
		if kept[child.Tag()] {
			mounted = append(mounted, child.Tag())
		}
	}
	stay := stableTags(mounted, newChildren, kept)

	for idx, newChild := range newChildren {
		tag := newChild.Tag()
		if !kept[tag] {
			target := positionAfter(mounted, newChildren, idx)
			d.mountSubtree(parent, newChild, target)
			mounted = insertAt(mounted, target, tag)
			continue
		}
		oldChild := oldByTag[tag]
		cur := indexOf(mounted, tag)
		target := cur
		if !stay[tag] {
			without := removeAt(mounted, cur)
			target = positionAfter(without, newChildren, idx)
			if target != cur {
				mounted = insertAt(without, target, tag)
			}
		}
		if oldChild == newChild && target == cur {
			continue
		}
		oldView := ViewFromNode(oldChild)
		newView := ViewFromNode(newChild)
		if target != cur || !ViewEqual(oldView, newView) {
			d.emit(UpdateMutation(parent, oldView, newView, target))
		}
		if oldChild != newChild {
			d.diffChildren(newView, oldChild.Children(), newChild.Children())
		}
	}
}

// attached drops the children that were already taken out of their parent.
func (d *differ) attached(children []*shadownode.ShadowNode) []*shadownode.ShadowNode {
	if len(d.detached) == 0 {
		return children
	}
	rtn := make([]*shadownode.ShadowNode, 0, len(children))
	for _, child := range children {
		if !d.detached[child.Tag()] {
			rtn = append(rtn, child)
		}
	}
	return rtn
}

// placement is where a node sits in one of the two trees. A nil parent
// means the node is the root.
type placement struct {
	parent *shadownode.ShadowNode
	index  int
	node   *shadownode.ShadowNode
}

func (p placement) parentTag() int64 {
	if p.parent == nil {
		return RootParentTag
	}
	return p.parent.Tag()
}

func (p placement) parentView() ShadowView {
	if p.parent == nil {
		return RootParent
	}
	return ViewFromNode(p.parent)
}

// moveScan records every node that leaves or joins a sibling list, walking
// the same pairs of subtrees the main pass will walk.
type moveScan struct {
	left     map[int64]placement
	joined   map[int64]placement
	leftTags []int64 // visit order of left, for deterministic output
}

func (sc *moveScan) scanChildren(oldNode *shadownode.ShadowNode, newNode *shadownode.ShadowNode) {
	newChildren := newNode.Children()
	newByTag := make(map[int64]*shadownode.ShadowNode, len(newChildren))
	for _, child := range newChildren {
		newByTag[child.Tag()] = child
	}
	kept := make(map[int64]bool)
	for idx, oldChild := range oldNode.Children() {
		if newChild, ok := newByTag[oldChild.Tag()]; ok && sameKind(oldChild, newChild) {
			kept[oldChild.Tag()] = true
			if oldChild != newChild {
				sc.scanChildren(oldChild, newChild)
			}
			continue
		}
		sc.recordLeft(oldNode, idx, oldChild)
	}
	for idx, newChild := range newChildren {
		if !kept[newChild.Tag()] {
			sc.recordJoined(newNode, idx, newChild)
		}
	}
}

func (sc *moveScan) recordLeft(parent *shadownode.ShadowNode, index int, node *shadownode.ShadowNode) {
	sc.left[node.Tag()] = placement{parent: parent, index: index, node: node}
	sc.leftTags = append(sc.leftTags, node.Tag())
	for idx, child := range node.Children() {
		sc.recordLeft(node, idx, child)
	}
}

func (sc *moveScan) recordJoined(parent *shadownode.ShadowNode, index int, node *shadownode.ShadowNode) {
	sc.joined[node.Tag()] = placement{parent: parent, index: index, node: node}
	for idx, child := range node.Children() {
		sc.recordJoined(node, idx, child)
	}
}

// detachReparented removes every view whose parent differs between the two
// trees from its old parent before anything else is emitted. Views that keep
// their component are inserted again by the main pass (remount); views that
// also change component are deleted here and created again later.
func (d *differ) detachReparented(oldRoot *shadownode.ShadowNode, newRoot *shadownode.ShadowNode) {
	sc := &moveScan{left: make(map[int64]placement), joined: make(map[int64]placement)}
	if sameKind(oldRoot, newRoot) {
		sc.scanChildren(oldRoot, newRoot)
	} else {
		sc.recordLeft(nil, 0, oldRoot)
		sc.recordJoined(nil, 0, newRoot)
	}
	var leaving []placement
	for _, tag := range sc.leftTags {
		oldPlace := sc.left[tag]
		newPlace, ok := sc.joined[tag]
		if !ok || oldPlace.parentTag() == newPlace.parentTag() {
			continue
		}
		leaving = append(leaving, oldPlace)
	}
	if len(leaving) == 0 {
		return
	}
	d.moved = make(map[int64]*shadownode.ShadowNode)
	d.detached = make(map[int64]bool, len(leaving))
	for _, place := range leaving {
		tag := place.node.Tag()
		d.detached[tag] = true
		if sameKind(place.node, sc.joined[tag].node) {
			d.moved[tag] = place.node
		}
	}
	// per parent, highest index first so the remaining indexes stay valid
	sort.SliceStable(leaving, func(i, j int) bool {
		if leaving[i].parentTag() != leaving[j].parentTag() {
			return leaving[i].parentTag() < leaving[j].parentTag()
		}
		return leaving[i].index > leaving[j].index
	})
	for _, place := range leaving {
		d.emit(RemoveMutation(place.parentView(), ViewFromNode(place.node), place.index))
	}
	for _, place := range leaving {
		if _, ok := d.moved[place.node.Tag()]; !ok {
			d.removeDescendants(place.node)
			d.deleteSubtree(place.node)
		}
	}
}

// positionAfter is the index right after newChildren[idx-1] in mounted.
func positionAfter(mounted []int64, newChildren []*shadownode.ShadowNode, idx int) int {
	if idx == 0 {
		return 0
	}
	return indexOf(mounted, newChildren[idx-1].Tag()) + 1
}

// stableTags picks the kept children that do not need to move: the longest
// run of them whose mounted order already matches the new order.
func stableTags(mounted []int64, newChildren []*shadownode.ShadowNode, kept map[int64]bool) map[int64]bool {
	oldPos := make(map[int64]int, len(mounted))
	for idx, tag := range mounted {
		oldPos[tag] = idx
	}
	var tags []int64
	var seq []int
	for _, child := range newChildren {
		if kept[child.Tag()] {
			tags = append(tags, child.Tag())
			seq = append(seq, oldPos[child.Tag()])
		}
	}
	rtn := make(map[int64]bool, len(tags))
	for _, idx := range longestIncreasing(seq) {
		rtn[tags[idx]] = true
	}
	return rtn
}

// longestIncreasing returns the indexes (into seq) of one longest strictly
// increasing subsequence.
func longestIncreasing(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}
	tails := make([]int, 0, len(seq)) // tails[k] = index in seq of the smallest tail of a run of length k+1
	prev := make([]int, len(seq))
	for idx, val := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < val {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[idx] = tails[lo-1]
		} else {
			prev[idx] = -1
		}
		if lo == len(tails) {
			tails = append(tails, idx)
		} else {
			tails[lo] = idx
		}
	}
	rtn := make([]int, len(tails))
	for k, idx := len(tails)-1, tails[len(tails)-1]; k >= 0; k, idx = k-1, prev[idx] {
		rtn[k] = idx
	}
	return rtn
}

func indexOf(list []int64, tag int64) int {
	for idx, t := range list {
		if t == tag {
			return idx
		}
	}
	return -1
}

func insertAt(list []int64, idx int, tag int64) []int64 {
	list = append(list, 0)
	copy(list[idx+1:], list[idx:])
	list[idx] = tag
	return list
}

func removeAt(list []int64, idx int) []int64 {
	return append(list[:idx:idx], list[idx+1:]...)
}
