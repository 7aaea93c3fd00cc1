// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadownode

import (
	"errors"
	"fmt"
)

var ErrNodeNotFound = errors.New("node not found")

// Walk visits the subtree in pre-order. Returning false skips the node's children.
func Walk(root *ShadowNode, fn func(node *ShadowNode, parent *ShadowNode, index int) bool) {
	walk(root, nil, 0, fn)
}

func walk(node *ShadowNode, parent *ShadowNode, index int, fn func(*ShadowNode, *ShadowNode, int) bool) {
	if node == nil {
		return
	}
	if !fn(node, parent, index) {
		return
	}
	for idx, child := range node.children {
		walk(child, node, idx, fn)
	}
}

// FindPath returns the chain of nodes from root to the node with tag
// (inclusive on both ends) together with each node's index in its parent.
func FindPath(root *ShadowNode, tag int64) ([]*ShadowNode, []int) {
	if root == nil {
		return nil, nil
	}
	if root.tag == tag {
		return []*ShadowNode{root}, []int{0}
	}
	for idx, child := range root.children {
		nodes, indexes := FindPath(child, tag)
		if nodes != nil {
			return append([]*ShadowNode{root}, nodes...), append([]int{0}, replaceFirst(indexes, idx)...)
		}
	}
	return nil, nil
}

func replaceFirst(indexes []int, idx int) []int {
	indexes[0] = idx
	return indexes
}

func FindByTag(root *ShadowNode, tag int64) *ShadowNode {
	nodes, _ := FindPath(root, tag)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// CloneTree replaces the node with tag by fn(node) and clones every ancestor
// up to root so they point at the new child. Everything off that path is
// shared with the original tree, so the cost is proportional to the depth.
func CloneTree(root *ShadowNode, tag int64, fn func(node *ShadowNode) (*ShadowNode, error)) (*ShadowNode, error) {
	nodes, indexes := FindPath(root, tag)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("clone tree for tag=%d: %w", tag, ErrNodeNotFound)
	}
	replacement, err := fn(nodes[len(nodes)-1])
	if err != nil {
		return nil, err
	}
	if replacement == nil || replacement.tag != tag {
		return nil, fmt.Errorf("clone tree for tag=%d: callback must return a node with the same tag", tag)
	}
	for i := len(nodes) - 2; i >= 0; i-- {
		parent := nodes[i]
		childIdx := indexes[i+1]
		newChildren := make([]*ShadowNode, len(parent.children))
		copy(newChildren, parent.children)
		newChildren[childIdx] = replacement
		replacement, err = Clone(parent, Fragment{Children: newChildren})
		if err != nil {
			return nil, err
		}
	}
	return replacement, nil
}

func CountNodes(root *ShadowNode) int {
	count := 0
	Walk(root, func(*ShadowNode, *ShadowNode, int) bool {
		count++
		return true
	})
	return count
}
