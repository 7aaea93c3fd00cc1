// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadowtree

import (
	"errors"

	"github.com/wavetermdev/shadowtree/pkg/scerr"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

// LayoutEngine computes layout for one node at a time. The tree walks the
// candidate and asks the engine for each child's constraints before
// measuring the parent, so Measure always sees laid out children.
type LayoutEngine interface {
	Measure(node *shadownode.ShadowNode, constraints shadownode.LayoutConstraints) (shadownode.LayoutMetrics, error)
	ChildConstraints(parent *shadownode.ShadowNode, constraints shadownode.LayoutConstraints, idx int, laidOut []shadownode.LayoutMetrics) shadownode.LayoutConstraints
}

// checkUniqueTags fails when two nodes of the tree share a tag. Tags are the
// only identity the differ and the mounting layer have.
func checkUniqueTags(root *shadownode.ShadowNode) error {
	seen := make(map[int64]bool)
	var dupErr error
	shadownode.Walk(root, func(node *shadownode.ShadowNode, parent *shadownode.ShadowNode, index int) bool {
		if dupErr != nil {
			return false
		}
		if seen[node.Tag()] {
			var parentTag int64
			if parent != nil {
				parentTag = parent.Tag()
			}
			dupErr = scerr.DuplicateTag(node.Tag(), parentTag)
			return false
		}
		seen[node.Tag()] = true
		return true
	})
	return dupErr
}

type layoutPass struct {
	engine   LayoutEngine
	measured int
	cloned   int
}

// layoutNode returns node laid out under constraints. Sealed nodes that were
// already laid out under the same constraints are returned as-is; other
// sealed nodes are cloned first, so sealed input is never written.
func (lp *layoutPass) layoutNode(node *shadownode.ShadowNode, constraints shadownode.LayoutConstraints) (*shadownode.ShadowNode, error) {
	if node.IsSealed() && node.HasLayout() && node.LayoutConstraints() == constraints {
		return node, nil
	}
	target := node
	if node.IsSealed() {
		clone, err := shadownode.Clone(node, shadownode.Fragment{})
		if err != nil {
			return nil, err
		}
		target = clone
		lp.cloned++
	}
	children := target.Children()
	laidOut := make([]shadownode.LayoutMetrics, 0, len(children))
	for idx, child := range children {
		childConstraints := lp.engine.ChildConstraints(target, constraints, idx, laidOut)
		newChild, err := lp.layoutNode(child, childConstraints)
		if err != nil {
			return nil, err
		}
		if newChild != child {
			if err := target.ReplaceChildAt(idx, newChild); err != nil {
				return nil, err
			}
		}
		laidOut = append(laidOut, newChild.LayoutMetrics())
	}
	metrics, err := lp.engine.Measure(target, constraints)
	if err != nil {
		var le *scerr.LayoutError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, scerr.LayoutFailed(target.Tag(), err)
	}
	if err := target.SetLayout(metrics, constraints); err != nil {
		return nil, err
	}
	lp.measured++
	return target, nil
}
