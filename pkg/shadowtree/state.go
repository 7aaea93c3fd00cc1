// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadowtree

import (
	"fmt"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

// UpdateState commits new state data for the node with tag. The node and its
// ancestors are cloned, everything else is shared.
func (t *ShadowTree) UpdateState(tag int64, data any) (*CommitResult, error) {
	return t.updateState(tag, func(node *shadownode.ShadowNode) (any, error) {
		return data, nil
	})
}

// UpdateStateRaw decodes a platform payload with the tree's codec into the
// node's state type and commits it.
func (t *ShadowTree) UpdateStateRaw(tag int64, payload props.RawValue) (*CommitResult, error) {
	return t.updateState(tag, func(node *shadownode.ShadowNode) (any, error) {
		return t.codec.Decode(payload, node.State().Data())
	})
}

func (t *ShadowTree) updateState(tag int64, dataFn func(node *shadownode.ShadowNode) (any, error)) (*CommitResult, error) {
	transform := func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		return shadownode.CloneTree(oldRoot, tag, func(node *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
			if node.State() == nil {
				return nil, fmt.Errorf("%s has no state", node)
			}
			data, err := dataFn(node)
			if err != nil {
				return nil, fmt.Errorf("state update for %s: %w", node, err)
			}
			return shadownode.Clone(node, shadownode.Fragment{State: node.State().Next(data)})
		})
	}
	return t.CommitWithOptions(transform, CommitOptions{Source: CommitSource_State})
}

// EncodeState renders the state of the node with tag through the tree's codec.
func (t *ShadowTree) EncodeState(tag int64) (props.RawValue, error) {
	root, _ := t.Root()
	node := shadownode.FindByTag(root, tag)
	if node == nil {
		return props.Null(), fmt.Errorf("encode state for tag=%d: %w", tag, shadownode.ErrNodeNotFound)
	}
	return t.codec.Encode(node.State().Data())
}

// SetConstraints re-lays out the committed root under new root constraints.
func (t *ShadowTree) SetConstraints(constraints shadownode.LayoutConstraints) (*CommitResult, error) {
	root, _ := t.Root()
	if err := constraints.Validate(); err != nil {
		return nil, scerr.LayoutFailed(root.Tag(), err)
	}
	identity := func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		return oldRoot, nil
	}
	return t.commit(identity, CommitOptions{Source: CommitSource_Constraints}, &constraints)
}
