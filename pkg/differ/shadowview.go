// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"fmt"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

// RootParentTag is the tag of the conceptual container the root view is
// inserted into. Real nodes never use it.
const RootParentTag int64 = 0

// ShadowView is the flat, topology-free projection of a shadow node that the
// mounting layer works with.
type ShadowView struct {
	Tag             int64                    `json:"tag"`
	ComponentName   string                   `json:"componentname"`
	ComponentHandle int64                    `json:"componenthandle"`
	Props           props.Props              `json:"props,omitempty"`
	LayoutMetrics   shadownode.LayoutMetrics `json:"layoutmetrics"`
	State           *shadownode.State        `json:"-"`
}

var RootParent = ShadowView{Tag: RootParentTag, ComponentName: "#rootparent"}

func ViewFromNode(node *shadownode.ShadowNode) ShadowView {
	if node == nil {
		return ShadowView{}
	}
	return ShadowView{
		Tag:             node.Tag(),
		ComponentName:   node.ComponentName(),
		ComponentHandle: node.ComponentHandle(),
		Props:           node.Props(),
		LayoutMetrics:   node.LayoutMetrics(),
		State:           node.State(),
	}
}

// ViewEqual reports whether mounting would see any difference between a and b.
// Unlike shadownode.ContentEqual this includes layout metrics: a moved or
// resized view needs an Update even when its props did not change.
func ViewEqual(a, b ShadowView) bool {
	return a.Tag == b.Tag &&
		a.ComponentHandle == b.ComponentHandle &&
		a.LayoutMetrics == b.LayoutMetrics &&
		props.Equal(a.Props, b.Props) &&
		shadownode.StateEqual(a.State, b.State)
}

func (v ShadowView) String() string {
	if v.Tag == RootParentTag {
		return v.ComponentName
	}
	return fmt.Sprintf("%s#%d", v.ComponentName, v.Tag)
}
