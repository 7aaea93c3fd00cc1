// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package shadownode implements the immutable, persistently shared nodes of
// the shadow tree. A node can be edited only until it is sealed; after that
// the only way to change it is to Clone it, which shares every untouched part
// (props, children, state) with the source by reference.
package shadownode

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
)

// ComponentDescriptor is the per-component-type logic a node is built with.
// Implementations live in pkg/components and are looked up through
// pkg/componentregistry.
type ComponentDescriptor interface {
	Name() string
	Handle() int64
	DefaultProps() props.Props
	// ParseProps builds fresh typed props from raw input, validating them.
	ParseProps(raw props.RawProps) (props.Props, error)
	// CloneProps derives new typed props from source plus raw overrides.
	CloneProps(source props.Props, raw props.RawProps) (props.Props, error)
	// CheckProps rejects props of the wrong concrete type for this component.
	CheckProps(p props.Props) error
}

// Measurer is implemented by descriptors whose nodes have intrinsic content
// size (text, images).
type Measurer interface {
	MeasureContent(node *ShadowNode, constraints LayoutConstraints) (Size, error)
}

// StateInitializer is implemented by descriptors whose nodes carry state.
type StateInitializer interface {
	InitialState(p props.Props) any
}

type TagAllocator struct {
	last atomic.Int64
}

// NewTagAllocator hands out tags starting at first.
func NewTagAllocator(first int64) *TagAllocator {
	ta := &TagAllocator{}
	ta.last.Store(first - 1)
	return ta
}

func (ta *TagAllocator) Next() int64 {
	return ta.last.Add(1)
}

// Reserve makes sure tag is never allocated (used when callers pick explicit tags).
func (ta *TagAllocator) Reserve(tag int64) {
	for {
		cur := ta.last.Load()
		if cur >= tag || ta.last.CompareAndSwap(cur, tag) {
			return
		}
	}
}

type ShadowNode struct {
	tag           int64
	descriptor    ComponentDescriptor
	props         props.Props
	children      []*ShadowNode
	childrenOwned bool // children slice was allocated for this node and may be written while unsealed
	state         *State

	layoutMetrics     LayoutMetrics
	layoutConstraints LayoutConstraints
	hasLayout         bool

	sealed atomic.Bool
}

// Fragment lists the parts of a node that a Clone replaces. Nil fields are
// shared with the source. Use an empty non-nil slice to clear children.
type Fragment struct {
	Props    props.Props
	Children []*ShadowNode
	State    *State
}

func Create(desc ComponentDescriptor, tag int64, p props.Props, children []*ShadowNode) (*ShadowNode, error) {
	if desc == nil {
		return nil, fmt.Errorf("cannot create node tag=%d without a component descriptor", tag)
	}
	if p == nil {
		p = desc.DefaultProps()
	}
	if err := desc.CheckProps(p); err != nil {
		return nil, err
	}
	for idx, child := range children {
		if child == nil {
			return nil, fmt.Errorf("creating %s tag=%d: child %d is nil", desc.Name(), tag, idx)
		}
	}
	node := &ShadowNode{
		tag:           tag,
		descriptor:    desc,
		props:         p,
		children:      append([]*ShadowNode(nil), children...),
		childrenOwned: true,
	}
	if si, ok := desc.(StateInitializer); ok {
		node.state = NewState(si.InitialState(p))
	}
	return node, nil
}

// Clone produces a new unsealed node with the same tag as source. If the
// fragment carries props that are not newer than the source's, a copy with
// the source revision + 1 is used so revisions keep increasing per clone.
func Clone(source *ShadowNode, frag Fragment) (*ShadowNode, error) {
	if source == nil {
		return nil, fmt.Errorf("cannot clone nil node")
	}
	node := &ShadowNode{
		tag:               source.tag,
		descriptor:        source.descriptor,
		props:             source.props,
		children:          source.children,
		state:             source.state,
		layoutMetrics:     source.layoutMetrics,
		layoutConstraints: source.layoutConstraints,
		hasLayout:         source.hasLayout,
	}
	if frag.Props != nil && frag.Props != source.props {
		if err := source.descriptor.CheckProps(frag.Props); err != nil {
			return nil, err
		}
		newProps := frag.Props
		srcRev := props.Revision(source.props)
		if props.Revision(newProps) <= srcRev {
			var err error
			newProps, err = props.WithRevision(newProps, srcRev+1)
			if err != nil {
				return nil, scerr.InvalidProps(source.ComponentName(), "", err)
			}
		}
		node.props = newProps
	}
	if frag.Children != nil {
		for idx, child := range frag.Children {
			if child == nil {
				return nil, fmt.Errorf("cloning tag=%d: child %d is nil", source.tag, idx)
			}
		}
		node.children = append(make([]*ShadowNode, 0, len(frag.Children)), frag.Children...)
		node.childrenOwned = true
	}
	if frag.State != nil {
		node.state = frag.State
	}
	return node, nil
}

func (n *ShadowNode) Tag() int64 {
	return n.tag
}

func (n *ShadowNode) ComponentName() string {
	return n.descriptor.Name()
}

func (n *ShadowNode) ComponentHandle() int64 {
	return n.descriptor.Handle()
}

func (n *ShadowNode) Descriptor() ComponentDescriptor {
	return n.descriptor
}

func (n *ShadowNode) Props() props.Props {
	return n.props
}

// Children returns the node's child list. It is shared between clones and
// must not be modified.
func (n *ShadowNode) Children() []*ShadowNode {
	return n.children
}

func (n *ShadowNode) State() *State {
	return n.state
}

func (n *ShadowNode) LayoutMetrics() LayoutMetrics {
	return n.layoutMetrics
}

func (n *ShadowNode) LayoutConstraints() LayoutConstraints {
	return n.layoutConstraints
}

// HasLayout reports whether layout has ever been computed for this node.
func (n *ShadowNode) HasLayout() bool {
	return n.hasLayout
}

func (n *ShadowNode) IsSealed() bool {
	return n.sealed.Load()
}

// Seal makes n and every not yet sealed descendant immutable.
func (n *ShadowNode) Seal() {
	if n.sealed.Load() {
		return
	}
	for _, child := range n.children {
		child.Seal()
	}
	n.sealed.Store(true)
}

func (n *ShadowNode) ensureMutable(op string) error {
	if n.sealed.Load() {
		return scerr.IllegalMutation(n.tag, op)
	}
	return nil
}

func (n *ShadowNode) ownChildren() {
	if n.childrenOwned {
		return
	}
	n.children = append(make([]*ShadowNode, 0, len(n.children)+1), n.children...)
	n.childrenOwned = true
}

func (n *ShadowNode) AppendChild(child *ShadowNode) error {
	if err := n.ensureMutable("appendChild"); err != nil {
		return err
	}
	if child == nil {
		return fmt.Errorf("appendChild on tag=%d: nil child", n.tag)
	}
	n.ownChildren()
	n.children = append(n.children, child)
	return nil
}

func (n *ShadowNode) ReplaceChildAt(idx int, child *ShadowNode) error {
	if err := n.ensureMutable("replaceChild"); err != nil {
		return err
	}
	if idx < 0 || idx >= len(n.children) {
		return fmt.Errorf("replaceChild on tag=%d: index %d out of range (%d children)", n.tag, idx, len(n.children))
	}
	if child == nil {
		return fmt.Errorf("replaceChild on tag=%d: nil child", n.tag)
	}
	n.ownChildren()
	n.children[idx] = child
	return nil
}

func (n *ShadowNode) SetLayout(metrics LayoutMetrics, constraints LayoutConstraints) error {
	if err := n.ensureMutable("setLayout"); err != nil {
		return err
	}
	n.layoutMetrics = metrics
	n.layoutConstraints = constraints
	n.hasLayout = true
	return nil
}

func (n *ShadowNode) SetState(state *State) error {
	if err := n.ensureMutable("setState"); err != nil {
		return err
	}
	n.state = state
	return nil
}

// SameNode reports whether a and b are the same logical element.
func SameNode(a, b *ShadowNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.tag == b.tag
}

// ContentEqual reports whether nothing changed between a and b: equal props
// values, equal state, and the same child tag sequence.
func ContentEqual(a, b *ShadowNode) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.descriptor.Handle() != b.descriptor.Handle() {
		return false
	}
	if !props.Equal(a.props, b.props) || !StateEqual(a.state, b.state) {
		return false
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for idx := range a.children {
		if a.children[idx].tag != b.children[idx].tag {
			return false
		}
	}
	return true
}

func (n *ShadowNode) String() string {
	return fmt.Sprintf("%s(tag=%d)", n.ComponentName(), n.tag)
}

// Dump renders the subtree rooted at n, one node per line.
func Dump(n *ShadowNode) string {
	var sb strings.Builder
	dumpNode(&sb, n, 0)
	return sb.String()
}

func dumpNode(sb *strings.Builder, n *ShadowNode, depth int) {
	if n == nil {
		return
	}
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(fmt.Sprintf("%s %s rev=%d", n.String(), n.layoutMetrics.Frame, props.Revision(n.props)))
	if n.state != nil {
		sb.WriteString(fmt.Sprintf(" state@%d", n.state.Revision()))
	}
	sb.WriteString("\n")
	for _, child := range n.children {
		dumpNode(sb, child, depth+1)
	}
}
