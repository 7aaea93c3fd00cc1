// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadownode

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
)

type testDescriptor struct{}

func (testDescriptor) Name() string { return "View" }
func (testDescriptor) Handle() int64 { return 1 }
func (testDescriptor) DefaultProps() props.Props { return props.DefaultViewProps() }

func (testDescriptor) ParseProps(raw props.RawProps) (props.Props, error) {
	return props.Parse("View", props.DefaultViewProps(), raw)
}

func (testDescriptor) CloneProps(source props.Props, raw props.RawProps) (props.Props, error) {
	return props.Derive("View", source, raw)
}

func (testDescriptor) CheckProps(p props.Props) error {
	if _, ok := p.(*props.ViewProps); !ok {
		return scerr.InvalidProps("View", "", fmt.Errorf("wrong props type %T", p))
	}
	return nil
}

func makeNode(t *testing.T, tag int64, children ...*ShadowNode) *ShadowNode {
	t.Helper()
	node, err := Create(testDescriptor{}, tag, nil, children)
	if err != nil {
		t.Fatalf("create tag=%d: %v", tag, err)
	}
	return node
}

func colorProps(t *testing.T, source props.Props, color string) props.Props {
	t.Helper()
	p, err := props.Derive("View", source, props.MustRawProps(map[string]any{"backgroundColor": color}))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return p
}

func sameBacking(a, b []*ShadowNode) bool {
	return len(a) == len(b) && unsafe.SliceData(a) == unsafe.SliceData(b)
}

func TestClone_TagStable(t *testing.T) {
	node := makeNode(t, 5)
	clone, err := Clone(node, Fragment{Props: colorProps(t, node.Props(), "red")})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Tag() != node.Tag() {
		t.Errorf("expected tag %d, got %d", node.Tag(), clone.Tag())
	}
	if !SameNode(node, clone) {
		t.Errorf("clone should be the same logical node")
	}
}

func TestClone_CopyOnWriteChildren(t *testing.T) {
	parent := makeNode(t, 1, makeNode(t, 2), makeNode(t, 3))
	clone, err := Clone(parent, Fragment{Props: colorProps(t, parent.Props(), "blue")})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if !sameBacking(parent.Children(), clone.Children()) {
		t.Errorf("props-only clone should share the children list by reference")
	}
	// writing through the clone must not leak into the source
	if err := clone.AppendChild(makeNode(t, 4)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(parent.Children()) != 2 || len(clone.Children()) != 3 {
		t.Errorf("expected 2/3 children, got %d/%d", len(parent.Children()), len(clone.Children()))
	}
	if sameBacking(parent.Children(), clone.Children()[:2]) {
		t.Errorf("append should have copied the shared children list")
	}
}

func TestClone_RevisionIncrements(t *testing.T) {
	node := makeNode(t, 1)
	// props built from defaults (revision 0) get bumped past the source
	c1, err := Clone(node, Fragment{Props: props.DefaultViewProps()})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if props.Revision(c1.Props()) != 1 {
		t.Errorf("expected revision 1, got %d", props.Revision(c1.Props()))
	}
	c2, err := Clone(c1, Fragment{Props: colorProps(t, c1.Props(), "red")})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if props.Revision(c2.Props()) != 2 {
		t.Errorf("expected revision 2, got %d", props.Revision(c2.Props()))
	}
	c3, err := Clone(c2, Fragment{})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if c3.Props() != c2.Props() {
		t.Errorf("props should be shared when not in the fragment")
	}
}

func TestClone_WrongPropsType(t *testing.T) {
	node := makeNode(t, 1)
	_, err := Clone(node, Fragment{Props: props.DefaultParagraphProps()})
	var ipe *scerr.InvalidPropsError
	if !errors.As(err, &ipe) {
		t.Errorf("expected InvalidPropsError, got %v", err)
	}
}

func TestSeal_IllegalMutation(t *testing.T) {
	child := makeNode(t, 2)
	root := makeNode(t, 1, child)
	root.Seal()
	if !root.IsSealed() || !child.IsSealed() {
		t.Fatalf("seal should be recursive")
	}
	checks := map[string]error{
		"append":  root.AppendChild(makeNode(t, 3)),
		"replace": root.ReplaceChildAt(0, makeNode(t, 4)),
		"layout":  child.SetLayout(LayoutMetrics{}, LayoutConstraints{}),
		"state":   child.SetState(NewState(1)),
	}
	for name, err := range checks {
		var ime *scerr.IllegalMutationError
		if !errors.As(err, &ime) {
			t.Errorf("%s: expected IllegalMutationError, got %v", name, err)
		}
		if scerr.GetErrorCode(err) != scerr.Code_IllegalMutation {
			t.Errorf("%s: expected illegalmutation code", name)
		}
	}
	clone, err := Clone(root, Fragment{})
	if err != nil {
		t.Fatalf("clone of sealed node: %v", err)
	}
	if clone.IsSealed() {
		t.Errorf("clones start unsealed")
	}
}

func TestContentEqual(t *testing.T) {
	a := makeNode(t, 1, makeNode(t, 2))
	same, _ := Clone(a, Fragment{Props: props.DefaultViewProps()})
	if !ContentEqual(a, same) {
		t.Errorf("clone with equal props value should be content equal")
	}
	diffProps, _ := Clone(a, Fragment{Props: colorProps(t, a.Props(), "red")})
	if ContentEqual(a, diffProps) {
		t.Errorf("different props should not be content equal")
	}
	diffKids, _ := Clone(a, Fragment{Children: []*ShadowNode{makeNode(t, 3)}})
	if ContentEqual(a, diffKids) {
		t.Errorf("different child tags should not be content equal")
	}
	diffState, _ := Clone(a, Fragment{State: NewState("x")})
	if ContentEqual(a, diffState) {
		t.Errorf("different state should not be content equal")
	}
}

func TestCloneTree_PathOnly(t *testing.T) {
	leaf := makeNode(t, 4)
	left := makeNode(t, 2, leaf)
	right := makeNode(t, 3)
	root := makeNode(t, 1, left, right)
	root.Seal()

	newRoot, err := CloneTree(root, 4, func(n *ShadowNode) (*ShadowNode, error) {
		return Clone(n, Fragment{Props: colorProps(t, n.Props(), "red")})
	})
	if err != nil {
		t.Fatalf("clone tree: %v", err)
	}
	if newRoot == root || newRoot.Tag() != 1 {
		t.Fatalf("expected a new root with tag 1")
	}
	if newRoot.Children()[1] != right {
		t.Errorf("off-path sibling should be shared")
	}
	if newRoot.Children()[0] == left {
		t.Errorf("on-path ancestor should be cloned")
	}
	if FindByTag(root, 4) != leaf {
		t.Errorf("original tree must be unchanged")
	}
	if FindByTag(newRoot, 4) == leaf {
		t.Errorf("new tree should carry the replacement")
	}
	_, err = CloneTree(root, 99, func(n *ShadowNode) (*ShadowNode, error) { return n, nil })
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestState_Next(t *testing.T) {
	s1 := NewState(map[string]float64{"y": 0})
	s2 := s1.Next(map[string]float64{"y": 10})
	if s2.Revision() != s1.Revision()+1 {
		t.Errorf("expected revision to increase")
	}
	if StateEqual(s1, s2) {
		t.Errorf("successor state should differ")
	}
	if !StateEqual(nil, nil) || StateEqual(s1, nil) {
		t.Errorf("nil state handling wrong")
	}
}

func TestTagAllocator(t *testing.T) {
	ta := NewTagAllocator(10)
	if ta.Next() != 10 || ta.Next() != 11 {
		t.Fatalf("unexpected sequence")
	}
	ta.Reserve(20)
	if got := ta.Next(); got != 21 {
		t.Errorf("expected 21 after reserving 20, got %d", got)
	}
	ta.Reserve(5)
	if got := ta.Next(); got != 22 {
		t.Errorf("reserving a lower tag should be a no-op, got %d", got)
	}
}
