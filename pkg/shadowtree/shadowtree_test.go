// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadowtree

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/wavetermdev/shadowtree/pkg/componentregistry"
	"github.com/wavetermdev/shadowtree/pkg/components"
	"github.com/wavetermdev/shadowtree/pkg/layout"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"golang.org/x/sync/errgroup"
)

type recordingDelegate struct {
	lock        sync.Mutex
	numbers     []int64
	invalidated bool
}

func (d *recordingDelegate) ShadowTreeDidCommit(tree *ShadowTree, result *CommitResult) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.numbers = append(d.numbers, result.Number)
}

func (d *recordingDelegate) ShadowTreeDidInvalidate(tree *ShadowTree) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.invalidated = true
}

type failingEngine struct {
	*layout.BoxEngine
	failTag int64
}

func (e failingEngine) Measure(node *shadownode.ShadowNode, c shadownode.LayoutConstraints) (shadownode.LayoutMetrics, error) {
	if node.Tag() == e.failTag {
		return shadownode.LayoutMetrics{}, fmt.Errorf("cannot measure")
	}
	return e.BoxEngine.Measure(node, c)
}

func rootConstraints(w, h float64) shadownode.LayoutConstraints {
	return shadownode.LayoutConstraints{MaxSize: shadownode.Size{Width: w, Height: h}}
}

func mustNode(t *testing.T, reg *componentregistry.Registry, name string, tag int64, raw map[string]any, children ...*shadownode.ShadowNode) *shadownode.ShadowNode {
	t.Helper()
	node, err := reg.CreateNodeWithTag(name, tag, props.MustRawProps(raw), children)
	if err != nil {
		t.Fatalf("create %s %d: %v", name, tag, err)
	}
	return node
}

// makeTree builds root(1) -> [A(2) -> [leaf(4)], B(3)]
func makeTree(t *testing.T, engine LayoutEngine) (*ShadowTree, *componentregistry.Registry) {
	t.Helper()
	reg := componentregistry.NewDefault()
	leaf := mustNode(t, reg, components.Name_View, 4, map[string]any{"height": 5})
	a := mustNode(t, reg, components.Name_View, 2, map[string]any{"height": 10}, leaf)
	b := mustNode(t, reg, components.Name_View, 3, map[string]any{"height": 20})
	root := mustNode(t, reg, components.Name_RootView, 1, nil, a, b)
	tree, err := New(root, Options{Engine: engine, Constraints: rootConstraints(100, 200)})
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	return tree, reg
}

func setTestId(reg *componentregistry.Registry, tag int64, testId string) Transform {
	return func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		return shadownode.CloneTree(oldRoot, tag, func(n *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
			return reg.CloneNode(n, props.MustRawProps(map[string]any{"testID": testId}), nil)
		})
	}
}

func TestNew_LayoutAndSeal(t *testing.T) {
	tree, _ := makeTree(t, layout.NewBoxEngine())
	root, number := tree.Root()
	if number != 0 {
		t.Errorf("expected revision 0, got %d", number)
	}
	if !root.IsSealed() {
		t.Errorf("committed root must be sealed")
	}
	a, b := root.Children()[0], root.Children()[1]
	if a.LayoutMetrics().Frame.Origin.Y != 0 || b.LayoutMetrics().Frame.Origin.Y != 10 {
		t.Errorf("children should stack: a=%v b=%v", a.LayoutMetrics().Frame, b.LayoutMetrics().Frame)
	}
	if got := root.LayoutMetrics().Frame.Size; got != (shadownode.Size{Width: 100, Height: 30}) {
		t.Errorf("expected root 100x30, got %+v", got)
	}
	if tree.SurfaceId() == "" {
		t.Errorf("expected generated surface id")
	}
}

func TestCommit_OnlyChangedPathMeasured(t *testing.T) {
	tree, reg := makeTree(t, layout.NewBoxEngine())
	oldRoot, _ := tree.Root()
	result, err := tree.Commit(setTestId(reg, 4, "leaf"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Number != 1 || result.OldRoot != oldRoot {
		t.Errorf("unexpected result number=%d", result.Number)
	}
	if result.Telemetry.Measured != 3 {
		t.Errorf("expected root, A and leaf to be measured, got %d", result.Telemetry.Measured)
	}
	if result.NewRoot.Children()[1] != oldRoot.Children()[1] {
		t.Errorf("untouched sibling should be shared")
	}
	if !result.NewRoot.IsSealed() {
		t.Errorf("new root must be sealed")
	}
}

func TestCommit_TransformErrorLeavesTree(t *testing.T) {
	tree, _ := makeTree(t, layout.NewBoxEngine())
	before, number := tree.Root()
	boom := errors.New("boom")
	_, err := tree.Commit(func(*shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		return nil, boom
	})
	if err != boom {
		t.Errorf("transform error should be returned unchanged, got %v", err)
	}
	after, afterNumber := tree.Root()
	if after != before || afterNumber != number {
		t.Errorf("tree must be unchanged after a failed commit")
	}
}

func TestCommit_PanicRecovered(t *testing.T) {
	tree, _ := makeTree(t, layout.NewBoxEngine())
	before, _ := tree.Root()
	_, err := tree.Commit(func(*shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		panic("bad transform")
	})
	if !scerr.HasCode(err, scerr.Code_Transform) {
		t.Errorf("expected transform error code, got %v", err)
	}
	if after, _ := tree.Root(); after != before {
		t.Errorf("tree must be unchanged after a panic")
	}
}

func TestCommit_LayoutFailure(t *testing.T) {
	tree, reg := makeTree(t, failingEngine{BoxEngine: layout.NewBoxEngine(), failTag: 99})
	before, number := tree.Root()
	_, err := tree.Commit(func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		bad := mustNode(t, reg, components.Name_View, 99, nil)
		return reg.CloneNode(oldRoot, nil, append(append([]*shadownode.ShadowNode{}, oldRoot.Children()...), bad))
	})
	var le *scerr.LayoutError
	if !errors.As(err, &le) || le.Tag != 99 {
		t.Fatalf("expected LayoutError for tag 99, got %v", err)
	}
	after, afterNumber := tree.Root()
	if after != before || afterNumber != number {
		t.Errorf("tree must be unchanged after layout failure")
	}
	if shadownode.FindByTag(after, 99) != nil {
		t.Errorf("partial tree leaked into the committed root")
	}
}

func TestCommit_Reentrant(t *testing.T) {
	tree, _ := makeTree(t, layout.NewBoxEngine())
	var innerErr error
	result, err := tree.Commit(func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		_, innerErr = tree.Commit(func(r *shadownode.ShadowNode) (*shadownode.ShadowNode, error) { return r, nil })
		return oldRoot, nil
	})
	if err != nil {
		t.Fatalf("outer commit: %v", err)
	}
	if !result.Unchanged {
		t.Errorf("returning the old root should be an unchanged commit")
	}
	if !scerr.HasCode(innerErr, scerr.Code_Reentrant) {
		t.Errorf("expected reentrant error, got %v", innerErr)
	}
}

func TestCommit_ConcurrentTotalOrder(t *testing.T) {
	tree, reg := makeTree(t, layout.NewBoxEngine())
	delegate := &recordingDelegate{}
	tree.SetDelegate(delegate)
	const commits = 40
	var eg errgroup.Group
	for i := 0; i < commits; i++ {
		eg.Go(func() error {
			_, err := tree.Commit(func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
				child, err := reg.CreateNode(components.Name_View, props.MustRawProps(map[string]any{"height": 1}), nil)
				if err != nil {
					return nil, err
				}
				kids := append(append([]*shadownode.ShadowNode{}, oldRoot.Children()...), child)
				return reg.CloneNode(oldRoot, nil, kids)
			})
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	root, number := tree.Root()
	if number != commits {
		t.Errorf("expected revision %d, got %d", commits, number)
	}
	// no commit lost another's child
	if len(root.Children()) != commits+2 {
		t.Errorf("expected %d children, got %d", commits+2, len(root.Children()))
	}
	if !sort.SliceIsSorted(delegate.numbers, func(i, j int) bool { return delegate.numbers[i] < delegate.numbers[j] }) || len(delegate.numbers) != commits {
		t.Errorf("delegate should see every commit in order: %v", delegate.numbers)
	}
}

func TestInvalidate(t *testing.T) {
	tree, reg := makeTree(t, layout.NewBoxEngine())
	delegate := &recordingDelegate{}
	tree.SetDelegate(delegate)
	tree.Invalidate()
	if !delegate.invalidated {
		t.Errorf("delegate should be told about invalidation")
	}
	_, err := tree.Commit(setTestId(reg, 4, "x"))
	var tie *scerr.TreeInvalidatedError
	if !errors.As(err, &tie) || tie.SurfaceId != tree.SurfaceId() {
		t.Errorf("expected TreeInvalidatedError, got %v", err)
	}
}

func TestUpdateState(t *testing.T) {
	reg := componentregistry.NewDefault()
	scroll := mustNode(t, reg, components.Name_ScrollView, 2, map[string]any{"height": 50})
	root := mustNode(t, reg, components.Name_RootView, 1, nil, scroll)
	tree, err := New(root, Options{Engine: layout.NewBoxEngine(), Constraints: rootConstraints(100, 100)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	payload := props.Map(map[string]props.RawValue{
		"contentOffset": props.Map(map[string]props.RawValue{"x": props.Number(0), "y": props.Number(30)}),
	})
	result, err := tree.UpdateStateRaw(2, payload)
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	node := shadownode.FindByTag(result.NewRoot, 2)
	if st := components.ScrollViewStateOf(node); st.ContentOffset.Y != 30 {
		t.Errorf("expected offset y=30, got %+v", st)
	}
	if node.State().Revision() != 2 {
		t.Errorf("expected state revision 2, got %d", node.State().Revision())
	}
	if result.Telemetry.Source != CommitSource_State {
		t.Errorf("expected state source, got %q", result.Telemetry.Source)
	}
	encoded, err := tree.EncodeState(2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if m, ok := encoded.AsMap(); !ok || m["contentOffset"].IsNull() {
		t.Errorf("unexpected encoded state %v", encoded)
	}
	if _, err := tree.UpdateState(1, "x"); err == nil {
		t.Errorf("root view has no state; expected error")
	}
}

func TestSetConstraints(t *testing.T) {
	tree, _ := makeTree(t, layout.NewBoxEngine())
	result, err := tree.SetConstraints(rootConstraints(300, 200))
	if err != nil {
		t.Fatalf("set constraints: %v", err)
	}
	if w := result.NewRoot.LayoutMetrics().Frame.Size.Width; w != 300 {
		t.Errorf("expected root width 300, got %v", w)
	}
	if w := result.NewRoot.Children()[1].LayoutMetrics().Frame.Size.Width; w != 300 {
		t.Errorf("children should be laid out again, got width %v", w)
	}
	if tree.Constraints().MaxSize.Width != 300 {
		t.Errorf("constraints should be stored")
	}
	again, err := tree.SetConstraints(rootConstraints(300, 200))
	if err != nil || !again.Unchanged {
		t.Errorf("same constraints should not create a revision: %v", err)
	}
	bad := shadownode.LayoutConstraints{MinSize: shadownode.Size{Width: 10}, MaxSize: shadownode.Size{Width: 5}}
	if _, err := tree.SetConstraints(bad); !scerr.HasCode(err, scerr.Code_LayoutFailed) {
		t.Errorf("expected layout error for bad constraints, got %v", err)
	}
}

func TestCommitHook(t *testing.T) {
	tree, reg := makeTree(t, layout.NewBoxEngine())
	var seen int
	tree.AddCommitHook("count", func(tree *ShadowTree, oldRoot, candidate *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		seen++
		return nil, nil
	})
	tree.AddCommitHook("veto", func(tree *ShadowTree, oldRoot, candidate *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		vp, _ := props.ViewPropsOf(shadownode.FindByTag(candidate, 4).Props())
		if vp.TestId == "forbidden" {
			return nil, errors.New("vetoed")
		}
		return candidate, nil
	})
	if _, err := tree.Commit(setTestId(reg, 4, "ok")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := tree.Commit(setTestId(reg, 4, "forbidden")); err == nil {
		t.Errorf("expected hook veto")
	}
	if seen != 2 {
		t.Errorf("expected hook to run twice, got %d", seen)
	}
	tree.RemoveCommitHook("veto")
	if _, err := tree.Commit(setTestId(reg, 4, "forbidden")); err != nil {
		t.Errorf("hook removed, commit should pass: %v", err)
	}
}

func TestNew_DuplicateTags(t *testing.T) {
	reg := componentregistry.NewDefault()
	first := mustNode(t, reg, components.Name_View, 50, nil)
	second := mustNode(t, reg, components.Name_View, 50, nil)
	root := mustNode(t, reg, components.Name_RootView, 1, nil, first, second)
	_, err := New(root, Options{Engine: layout.NewBoxEngine(), Constraints: rootConstraints(100, 200)})
	var dte *scerr.DuplicateTagError
	if !errors.As(err, &dte) || dte.Tag != 50 || dte.ParentTag != 1 {
		t.Fatalf("expected DuplicateTagError for tag 50, got %v", err)
	}
	if scerr.GetErrorCode(err) != scerr.Code_DuplicateTag {
		t.Errorf("expected duplicatetag code, got %q", scerr.GetErrorCode(err))
	}
}

func TestCommit_DuplicateTagLeavesTree(t *testing.T) {
	tree, reg := makeTree(t, layout.NewBoxEngine())
	before, number := tree.Root()
	_, err := tree.Commit(func(old *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		// a second node claiming the leaf's tag, one level up
		dup := mustNode(t, reg, components.Name_View, 4, nil)
		children := append([]*shadownode.ShadowNode{}, old.Children()...)
		return reg.CloneNode(old, nil, append(children, dup))
	})
	if !scerr.HasCode(err, scerr.Code_DuplicateTag) {
		t.Fatalf("expected duplicatetag error, got %v", err)
	}
	after, afterNumber := tree.Root()
	if after != before || afterNumber != number {
		t.Errorf("tree must be unchanged after a rejected commit")
	}
}

// Commits racing with AttachDelegate are either part of the returned root
// or reported to the delegate, never lost.
func TestAttachDelegate_NoGap(t *testing.T) {
	tree, reg := makeTree(t, layout.NewBoxEngine())
	delegate := &recordingDelegate{}
	var eg errgroup.Group
	for i := 0; i < 20; i++ {
		testId := fmt.Sprintf("c%d", i)
		eg.Go(func() error {
			_, err := tree.Commit(setTestId(reg, 3, testId))
			return err
		})
	}
	_, attachedAt, invalidated := tree.AttachDelegate(delegate)
	if err := eg.Wait(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if invalidated {
		t.Fatalf("tree should not be invalidated")
	}
	_, last := tree.Root()
	delegate.lock.Lock()
	defer delegate.lock.Unlock()
	want := int(last - attachedAt)
	if len(delegate.numbers) != want {
		t.Fatalf("delegate saw %d commits after number %d, expected %d", len(delegate.numbers), attachedAt, want)
	}
	for idx, number := range delegate.numbers {
		if number != attachedAt+int64(idx)+1 {
			t.Errorf("commit %d reported as number %d", idx, number)
		}
	}
}
