// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wavetermdev/shadowtree/pkg/components"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

func view(t *testing.T, tag int64, children ...*shadownode.ShadowNode) *shadownode.ShadowNode {
	t.Helper()
	node, err := shadownode.Create(components.NewViewDescriptor(), tag, nil, children)
	if err != nil {
		t.Fatalf("create view %d: %v", tag, err)
	}
	return node
}

func root(t *testing.T, children ...*shadownode.ShadowNode) *shadownode.ShadowNode {
	t.Helper()
	node, err := shadownode.Create(components.NewRootViewDescriptor(), 1, nil, children)
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	return node
}

func recolor(t *testing.T, node *shadownode.ShadowNode, color string) *shadownode.ShadowNode {
	t.Helper()
	p, err := props.Derive(node.ComponentName(), node.Props(), props.MustRawProps(map[string]any{"backgroundColor": color}))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	clone, err := shadownode.Clone(node, shadownode.Fragment{Props: p})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	return clone
}

func withChildren(t *testing.T, node *shadownode.ShadowNode, children ...*shadownode.ShadowNode) *shadownode.ShadowNode {
	t.Helper()
	clone, err := shadownode.Clone(node, shadownode.Fragment{Children: append([]*shadownode.ShadowNode{}, children...)})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	return clone
}

func mutationStrings(list []Mutation) []string {
	rtn := make([]string, 0, len(list))
	for _, m := range list {
		rtn = append(rtn, m.String())
	}
	return rtn
}

func checkMutations(t *testing.T, got []Mutation, want []string) {
	t.Helper()
	if diff := cmp.Diff(want, mutationStrings(got)); diff != "" {
		t.Errorf("mutations mismatch (-want +got):\n%s", diff)
	}
	if err := CheckWellFormed(got); err != nil {
		t.Errorf("mutation list not well formed: %v\n%s", err, FormatList(got))
	}
}

func TestDiff_Identical(t *testing.T) {
	tree := root(t, view(t, 2, view(t, 4)), view(t, 3))
	if got := Diff(tree, tree); len(got) != 0 {
		t.Errorf("expected no mutations, got:\n%s", FormatList(got))
	}
	// structurally equal but separately built trees produce nothing either
	other := root(t, view(t, 2, view(t, 4)), view(t, 3))
	if got := Diff(tree, other); len(got) != 0 {
		t.Errorf("expected no mutations for equal trees, got:\n%s", FormatList(got))
	}
}

func TestDiff_RemoveAndAppend(t *testing.T) {
	a, b := view(t, 2), view(t, 3)
	oldRoot := root(t, a, b)
	newRoot := withChildren(t, oldRoot, b, view(t, 4))
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(RootView#1, View#2, 0)",
		"Delete(View#2)",
		"Create(View#4)",
		"Insert(RootView#1, View#4, 1)",
	})
}

func TestDiff_SinglePropChange(t *testing.T) {
	// root -> [2 -> [5], 3]; only 5 changes
	oldRoot := root(t, view(t, 2, view(t, 5)), view(t, 3))
	newRoot, err := shadownode.CloneTree(oldRoot, 5, func(n *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		return recolor(t, n, "red"), nil
	})
	if err != nil {
		t.Fatalf("clone tree: %v", err)
	}
	got := Diff(oldRoot, newRoot)
	checkMutations(t, got, []string{"Update(View#2, View#5, 0)"})
	if props.Revision(got[0].NewChildView.Props) != 1 || props.Revision(got[0].OldChildView.Props) != 0 {
		t.Errorf("update should carry old and new props revisions")
	}
}

func TestDiff_Mount(t *testing.T) {
	tree := root(t, view(t, 2, view(t, 4)), view(t, 3))
	checkMutations(t, Diff(nil, tree), []string{
		"Create(RootView#1)",
		"Create(View#2)",
		"Create(View#4)",
		"Insert(View#2, View#4, 0)",
		"Insert(RootView#1, View#2, 0)",
		"Create(View#3)",
		"Insert(RootView#1, View#3, 1)",
		"Insert(#rootparent, RootView#1, 0)",
	})
}

func TestDiff_Unmount(t *testing.T) {
	tree := root(t, view(t, 2, view(t, 4)), view(t, 3))
	checkMutations(t, Diff(tree, nil), []string{
		"Remove(#rootparent, RootView#1, 0)",
		"Remove(RootView#1, View#3, 1)",
		"Remove(RootView#1, View#2, 0)",
		"Remove(View#2, View#4, 0)",
		"Delete(View#4)",
		"Delete(View#2)",
		"Delete(View#3)",
		"Delete(RootView#1)",
	})
	if got := Diff(nil, nil); got != nil {
		t.Errorf("expected nil for nil/nil")
	}
}

func TestDiff_RootReplaced(t *testing.T) {
	oldRoot := root(t)
	newRoot, err := shadownode.Create(components.NewRootViewDescriptor(), 9, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(#rootparent, RootView#1, 0)",
		"Delete(RootView#1)",
		"Create(RootView#9)",
		"Insert(#rootparent, RootView#9, 0)",
	})
}

func TestDiff_Reorder(t *testing.T) {
	a, b, c := view(t, 2), view(t, 3), view(t, 4)
	oldRoot := root(t, a, b, c)
	// the run b, c stays put; only a moves to the end
	newRoot := withChildren(t, oldRoot, b, c, a)
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Update(RootView#1, View#2, 2)",
	})
}

func TestDiff_ReorderWithChange(t *testing.T) {
	a, b, c, d := view(t, 2), view(t, 3), view(t, 4), view(t, 5)
	oldRoot := root(t, a, b, c, d)
	newRoot := withChildren(t, oldRoot, d, recolor(t, b, "blue"), a, c)
	// a and c keep their relative order and stay; d and b move in front of them
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Update(RootView#1, View#5, 0)",
		"Update(RootView#1, View#3, 1)",
	})
}

func TestDiff_TypeChangeSameTag(t *testing.T) {
	oldRoot := root(t, view(t, 2))
	para, err := shadownode.Create(components.NewParagraphDescriptor(), 2, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newRoot := withChildren(t, oldRoot, para)
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(RootView#1, View#2, 0)",
		"Delete(View#2)",
		"Create(Paragraph#2)",
		"Insert(RootView#1, Paragraph#2, 0)",
	})
}

func TestDiff_Reparent(t *testing.T) {
	// root -> [20, 30 -> [50]] becomes root -> [20 -> [50], 30]
	v50 := view(t, 50)
	v20, v30 := view(t, 20), view(t, 30, v50)
	oldRoot := root(t, v20, v30)
	newRoot := withChildren(t, oldRoot, withChildren(t, v20, v50), withChildren(t, v30))
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(View#30, View#50, 0)",
		"Insert(View#20, View#50, 0)",
	})
}

func TestDiff_ReparentIntoNewParent(t *testing.T) {
	// 5 leaves 2 (which goes away) for the new 4 and changes color on the way
	v5 := view(t, 5)
	oldRoot := root(t, view(t, 2, v5), view(t, 3))
	newRoot := withChildren(t, oldRoot, oldRoot.Children()[1], view(t, 4, recolor(t, v5, "blue")))
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(View#2, View#5, 0)",
		"Remove(RootView#1, View#2, 0)",
		"Delete(View#2)",
		"Create(View#4)",
		"Insert(View#4, View#5, 0)",
		"Update(View#4, View#5, 0)",
		"Insert(RootView#1, View#4, 1)",
	})
}

func TestDiff_ReparentSwap(t *testing.T) {
	// root -> [2 -> [3]] becomes root -> [3 -> [2]]
	v3 := view(t, 3)
	v2 := view(t, 2, v3)
	oldRoot := root(t, v2)
	newRoot := withChildren(t, oldRoot, withChildren(t, v3, withChildren(t, v2)))
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(RootView#1, View#2, 0)",
		"Remove(View#2, View#3, 0)",
		"Insert(View#3, View#2, 0)",
		"Insert(RootView#1, View#3, 0)",
	})
}

func TestDiff_ReparentWithTypeChange(t *testing.T) {
	v2 := view(t, 2, view(t, 5))
	v3 := view(t, 3)
	oldRoot := root(t, v2, v3)
	para, err := shadownode.Create(components.NewParagraphDescriptor(), 5, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newRoot := withChildren(t, oldRoot, withChildren(t, v2), withChildren(t, v3, para))
	checkMutations(t, Diff(oldRoot, newRoot), []string{
		"Remove(View#2, View#5, 0)",
		"Delete(View#5)",
		"Create(Paragraph#5)",
		"Insert(View#3, Paragraph#5, 0)",
	})
}

func TestDiff_LayoutChangeIsUpdate(t *testing.T) {
	child := view(t, 2)
	oldRoot := root(t, child)
	moved, err := shadownode.Clone(child, shadownode.Fragment{})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	metrics := shadownode.LayoutMetrics{Frame: shadownode.Rect{Origin: shadownode.Point{Y: 10}, Size: shadownode.Size{Width: 5, Height: 5}}}
	if err := moved.SetLayout(metrics, shadownode.LayoutConstraints{}); err != nil {
		t.Fatalf("set layout: %v", err)
	}
	newRoot := withChildren(t, oldRoot, moved)
	got := Diff(oldRoot, newRoot)
	checkMutations(t, got, []string{"Update(RootView#1, View#2, 0)"})
	if got[0].NewChildView.LayoutMetrics != metrics {
		t.Errorf("update should carry the new layout metrics")
	}
}

func TestLongestIncreasing(t *testing.T) {
	cases := []struct {
		seq  []int
		want int
	}{
		{nil, 0},
		{[]int{0, 1, 2}, 3},
		{[]int{2, 1, 0}, 1},
		{[]int{3, 1, 0, 2}, 2},
		{[]int{1, 2, 0, 3, 5, 4}, 4},
	}
	for _, tc := range cases {
		got := longestIncreasing(tc.seq)
		if len(got) != tc.want {
			t.Errorf("seq %v: expected length %d, got %v", tc.seq, tc.want, got)
			continue
		}
		for i := 1; i < len(got); i++ {
			if got[i] <= got[i-1] || tc.seq[got[i]] <= tc.seq[got[i-1]] {
				t.Errorf("seq %v: result %v is not increasing", tc.seq, got)
			}
		}
	}
}

func TestCheckWellFormed_Rejects(t *testing.T) {
	v := ShadowView{Tag: 7, ComponentName: "View"}
	p := ShadowView{Tag: 1, ComponentName: "RootView"}
	q := ShadowView{Tag: 3, ComponentName: "View"}
	bad := map[string][]Mutation{
		"insert before create":         {InsertMutation(p, v, 0), CreateMutation(v)},
		"delete before remove":         {DeleteMutation(v), RemoveMutation(p, v, 0)},
		"use after delete":             {RemoveMutation(p, v, 0), DeleteMutation(v), InsertMutation(p, v, 0)},
		"double create":                {CreateMutation(v), CreateMutation(v)},
		"remove from other parent":     {CreateMutation(v), InsertMutation(p, v, 0), RemoveMutation(q, v, 0), DeleteMutation(v)},
		"update under other parent":    {CreateMutation(v), InsertMutation(p, v, 0), UpdateMutation(q, v, v, 0)},
		"update then remove elsewhere": {UpdateMutation(p, v, v, 0), RemoveMutation(q, v, 0)},
	}
	for name, list := range bad {
		if err := CheckWellFormed(list); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	good := []Mutation{RemoveMutation(p, v, 0), DeleteMutation(v), CreateMutation(v), InsertMutation(p, v, 0)}
	if err := CheckWellFormed(good); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	tree := root(t, view(t, 2), view(t, 3))
	counts := Summarize(Diff(nil, tree))
	want := MutationCounts{Create: 3, Insert: 3}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if counts.Total() != 6 {
		t.Errorf("expected total 6, got %d", counts.Total())
	}
}
