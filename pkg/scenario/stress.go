// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/wavetermdev/shadowtree/pkg/componentregistry"
	"github.com/wavetermdev/shadowtree/pkg/components"
	"github.com/wavetermdev/shadowtree/pkg/layout"
	"github.com/wavetermdev/shadowtree/pkg/mounting"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"github.com/wavetermdev/shadowtree/pkg/shadowtree"
	"github.com/wavetermdev/shadowtree/pkg/util/ds"
	"golang.org/x/sync/errgroup"
)

const maxStressNodes = 400

type StressOptions struct {
	RunOptions
	Surfaces int
	Commits  int
	Seed     int64
	// Committers is the number of goroutines committing to each surface.
	Committers int
}

type SurfaceResult struct {
	SurfaceId    string        `json:"surfaceid"`
	Commits      int           `json:"commits"`
	Transactions int           `json:"transactions"`
	Nodes        int           `json:"nodes"`
	Duration     time.Duration `json:"duration"`
}

type StressReport struct {
	Scenario string           `json:"scenario"`
	Surfaces []*SurfaceResult `json:"surfaces"`
	Duration time.Duration    `json:"duration"`
}

// Stress runs random edits against Surfaces independent trees built from
// sc's initial tree, each with its own executor mounting into a stub view
// tree. Every surface is verified against its final committed root.
func Stress(ctx context.Context, sc *Scenario, opts StressOptions) (*StressReport, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if opts.Surfaces <= 0 || opts.Commits <= 0 {
		return nil, fmt.Errorf("stress needs positive surfaces and commits")
	}
	if opts.Committers <= 0 {
		opts.Committers = 1
	}
	if opts.Registry == nil {
		opts.Registry = componentregistry.NewDefault()
	}
	start := time.Now()
	results := ds.MakeSyncMap[string, *SurfaceResult]()
	eg, egCtx := errgroup.WithContext(ctx)
	for idx := 0; idx < opts.Surfaces; idx++ {
		eg.Go(func() error {
			res, err := stressSurface(egCtx, sc, opts, opts.Seed+int64(idx))
			if err != nil {
				return fmt.Errorf("surface %d: %w", idx, err)
			}
			results.Set(res.SurfaceId, res)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	rpt := &StressReport{Scenario: sc.Name, Duration: time.Since(start)}
	for _, id := range results.Keys() {
		res, _ := results.Get(id)
		rpt.Surfaces = append(rpt.Surfaces, res)
	}
	return rpt, nil
}

func stressSurface(ctx context.Context, sc *Scenario, opts StressOptions, seed int64) (*SurfaceResult, error) {
	start := time.Now()
	reg := opts.Registry
	root, err := buildFresh(reg, sc.Tree)
	if err != nil {
		return nil, err
	}
	tree, err := shadowtree.New(root, shadowtree.Options{
		Engine:      layout.NewBoxEngine(),
		Constraints: constraintsFor(sc.Root, opts.Root),
	})
	if err != nil {
		return nil, err
	}
	defer tree.Invalidate()
	coord := mounting.NewCoordinator(tree, mounting.CoordinatorOptions{Coalesce: sc.Coalesce || opts.Coalesce})
	stub := mounting.NewStubViewTree()
	ex := mounting.NewExecutor(coord, stub, opts.Sink)
	defer ex.Close()

	perCommitter := opts.Commits / opts.Committers
	eg, egCtx := errgroup.WithContext(ctx)
	for c := 0; c < opts.Committers; c++ {
		rng := rand.New(rand.NewSource(seed*1000 + int64(c)))
		count := perCommitter
		if c == 0 {
			count += opts.Commits % opts.Committers
		}
		eg.Go(func() error {
			for i := 0; i < count; i++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				_, err := tree.CommitWithOptions(func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
					return randomEdit(rng, reg, oldRoot)
				}, shadowtree.CommitOptions{Source: shadowtree.CommitSource_App})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	ex.Flush()
	if err := ex.LastError(); err != nil {
		return nil, err
	}
	final, _ := tree.Root()
	if err := stub.Verify(final); err != nil {
		return nil, fmt.Errorf("surface %s: %w", tree.SurfaceId(), err)
	}
	return &SurfaceResult{
		SurfaceId:    tree.SurfaceId(),
		Commits:      opts.Commits,
		Transactions: ex.Mounted(),
		Nodes:        shadownode.CountNodes(final),
		Duration:     time.Since(start),
	}, nil
}

// buildFresh builds elem ignoring its tags, so surfaces sharing a registry
// never collide.
func buildFresh(reg *componentregistry.Registry, elem *Element) (*shadownode.ShadowNode, error) {
	children := make([]*shadownode.ShadowNode, 0, len(elem.Children))
	for _, childElem := range elem.Children {
		child, err := buildFresh(reg, childElem)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	raw, err := props.MakeRawProps(elem.Props)
	if err != nil {
		return nil, err
	}
	return reg.CreateNode(elem.Component, raw, children)
}

func canHaveChildren(node *shadownode.ShadowNode) bool {
	return node.ComponentName() != components.Name_Paragraph
}

// randomEdit makes one random change somewhere in root: a prop change, a
// reorder, an inserted subtree or a removed child.
func randomEdit(rng *rand.Rand, reg *componentregistry.Registry, root *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
	var nodes []*shadownode.ShadowNode
	shadownode.Walk(root, func(node *shadownode.ShadowNode, parent *shadownode.ShadowNode, index int) bool {
		nodes = append(nodes, node)
		return true
	})
	target := nodes[rng.Intn(len(nodes))]
	op := rng.Intn(4)
	if len(nodes) > maxStressNodes {
		op = 3
	}
	return shadownode.CloneTree(root, target.Tag(), func(node *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		kids := slices.Clone(node.Children())
		switch {
		case op == 1 && len(kids) > 1:
			rng.Shuffle(len(kids), func(i, j int) { kids[i], kids[j] = kids[j], kids[i] })
			return reg.CloneNode(node, nil, kids)
		case op == 2 && canHaveChildren(node):
			child, err := reg.CreateNode(randomComponent(rng), randomProps(rng), nil)
			if err != nil {
				return nil, err
			}
			return reg.CloneNode(node, nil, slices.Insert(kids, rng.Intn(len(kids)+1), child))
		case op == 3 && len(kids) > 0:
			idx := rng.Intn(len(kids))
			return reg.CloneNode(node, nil, slices.Delete(kids, idx, idx+1))
		}
		return reg.CloneNode(node, props.MustRawProps(map[string]any{"testID": fmt.Sprintf("s%d", rng.Intn(1000))}), nil)
	})
}

func randomComponent(rng *rand.Rand) string {
	switch rng.Intn(3) {
	case 0:
		return components.Name_Paragraph
	case 1:
		return components.Name_ScrollView
	}
	return components.Name_View
}

func randomProps(rng *rand.Rand) props.RawProps {
	return props.MustRawProps(map[string]any{
		"height":  float64(rng.Intn(40)),
		"padding": float64(rng.Intn(4)),
	})
}
