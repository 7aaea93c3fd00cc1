// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"
	"log"
	"math"
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/wavetermdev/shadowtree/pkg/componentregistry"
	"github.com/wavetermdev/shadowtree/pkg/differ"
	"github.com/wavetermdev/shadowtree/pkg/layout"
	"github.com/wavetermdev/shadowtree/pkg/mounting"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"github.com/wavetermdev/shadowtree/pkg/shadowtree"
	"github.com/wavetermdev/shadowtree/pkg/statecodec"
	"github.com/wavetermdev/shadowtree/pkg/util/logutil"
)

type RunOptions struct {
	Registry *componentregistry.Registry // nil uses the built-in components
	Root     RootSpec                    // defaults, overridden by the scenario's own root
	Coalesce bool                        // or-ed with the scenario's setting
	Codec    string                      // used when the scenario names none
	Sink     mounting.TelemetrySink
}

type TxReport struct {
	Number    int64    `json:"number"`
	Coalesced int      `json:"coalesced,omitempty"`
	Mutations []string `json:"mutations"`
}

type StepReport struct {
	Index        int         `json:"index"`
	Name         string      `json:"name,omitempty"`
	Kind         string      `json:"kind"`
	Revision     int64       `json:"revision"`
	Unchanged    bool        `json:"unchanged,omitempty"`
	Transactions []*TxReport `json:"transactions,omitempty"`
}

type Report struct {
	Scenario  string                `json:"scenario"`
	SurfaceId string                `json:"surfaceid"`
	Steps     []*StepReport         `json:"steps"`
	Counts    differ.MutationCounts `json:"counts"`
	Views     int                   `json:"views"`
	Mounted   string                `json:"mounted"`
}

// constraintsFor resolves the root constraints; a zero height means the
// surface grows with its content.
func constraintsFor(root RootSpec, base RootSpec) shadownode.LayoutConstraints {
	width, height, scale := base.Width, base.Height, base.PointScale
	if root.Width > 0 {
		width = root.Width
	}
	if root.Height > 0 {
		height = root.Height
	}
	if root.PointScale > 0 {
		scale = root.PointScale
	}
	if height <= 0 {
		height = math.Inf(1)
	}
	return shadownode.LayoutConstraints{
		MaxSize:          shadownode.Size{Width: width, Height: height},
		PointScaleFactor: scale,
	}
}

type runner struct {
	sc    *Scenario
	opts  RunOptions
	reg   *componentregistry.Registry
	tree  *shadowtree.ShadowTree
	coord *mounting.Coordinator
	stub  *mounting.StubViewTree
	rpt   *Report
}

func newRunner(sc *Scenario, opts RunOptions) (*runner, error) {
	reg := opts.Registry
	if reg == nil {
		reg = componentregistry.NewDefault()
	}
	codecName := sc.Codec
	if codecName == "" {
		codecName = opts.Codec
	}
	codec, err := statecodec.ByName(codecName)
	if err != nil {
		return nil, err
	}
	root, err := Build(reg, sc.Tree)
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}
	tree, err := shadowtree.New(root, shadowtree.Options{
		Engine:      layout.NewBoxEngine(),
		Constraints: constraintsFor(sc.Root, opts.Root),
		Codec:       codec,
	})
	if err != nil {
		return nil, err
	}
	r := &runner{sc: sc, opts: opts, reg: reg, tree: tree, stub: mounting.NewStubViewTree()}
	r.coord = mounting.NewCoordinator(tree, mounting.CoordinatorOptions{Coalesce: sc.Coalesce || opts.Coalesce})
	r.rpt = &Report{Scenario: sc.Name, SurfaceId: tree.SurfaceId()}
	return r, nil
}

// Run plays sc from its initial tree. Every mount step, and the implicit
// final one, checks the stub view tree against the committed root.
func Run(ctx context.Context, sc *Scenario, opts RunOptions) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	r, err := newRunner(sc, opts)
	if err != nil {
		return nil, err
	}
	defer r.tree.Invalidate()
	for idx, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return r.rpt, err
		}
		srpt, err := r.runStep(idx, step)
		if err != nil {
			return r.rpt, fmt.Errorf("scenario %q step %d (%s): %w", sc.Name, idx, step.Name, err)
		}
		r.rpt.Steps = append(r.rpt.Steps, srpt)
	}
	final, err := r.mount(nil)
	if err != nil {
		return r.rpt, fmt.Errorf("scenario %q final mount: %w", sc.Name, err)
	}
	if len(final) > 0 {
		_, number := r.tree.Root()
		r.rpt.Steps = append(r.rpt.Steps, &StepReport{Index: len(sc.Steps), Kind: StepKind_Mount, Revision: number, Transactions: final})
	}
	r.rpt.Views = r.stub.ViewCount()
	r.rpt.Mounted = r.stub.Dump()
	return r.rpt, nil
}

func (r *runner) runStep(idx int, step *Step) (*StepReport, error) {
	kind, err := step.Kind()
	if err != nil {
		return nil, err
	}
	srpt := &StepReport{Index: idx, Name: step.Name, Kind: kind}
	var result *shadowtree.CommitResult
	switch kind {
	case StepKind_Commit:
		next, err := Build(r.reg, step.Commit)
		if err != nil {
			return nil, err
		}
		result, err = r.tree.CommitWithOptions(func(*shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
			return next, nil
		}, shadowtree.CommitOptions{Source: shadowtree.CommitSource_App})
		if err != nil {
			return nil, err
		}
	case StepKind_Patch:
		result, err = r.tree.CommitWithOptions(func(oldRoot *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
			return applyPatch(r.reg, oldRoot, step.Patch)
		}, shadowtree.CommitOptions{Source: shadowtree.CommitSource_App})
		if err != nil {
			return nil, err
		}
	case StepKind_State:
		payload, err := props.FromAny(step.State.Data)
		if err != nil {
			return nil, err
		}
		result, err = r.tree.UpdateStateRaw(step.State.Tag, payload)
		if err != nil {
			return nil, err
		}
	case StepKind_Constraints:
		result, err = r.tree.SetConstraints(constraintsFor(*step.Constraints, r.opts.Root))
		if err != nil {
			return nil, err
		}
	case StepKind_Mount:
		txs, err := r.mount(step.Mount.Expect)
		if err != nil {
			return nil, err
		}
		srpt.Transactions = txs
	}
	if result != nil {
		srpt.Unchanged = result.Unchanged
	}
	_, srpt.Revision = r.tree.Root()
	return srpt, nil
}

// mount takes everything pending, applies it and verifies the result.
func (r *runner) mount(expect []string) ([]*TxReport, error) {
	var rtn []*TxReport
	var all []string
	for {
		tx, ok := r.coord.Take()
		if !ok {
			break
		}
		if err := differ.CheckWellFormed(tx.Mutations); err != nil {
			return rtn, fmt.Errorf("%s: %w", tx, err)
		}
		err := r.stub.Apply(tx)
		if r.opts.Sink != nil {
			r.opts.Sink.RecordTransaction(tx, err)
		}
		if err != nil {
			return rtn, err
		}
		txr := &TxReport{Number: tx.Number, Coalesced: tx.CoalescedCount}
		for _, m := range tx.Mutations {
			txr.Mutations = append(txr.Mutations, m.String())
		}
		all = append(all, txr.Mutations...)
		addCounts(&r.rpt.Counts, tx.Telemetry.Counts)
		logutil.DevPrintf("[scenario] %s\n%s", tx, differ.FormatList(tx.Mutations))
		rtn = append(rtn, txr)
	}
	if expect != nil {
		if diff := cmp.Diff(expect, all); diff != "" {
			return rtn, fmt.Errorf("mutations mismatch (-want +got):\n%s", diff)
		}
	}
	root, _ := r.tree.Root()
	if err := r.stub.Verify(root); err != nil {
		log.Printf("[scenario] mounted tree:\n%s", r.stub.Dump())
		return rtn, err
	}
	return rtn, nil
}

func addCounts(dst *differ.MutationCounts, c differ.MutationCounts) {
	dst.Create += c.Create
	dst.Delete += c.Delete
	dst.Insert += c.Insert
	dst.Remove += c.Remove
	dst.Update += c.Update
}

// applyPatch clones the path to the patched node. Remove rewrites the
// parent's child list instead.
func applyPatch(reg *componentregistry.Registry, root *shadownode.ShadowNode, patch *Patch) (*shadownode.ShadowNode, error) {
	if patch.Remove {
		path, _ := shadownode.FindPath(root, patch.Tag)
		if len(path) == 0 {
			return nil, fmt.Errorf("patch tag=%d: %w", patch.Tag, shadownode.ErrNodeNotFound)
		}
		if len(path) == 1 {
			return nil, fmt.Errorf("patch tag=%d: cannot remove the root", patch.Tag)
		}
		parent := path[len(path)-2]
		kids := slices.DeleteFunc(slices.Clone(parent.Children()), func(n *shadownode.ShadowNode) bool {
			return n.Tag() == patch.Tag
		})
		return shadownode.CloneTree(root, parent.Tag(), func(node *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
			return reg.CloneNode(node, nil, kids)
		})
	}
	raw, err := props.MakeRawProps(patch.Props)
	if err != nil {
		return nil, err
	}
	return shadownode.CloneTree(root, patch.Tag, func(node *shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
		var kids []*shadownode.ShadowNode
		if len(patch.Append) > 0 {
			kids = slices.Clone(node.Children())
			for _, elem := range patch.Append {
				child, err := Build(reg, elem)
				if err != nil {
					return nil, err
				}
				kids = append(kids, child)
			}
		}
		return reg.CloneNode(node, raw, kids)
	})
}
