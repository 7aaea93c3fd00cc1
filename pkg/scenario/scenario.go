// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scenario describes element trees and commit sequences in YAML and
// plays them through a shadow tree, a mounting coordinator and a stub view
// tree.
package scenario

import (
	"fmt"
	"os"

	"github.com/wavetermdev/shadowtree/pkg/componentregistry"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
	"gopkg.in/yaml.v3"
)

// Element is one node of a declared tree. Tag 0 allocates a fresh tag, so
// elements that must keep their identity across commits need explicit tags.
type Element struct {
	Component string         `yaml:"component" json:"component" jsonschema:"required"`
	Tag       int64          `yaml:"tag,omitempty" json:"tag,omitempty" jsonschema:"minimum=0"`
	Props     map[string]any `yaml:"props,omitempty" json:"props,omitempty"`
	Children  []*Element     `yaml:"children,omitempty" json:"children,omitempty"`
}

type RootSpec struct {
	Width      float64 `yaml:"width,omitempty" json:"width,omitempty"`
	Height     float64 `yaml:"height,omitempty" json:"height,omitempty"`
	PointScale float64 `yaml:"pointScale,omitempty" json:"pointScale,omitempty"`
}

type Patch struct {
	Tag    int64          `yaml:"tag" json:"tag" jsonschema:"required"`
	Props  map[string]any `yaml:"props,omitempty" json:"props,omitempty"`
	Append []*Element     `yaml:"append,omitempty" json:"append,omitempty"`
	Remove bool           `yaml:"remove,omitempty" json:"remove,omitempty" jsonschema:"description=detach the node from its parent"`
}

type StatePatch struct {
	Tag  int64          `yaml:"tag" json:"tag" jsonschema:"required"`
	Data map[string]any `yaml:"data" json:"data"`
}

type MountStep struct {
	// Expect, when set, must equal the mutations of every transaction taken
	// by this step, in order and in their printed form.
	Expect []string `yaml:"expect,omitempty" json:"expect,omitempty"`
}

const (
	StepKind_Commit      = "commit"
	StepKind_Patch       = "patch"
	StepKind_State       = "state"
	StepKind_Constraints = "constraints"
	StepKind_Mount       = "mount"
)

// Step does exactly one thing.
type Step struct {
	Name        string      `yaml:"name,omitempty" json:"name,omitempty"`
	Commit      *Element    `yaml:"commit,omitempty" json:"commit,omitempty" jsonschema:"description=replace the whole tree"`
	Patch       *Patch      `yaml:"patch,omitempty" json:"patch,omitempty"`
	State       *StatePatch `yaml:"state,omitempty" json:"state,omitempty"`
	Constraints *RootSpec   `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Mount       *MountStep  `yaml:"mount,omitempty" json:"mount,omitempty"`
}

func (s *Step) Kind() (string, error) {
	var kinds []string
	if s.Commit != nil {
		kinds = append(kinds, StepKind_Commit)
	}
	if s.Patch != nil {
		kinds = append(kinds, StepKind_Patch)
	}
	if s.State != nil {
		kinds = append(kinds, StepKind_State)
	}
	if s.Constraints != nil {
		kinds = append(kinds, StepKind_Constraints)
	}
	if s.Mount != nil {
		kinds = append(kinds, StepKind_Mount)
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("step %q must have exactly one action, has %v", s.Name, kinds)
	}
	return kinds[0], nil
}

type Scenario struct {
	Name     string   `yaml:"name" json:"name"`
	Root     RootSpec `yaml:"root,omitempty" json:"root,omitempty"`
	Coalesce bool     `yaml:"coalesce,omitempty" json:"coalesce,omitempty"`
	Codec    string   `yaml:"codec,omitempty" json:"codec,omitempty" jsonschema:"enum=json,enum=raw"`
	Tree     *Element `yaml:"tree" json:"tree" jsonschema:"required"`
	Steps    []*Step  `yaml:"steps,omitempty" json:"steps,omitempty"`
}

func (sc *Scenario) Validate() error {
	if sc.Tree == nil {
		return fmt.Errorf("scenario %q has no tree", sc.Name)
	}
	for idx, step := range sc.Steps {
		if step == nil {
			return fmt.Errorf("scenario %q: step %d is empty", sc.Name, idx)
		}
		if _, err := step.Kind(); err != nil {
			return fmt.Errorf("scenario %q: step %d: %w", sc.Name, idx, err)
		}
	}
	return nil
}

func Parse(barr []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(barr, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func Load(path string) (*Scenario, error) {
	barr, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(barr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Marshal renders sc back to YAML.
func Marshal(sc *Scenario) ([]byte, error) {
	return yaml.Marshal(sc)
}

// Build turns elem into unsealed shadow nodes through reg.
func Build(reg *componentregistry.Registry, elem *Element) (*shadownode.ShadowNode, error) {
	if elem == nil {
		return nil, fmt.Errorf("nil element")
	}
	children := make([]*shadownode.ShadowNode, 0, len(elem.Children))
	for _, childElem := range elem.Children {
		child, err := Build(reg, childElem)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	raw, err := props.MakeRawProps(elem.Props)
	if err != nil {
		return nil, fmt.Errorf("%s tag=%d: %w", elem.Component, elem.Tag, err)
	}
	return reg.CreateNodeWithTag(elem.Component, elem.Tag, raw, children)
}
