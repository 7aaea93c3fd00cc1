// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"math"
	"testing"

	"github.com/wavetermdev/shadowtree/pkg/components"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

func makeNode(t *testing.T, desc shadownode.ComponentDescriptor, tag int64, raw map[string]any) *shadownode.ShadowNode {
	t.Helper()
	p, err := props.Parse(desc.Name(), desc.DefaultProps(), props.MustRawProps(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	node, err := shadownode.Create(desc, tag, p, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return node
}

func maxConstraints(w, h float64) shadownode.LayoutConstraints {
	return shadownode.LayoutConstraints{MaxSize: shadownode.Size{Width: w, Height: h}}
}

func TestMeasure_ExplicitSize(t *testing.T) {
	node := makeNode(t, components.NewViewDescriptor(), 2, map[string]any{"width": 40, "height": 30})
	m, err := NewBoxEngine().Measure(node, maxConstraints(100, 100))
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if m.Frame.Size != (shadownode.Size{Width: 40, Height: 30}) {
		t.Errorf("expected 40x30, got %v", m.Frame)
	}
}

func TestMeasure_ClampedToMax(t *testing.T) {
	node := makeNode(t, components.NewViewDescriptor(), 2, map[string]any{"width": 400})
	m, err := NewBoxEngine().Measure(node, maxConstraints(100, 100))
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if m.Frame.Size.Width != 100 {
		t.Errorf("expected width clamped to 100, got %v", m.Frame)
	}
}

func TestChildConstraints_StackWithPadding(t *testing.T) {
	engine := NewBoxEngine()
	parent := makeNode(t, components.NewViewDescriptor(), 1, map[string]any{"padding": 10})
	c := maxConstraints(200, 500)
	first := engine.ChildConstraints(parent, c, 0, nil)
	if first.Origin != (shadownode.Point{X: 10, Y: 10}) || first.MaxSize.Width != 180 {
		t.Errorf("unexpected first child constraints %+v", first)
	}
	laid := []shadownode.LayoutMetrics{{Frame: shadownode.Rect{Size: shadownode.Size{Width: 180, Height: 25}}}}
	second := engine.ChildConstraints(parent, c, 1, laid)
	if second.Origin.Y != 35 || second.MaxSize.Height != 455 {
		t.Errorf("unexpected second child constraints %+v", second)
	}
}

func TestMeasure_ParagraphContent(t *testing.T) {
	node := makeNode(t, components.NewParagraphDescriptor(), 3, map[string]any{"text": "abcd", "fontSize": 10, "padding": 2})
	m, err := NewBoxEngine().Measure(node, maxConstraints(math.Inf(1), math.Inf(1)))
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	// 4 glyphs * 5 + padding, one 12pt line + padding
	if m.Frame.Size != (shadownode.Size{Width: 24, Height: 16}) {
		t.Errorf("expected 24x16, got %v", m.Frame)
	}
	if m.ContentInsets.Left != 2 {
		t.Errorf("expected content insets from padding, got %+v", m.ContentInsets)
	}
}

func TestMeasure_DisplayNone(t *testing.T) {
	node := makeNode(t, components.NewViewDescriptor(), 2, map[string]any{"display": "none", "height": 50})
	m, err := NewBoxEngine().Measure(node, maxConstraints(100, 100))
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if m.DisplayType != shadownode.DisplayType_None || m.Frame.Size.Height != 0 {
		t.Errorf("hidden node should have no size, got %+v", m)
	}
}

func TestMeasure_InvalidConstraints(t *testing.T) {
	node := makeNode(t, components.NewViewDescriptor(), 2, nil)
	bad := shadownode.LayoutConstraints{MinSize: shadownode.Size{Width: 50}, MaxSize: shadownode.Size{Width: 10, Height: 10}}
	if _, err := NewBoxEngine().Measure(node, bad); err == nil {
		t.Errorf("expected error for min > max")
	}
	if _, err := NewBoxEngine().Measure(node, maxConstraints(math.NaN(), 10)); err == nil {
		t.Errorf("expected error for NaN constraint")
	}
}

func TestMeasure_PixelRounding(t *testing.T) {
	node := makeNode(t, components.NewViewDescriptor(), 2, map[string]any{"width": 10.26, "height": 3})
	c := maxConstraints(100, 100)
	c.PointScaleFactor = 2
	m, err := NewBoxEngine().Measure(node, c)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if m.Frame.Size.Width != 10.5 {
		t.Errorf("expected width snapped to 10.5, got %v", m.Frame.Size.Width)
	}
}
