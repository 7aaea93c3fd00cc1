// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package layout has BoxEngine, a small block layout model standing in for a
// real flexbox engine: children stack vertically inside the parent's padding,
// explicit width/height win, auto width fills the available width and auto
// height wraps the content.
package layout

import (
	"fmt"
	"math"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

type BoxEngine struct {
	// DefaultScale is used when constraints carry no point scale factor.
	DefaultScale float64
}

func NewBoxEngine() *BoxEngine {
	return &BoxEngine{DefaultScale: 1}
}

func viewPropsOf(node *shadownode.ShadowNode) props.ViewProps {
	vp, ok := props.ViewPropsOf(node.Props())
	if !ok {
		return *props.DefaultViewProps()
	}
	return vp
}

func (e *BoxEngine) scale(c shadownode.LayoutConstraints) float64 {
	if c.PointScaleFactor > 0 {
		return c.PointScaleFactor
	}
	if e.DefaultScale > 0 {
		return e.DefaultScale
	}
	return 1
}

// roundToPixel snaps v to the device pixel grid.
func roundToPixel(v float64, scale float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*scale) / scale
}

// available is the inner box a node offers its children.
func available(vp props.ViewProps, c shadownode.LayoutConstraints) shadownode.Size {
	width := c.MaxSize.Width
	if vp.Width != nil {
		width = *vp.Width
	}
	height := c.MaxSize.Height
	if vp.Height != nil {
		height = *vp.Height
	}
	return shadownode.Size{
		Width:  math.Max(0, width-vp.Padding.Horizontal()),
		Height: math.Max(0, height-vp.Padding.Vertical()),
	}
}

// ChildConstraints places child idx below its already laid out siblings.
func (e *BoxEngine) ChildConstraints(parent *shadownode.ShadowNode, c shadownode.LayoutConstraints, idx int, laidOut []shadownode.LayoutMetrics) shadownode.LayoutConstraints {
	vp := viewPropsOf(parent)
	avail := available(vp, c)
	y := vp.Padding.Top
	for _, m := range laidOut {
		if m.DisplayType == shadownode.DisplayType_None {
			continue
		}
		y += m.Frame.Size.Height
	}
	maxHeight := math.Max(0, avail.Height-(y-vp.Padding.Top))
	if sp, ok := parent.Props().(*props.ScrollViewProps); ok && !sp.Horizontal {
		maxHeight = math.Inf(1)
	}
	return shadownode.LayoutConstraints{
		MaxSize:          shadownode.Size{Width: avail.Width, Height: maxHeight},
		Origin:           shadownode.Point{X: vp.Padding.Left, Y: y},
		LayoutDirection:  c.LayoutDirection,
		PointScaleFactor: c.PointScaleFactor,
	}
}

// Measure computes node's metrics; its children already carry their layout.
func (e *BoxEngine) Measure(node *shadownode.ShadowNode, c shadownode.LayoutConstraints) (shadownode.LayoutMetrics, error) {
	if err := c.Validate(); err != nil {
		return shadownode.LayoutMetrics{}, err
	}
	vp := viewPropsOf(node)
	scale := e.scale(c)
	direction := c.LayoutDirection
	if direction == "" {
		direction = shadownode.LayoutDirection_LTR
	}
	metrics := shadownode.LayoutMetrics{
		Frame:            shadownode.Rect{Origin: c.Origin},
		DisplayType:      shadownode.DisplayType_Flex,
		LayoutDirection:  direction,
		PointScaleFactor: scale,
	}
	if vp.Display == props.Display_None {
		metrics.DisplayType = shadownode.DisplayType_None
		return metrics, nil
	}
	content, err := e.contentSize(node, vp, c)
	if err != nil {
		return shadownode.LayoutMetrics{}, err
	}
	size := shadownode.Size{
		Width:  content.Width + vp.Padding.Horizontal(),
		Height: content.Height + vp.Padding.Vertical(),
	}
	if vp.Width != nil {
		size.Width = *vp.Width
	} else if !math.IsInf(c.MaxSize.Width, 1) {
		size.Width = c.MaxSize.Width
	}
	if vp.Height != nil {
		size.Height = *vp.Height
	}
	size = c.Clamp(size)
	if math.IsInf(size.Width, 0) || math.IsInf(size.Height, 0) {
		return shadownode.LayoutMetrics{}, fmt.Errorf("%s has unbounded size %+v", node, size)
	}
	metrics.Frame.Origin = shadownode.Point{X: roundToPixel(c.Origin.X, scale), Y: roundToPixel(c.Origin.Y, scale)}
	metrics.Frame.Size = shadownode.Size{Width: roundToPixel(size.Width, scale), Height: roundToPixel(size.Height, scale)}
	metrics.ContentInsets = shadownode.EdgeInsets{
		Top:    vp.Padding.Top,
		Right:  vp.Padding.Right,
		Bottom: vp.Padding.Bottom,
		Left:   vp.Padding.Left,
	}
	return metrics, nil
}

// contentSize is the size of what is inside the padding box.
func (e *BoxEngine) contentSize(node *shadownode.ShadowNode, vp props.ViewProps, c shadownode.LayoutConstraints) (shadownode.Size, error) {
	if m, ok := node.Descriptor().(shadownode.Measurer); ok {
		avail := available(vp, c)
		inner := shadownode.LayoutConstraints{
			MaxSize:          avail,
			LayoutDirection:  c.LayoutDirection,
			PointScaleFactor: c.PointScaleFactor,
		}
		return m.MeasureContent(node, inner)
	}
	var rtn shadownode.Size
	for _, child := range node.Children() {
		cm := child.LayoutMetrics()
		if cm.DisplayType == shadownode.DisplayType_None {
			continue
		}
		rtn.Width = math.Max(rtn.Width, cm.Frame.Origin.X-vp.Padding.Left+cm.Frame.Size.Width)
		rtn.Height = math.Max(rtn.Height, cm.Frame.Origin.Y-vp.Padding.Top+cm.Frame.Size.Height)
	}
	return rtn, nil
}
