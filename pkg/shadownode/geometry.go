// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadownode

import (
	"fmt"
	"math"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Rect struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
}

func (r Rect) String() string {
	return fmt.Sprintf("{%g,%g %gx%g}", r.Origin.X, r.Origin.Y, r.Size.Width, r.Size.Height)
}

type EdgeInsets struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

const (
	DisplayType_Flex = "flex"
	DisplayType_None = "none"
)

const (
	LayoutDirection_LTR = "ltr"
	LayoutDirection_RTL = "rtl"
)

// LayoutMetrics is the output of layout for one node. It is carried by the
// node and its view but is not part of the node's identity.
type LayoutMetrics struct {
	Frame            Rect       `json:"frame"`
	ContentInsets    EdgeInsets `json:"contentinsets"`
	DisplayType      string     `json:"displaytype,omitempty"`
	LayoutDirection  string     `json:"layoutdirection,omitempty"`
	PointScaleFactor float64    `json:"pointscalefactor,omitempty"`
}

// LayoutConstraints is what the parent imposes on a child. Origin is the
// position the parent assigned, in the parent's coordinate space.
type LayoutConstraints struct {
	MinSize          Size    `json:"minsize"`
	MaxSize          Size    `json:"maxsize"`
	Origin           Point   `json:"origin"`
	LayoutDirection  string  `json:"layoutdirection,omitempty"`
	PointScaleFactor float64 `json:"pointscalefactor,omitempty"`
}

func (c LayoutConstraints) Validate() error {
	for _, v := range []float64{c.MinSize.Width, c.MinSize.Height, c.MaxSize.Width, c.MaxSize.Height} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("invalid constraint size value %v", v)
		}
	}
	if c.MinSize.Width > c.MaxSize.Width || c.MinSize.Height > c.MaxSize.Height {
		return fmt.Errorf("min size %+v exceeds max size %+v", c.MinSize, c.MaxSize)
	}
	return nil
}

// Clamp forces s into [MinSize, MaxSize].
func (c LayoutConstraints) Clamp(s Size) Size {
	return Size{
		Width:  math.Min(math.Max(s.Width, c.MinSize.Width), c.MaxSize.Width),
		Height: math.Min(math.Max(s.Height, c.MinSize.Height), c.MaxSize.Height),
	}
}
