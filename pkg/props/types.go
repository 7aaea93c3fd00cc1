// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package props

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is packed 0xRRGGBBAA.
type Color uint32

var namedColors = map[string]Color{
	"transparent": 0x00000000,
	"black":       0x000000ff,
	"white":       0xffffffff,
	"red":         0xff0000ff,
	"green":       0x008000ff,
	"blue":        0x0000ffff,
	"yellow":      0xffff00ff,
	"gray":        0x808080ff,
	"grey":        0x808080ff,
}

func RGBA(r, g, b, a uint8) Color {
	return Color(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a))
}

func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	hex := s[1:]
	switch len(hex) {
	case 3, 4:
		var expanded strings.Builder
		for _, ch := range hex {
			expanded.WriteRune(ch)
			expanded.WriteRune(ch)
		}
		hex = expanded.String()
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color(v), nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%08x", uint32(c))
}

func (c Color) Alpha() uint8 {
	return uint8(c & 0xff)
}

type Edges struct {
	Top    float64 `json:"top,omitempty" validate:"gte=0"`
	Right  float64 `json:"right,omitempty" validate:"gte=0"`
	Bottom float64 `json:"bottom,omitempty" validate:"gte=0"`
	Left   float64 `json:"left,omitempty" validate:"gte=0"`
}

func UniformEdges(v float64) Edges {
	return Edges{Top: v, Right: v, Bottom: v, Left: v}
}

func (e Edges) Horizontal() float64 {
	return e.Left + e.Right
}

func (e Edges) Vertical() float64 {
	return e.Top + e.Bottom
}

const (
	Display_Flex = "flex"
	Display_None = "none"
)

// ViewProps is the base for every visible component.
type ViewProps struct {
	BaseProps
	TestId          string   `json:"testID,omitempty"`
	Width           *float64 `json:"width,omitempty" validate:"omitempty,gte=0"`
	Height          *float64 `json:"height,omitempty" validate:"omitempty,gte=0"`
	Padding         Edges    `json:"padding,omitempty"`
	BackgroundColor *Color   `json:"backgroundColor,omitempty"`
	Opacity         float64  `json:"opacity" validate:"gte=0,lte=1"`
	Display         string   `json:"display,omitempty" validate:"omitempty,oneof=flex none"`
	ZIndex          int      `json:"zIndex,omitempty"`
}

func DefaultViewProps() *ViewProps {
	return &ViewProps{Opacity: 1, Display: Display_Flex}
}

// BaseTextProps are the text attributes shared by text-bearing components.
type BaseTextProps struct {
	Color         *Color  `json:"color,omitempty"`
	FontSize      float64 `json:"fontSize" validate:"gt=0"`
	FontWeight    string  `json:"fontWeight,omitempty" validate:"omitempty,oneof=normal bold 100 200 300 400 500 600 700 800 900"`
	LineHeight    float64 `json:"lineHeight,omitempty" validate:"gte=0"`
	LetterSpacing float64 `json:"letterSpacing,omitempty"`
}

func DefaultBaseTextProps() BaseTextProps {
	return BaseTextProps{FontSize: 14, FontWeight: "normal"}
}

// EffectiveLineHeight falls back to 1.2 * font size.
func (t BaseTextProps) EffectiveLineHeight() float64 {
	if t.LineHeight > 0 {
		return t.LineHeight
	}
	return t.FontSize * 1.2
}

// ParagraphProps is both a view and a text attribute holder.
type ParagraphProps struct {
	ViewProps
	BaseTextProps
	Text          string `json:"text"`
	NumberOfLines int    `json:"numberOfLines,omitempty" validate:"gte=0"`
}

func DefaultParagraphProps() *ParagraphProps {
	return &ParagraphProps{ViewProps: *DefaultViewProps(), BaseTextProps: DefaultBaseTextProps()}
}

type ScrollViewProps struct {
	ViewProps
	Horizontal    bool  `json:"horizontal,omitempty"`
	ScrollEnabled bool  `json:"scrollEnabled"`
	ContentInset  Edges `json:"contentInset,omitempty"`
}

func DefaultScrollViewProps() *ScrollViewProps {
	return &ScrollViewProps{ViewProps: *DefaultViewProps(), ScrollEnabled: true}
}

type RootProps struct {
	ViewProps
}

func DefaultRootProps() *RootProps {
	return &RootProps{ViewProps: *DefaultViewProps()}
}

// ViewPropsOf extracts the view part of any props value that has one.
func ViewPropsOf(p Props) (ViewProps, bool) {
	switch tp := p.(type) {
	case *ViewProps:
		return *tp, true
	case *ParagraphProps:
		return tp.ViewProps, true
	case *ScrollViewProps:
		return tp.ViewProps, true
	case *RootProps:
		return tp.ViewProps, true
	case interface{ GetViewProps() ViewProps }:
		return tp.GetViewProps(), true
	}
	return ViewProps{}, false
}

func (v ViewProps) GetViewProps() ViewProps {
	return v
}

func Float(f float64) *float64 {
	return &f
}
