// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package components

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

const (
	Name_RootView   = "RootView"
	Name_View       = "View"
	Name_Paragraph  = "Paragraph"
	Name_ScrollView = "ScrollView"
)

const (
	Handle_RootView int64 = iota + 1
	Handle_View
	Handle_Paragraph
	Handle_ScrollView
)

// GlyphWidthRatio approximates the advance of one glyph as a fraction of the
// font size. Good enough for a layout stand-in, not for real text shaping.
const GlyphWidthRatio = 0.5

type RootViewDescriptor struct {
	Descriptor[*props.RootProps]
}

type ViewDescriptor struct {
	Descriptor[*props.ViewProps]
}

type ParagraphDescriptor struct {
	Descriptor[*props.ParagraphProps]
}

type ScrollViewDescriptor struct {
	Descriptor[*props.ScrollViewProps]
}

type ContentOffset struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// ScrollViewState is the state carried by ScrollView nodes.
type ScrollViewState struct {
	ContentOffset ContentOffset `json:"contentOffset" mapstructure:"contentOffset"`
}

func NewRootViewDescriptor() RootViewDescriptor {
	return RootViewDescriptor{MakeDescriptor(Name_RootView, Handle_RootView, props.DefaultRootProps)}
}

func NewViewDescriptor() ViewDescriptor {
	return ViewDescriptor{MakeDescriptor(Name_View, Handle_View, props.DefaultViewProps)}
}

func NewParagraphDescriptor() ParagraphDescriptor {
	return ParagraphDescriptor{MakeDescriptor(Name_Paragraph, Handle_Paragraph, props.DefaultParagraphProps)}
}

func NewScrollViewDescriptor() ScrollViewDescriptor {
	return ScrollViewDescriptor{MakeDescriptor(Name_ScrollView, Handle_ScrollView, props.DefaultScrollViewProps)}
}

// MeasureContent lays text out greedily by words inside the available width.
// Every glyph is GlyphWidthRatio * fontSize wide plus letter spacing.
func (d ParagraphDescriptor) MeasureContent(node *shadownode.ShadowNode, constraints shadownode.LayoutConstraints) (shadownode.Size, error) {
	pp, ok := TypedProps[*props.ParagraphProps](node)
	if !ok {
		return shadownode.Size{}, d.CheckProps(node.Props())
	}
	glyph := pp.FontSize*GlyphWidthRatio + pp.LetterSpacing
	maxWidth := constraints.MaxSize.Width
	lines := wrapText(pp.Text, glyph, maxWidth)
	if pp.NumberOfLines > 0 && len(lines) > pp.NumberOfLines {
		lines = lines[:pp.NumberOfLines]
	}
	var width float64
	for _, line := range lines {
		width = math.Max(width, float64(utf8.RuneCountInString(line))*glyph)
	}
	if !math.IsInf(maxWidth, 1) {
		width = math.Min(width, maxWidth)
	}
	return shadownode.Size{Width: width, Height: float64(len(lines)) * pp.EffectiveLineHeight()}, nil
}

func wrapText(text string, glyph float64, maxWidth float64) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := words[0]
		for _, word := range words[1:] {
			candidate := cur + " " + word
			if glyph > 0 && float64(utf8.RuneCountInString(candidate))*glyph > maxWidth {
				lines = append(lines, cur)
				cur = word
				continue
			}
			cur = candidate
		}
		lines = append(lines, cur)
	}
	return lines
}

func (d ScrollViewDescriptor) InitialState(p props.Props) any {
	return ScrollViewState{}
}

// ScrollViewStateOf returns the scroll state of node (zero if it has none).
func ScrollViewStateOf(node *shadownode.ShadowNode) ScrollViewState {
	if st, ok := node.State().Data().(ScrollViewState); ok {
		return st
	}
	return ScrollViewState{}
}

// Defaults returns every built-in descriptor.
func Defaults() []shadownode.ComponentDescriptor {
	return []shadownode.ComponentDescriptor{
		NewRootViewDescriptor(),
		NewViewDescriptor(),
		NewParagraphDescriptor(),
		NewScrollViewDescriptor(),
	}
}
