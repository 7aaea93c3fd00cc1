// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package components holds the built-in component descriptors.
package components

import (
	"fmt"

	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

// Descriptor is a shadownode.ComponentDescriptor whose props are always of
// concrete type T.
type Descriptor[T props.Props] struct {
	name     string
	handle   int64
	defaults func() T
}

func MakeDescriptor[T props.Props](name string, handle int64, defaults func() T) Descriptor[T] {
	return Descriptor[T]{name: name, handle: handle, defaults: defaults}
}

func (d Descriptor[T]) Name() string {
	return d.name
}

func (d Descriptor[T]) Handle() int64 {
	return d.handle
}

func (d Descriptor[T]) DefaultProps() props.Props {
	return d.defaults()
}

// ParseProps builds fresh props from the defaults and raw input.
func (d Descriptor[T]) ParseProps(raw props.RawProps) (props.Props, error) {
	return props.Parse(d.name, d.defaults(), raw)
}

func (d Descriptor[T]) CloneProps(source props.Props, raw props.RawProps) (props.Props, error) {
	if source == nil {
		return d.ParseProps(raw)
	}
	if err := d.CheckProps(source); err != nil {
		return nil, err
	}
	return props.Derive(d.name, source, raw)
}

func (d Descriptor[T]) CheckProps(p props.Props) error {
	if _, ok := p.(T); !ok {
		return scerr.InvalidProps(d.name, "", fmt.Errorf("props type %T does not belong to %s", p, d.name))
	}
	return nil
}

// TypedProps returns the node's props as T.
func TypedProps[T props.Props](node *shadownode.ShadowNode) (T, bool) {
	tp, ok := node.Props().(T)
	return tp, ok
}
