// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package componentregistry maps component names and handles to their
// descriptors and builds shadow nodes from raw props.
package componentregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wavetermdev/shadowtree/pkg/components"
	"github.com/wavetermdev/shadowtree/pkg/props"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
	"github.com/wavetermdev/shadowtree/pkg/shadownode"
)

// FirstTag is the first tag handed out by a registry. Tag 0 is reserved for
// the mounting root parent.
const FirstTag int64 = 1

// Registry is filled once during startup, then sealed. Lookups and node
// creation are safe for concurrent use.
type Registry struct {
	lock     sync.RWMutex
	byName   map[string]shadownode.ComponentDescriptor
	byHandle map[int64]shadownode.ComponentDescriptor
	sealed   bool
	tags     *shadownode.TagAllocator
}

func New() *Registry {
	return &Registry{
		byName:   make(map[string]shadownode.ComponentDescriptor),
		byHandle: make(map[int64]shadownode.ComponentDescriptor),
		tags:     shadownode.NewTagAllocator(FirstTag),
	}
}

// NewDefault returns a sealed registry with the built-in components.
func NewDefault() *Registry {
	reg := New()
	for _, desc := range components.Defaults() {
		if err := reg.Register(desc); err != nil {
			panic(fmt.Sprintf("registering built-in component %s: %v", desc.Name(), err))
		}
	}
	reg.Seal()
	return reg
}

func (r *Registry) Register(desc shadownode.ComponentDescriptor) error {
	if desc == nil {
		return fmt.Errorf("cannot register nil component descriptor")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.sealed {
		return fmt.Errorf("cannot register component %q: registry is sealed", desc.Name())
	}
	if _, exists := r.byName[desc.Name()]; exists {
		return fmt.Errorf("component %q already registered", desc.Name())
	}
	if other, exists := r.byHandle[desc.Handle()]; exists {
		return fmt.Errorf("component %q: handle %d already used by %q", desc.Name(), desc.Handle(), other.Name())
	}
	r.byName[desc.Name()] = desc
	r.byHandle[desc.Handle()] = desc
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sealed = true
}

func (r *Registry) IsSealed() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.sealed
}

func (r *Registry) Lookup(name string) (shadownode.ComponentDescriptor, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	desc, ok := r.byName[name]
	if !ok {
		return nil, scerr.UnknownComponent(name)
	}
	return desc, nil
}

func (r *Registry) LookupHandle(handle int64) (shadownode.ComponentDescriptor, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	desc, ok := r.byHandle[handle]
	if !ok {
		return nil, scerr.UnknownComponentHandle(handle)
	}
	return desc, nil
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rtn := make([]string, 0, len(r.byName))
	for name := range r.byName {
		rtn = append(rtn, name)
	}
	sort.Strings(rtn)
	return rtn
}

func (r *Registry) Tags() *shadownode.TagAllocator {
	return r.tags
}

// CreateNode builds a node with a freshly allocated tag.
func (r *Registry) CreateNode(name string, raw props.RawProps, children []*shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
	return r.CreateNodeWithTag(name, 0, raw, children)
}

// CreateNodeWithTag builds a node with an explicit tag (0 allocates one).
// Explicit tags are reserved so the allocator never hands them out again.
func (r *Registry) CreateNodeWithTag(name string, tag int64, raw props.RawProps, children []*shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
	desc, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	p, err := desc.ParseProps(raw)
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		tag = r.tags.Next()
	} else if tag < 0 {
		return nil, fmt.Errorf("creating %s: invalid tag %d", name, tag)
	} else {
		r.tags.Reserve(tag)
	}
	return shadownode.Create(desc, tag, p, children)
}

// CloneNode clones node with raw prop overrides applied. Nil children keeps
// the existing child list.
func (r *Registry) CloneNode(node *shadownode.ShadowNode, raw props.RawProps, children []*shadownode.ShadowNode) (*shadownode.ShadowNode, error) {
	if node == nil {
		return nil, fmt.Errorf("cannot clone nil node")
	}
	desc, err := r.LookupHandle(node.ComponentHandle())
	if err != nil {
		return nil, err
	}
	frag := shadownode.Fragment{Children: children}
	if len(raw) > 0 {
		frag.Props, err = desc.CloneProps(node.Props(), raw)
		if err != nil {
			return nil, err
		}
	}
	return shadownode.Clone(node, frag)
}
