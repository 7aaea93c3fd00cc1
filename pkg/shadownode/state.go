// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package shadownode

import "reflect"

// State is opaque component data that lives beside props (scroll offsets,
// measured content, ...). Like props it is immutable; an update is a new
// State with a higher revision.
type State struct {
	revision int64
	data     any
}

func NewState(data any) *State {
	return &State{revision: 1, data: data}
}

func (s *State) Revision() int64 {
	if s == nil {
		return 0
	}
	return s.revision
}

func (s *State) Data() any {
	if s == nil {
		return nil
	}
	return s.data
}

// Next builds the successor state carrying data.
func (s *State) Next(data any) *State {
	return &State{revision: s.Revision() + 1, data: data}
}

func StateEqual(a, b *State) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.revision == b.revision && reflect.DeepEqual(a.data, b.data)
}
