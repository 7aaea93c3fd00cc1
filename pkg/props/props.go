// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package props is the value model for shadow nodes. Props values are
// immutable once constructed: every change produces a new value through
// Derive, which copies the source and applies raw overrides on top.
package props

import (
	"fmt"
	"reflect"
)

// Props is implemented by pointers to the props structs in this package
// (and by structs embedding them). Values are shared read-only by any number
// of shadow nodes.
type Props interface {
	Base() BaseProps
	setRevision(rev int64)
}

type BaseProps struct {
	NativeId string `json:"nativeID,omitempty"`
	Revision int64  `json:"-"`
}

func (b BaseProps) Base() BaseProps {
	return b
}

func (b *BaseProps) setRevision(rev int64) {
	b.Revision = rev
}

func Revision(p Props) int64 {
	if p == nil {
		return 0
	}
	return p.Base().Revision
}

// copyProps makes a shallow copy of a props value. Nested pointers and slices
// are shared, which is fine because nothing ever writes through them.
func copyProps(p Props) (Props, error) {
	rval := reflect.ValueOf(p)
	if rval.Kind() != reflect.Pointer || rval.IsNil() {
		return nil, fmt.Errorf("props must be a non-nil pointer, got %T", p)
	}
	elem := rval.Elem()
	newVal := reflect.New(elem.Type())
	newVal.Elem().Set(elem)
	rtn, ok := newVal.Interface().(Props)
	if !ok {
		return nil, fmt.Errorf("copied props %T does not implement Props", p)
	}
	return rtn, nil
}

// WithRevision returns a copy of p carrying rev. p itself is untouched.
func WithRevision(p Props, rev int64) (Props, error) {
	rtn, err := copyProps(p)
	if err != nil {
		return nil, err
	}
	rtn.setRevision(rev)
	return rtn, nil
}

// Equal is value equality that ignores Revision, so a clone rebuilt from
// identical input compares equal to its source.
func Equal(a, b Props) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	ca, errA := WithRevision(a, 0)
	cb, errB := WithRevision(b, 0)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(ca, cb)
}
