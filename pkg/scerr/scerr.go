// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scerr holds the error taxonomy shared by the shadow tree packages.
// Every constructor returns the typed error wrapped in a CodedError so callers
// can match either on type (errors.As) or on category (GetErrorCode).
package scerr

import (
	"fmt"
)

type InvalidPropsError struct {
	Component string
	Field     string
	Err       error
}

func (e *InvalidPropsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid props for %s (field %q): %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid props for %s: %v", e.Component, e.Err)
}

func (e *InvalidPropsError) Unwrap() error {
	return e.Err
}

type IllegalMutationError struct {
	Tag int64
	Op  string
}

func (e *IllegalMutationError) Error() string {
	return fmt.Sprintf("illegal mutation %q on sealed node tag=%d", e.Op, e.Tag)
}

type UnknownComponentError struct {
	Name   string
	Handle int64
}

func (e *UnknownComponentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown component %q", e.Name)
	}
	return fmt.Sprintf("unknown component handle %d", e.Handle)
}

type TreeInvalidatedError struct {
	SurfaceId string
}

func (e *TreeInvalidatedError) Error() string {
	return fmt.Sprintf("shadow tree %s has been invalidated", e.SurfaceId)
}

type LayoutError struct {
	Tag int64
	Err error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout failed at tag=%d: %v", e.Tag, e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// DuplicateTagError reports a tree in which two nodes share a tag.
type DuplicateTagError struct {
	Tag       int64
	ParentTag int64 // parent of the second occurrence, 0 for the root
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("tag=%d appears more than once (again under tag=%d)", e.Tag, e.ParentTag)
}

func InvalidProps(component string, field string, err error) error {
	return MakeSubCodedError(Code_InvalidProps, component, &InvalidPropsError{Component: component, Field: field, Err: err})
}

func IllegalMutation(tag int64, op string) error {
	return MakeCodedError(Code_IllegalMutation, &IllegalMutationError{Tag: tag, Op: op})
}

func UnknownComponent(name string) error {
	return MakeSubCodedError(Code_UnknownComponent, name, &UnknownComponentError{Name: name})
}

func UnknownComponentHandle(handle int64) error {
	return MakeCodedError(Code_UnknownComponent, &UnknownComponentError{Handle: handle})
}

func TreeInvalidated(surfaceId string) error {
	return MakeSubCodedError(Code_TreeInvalidated, surfaceId, &TreeInvalidatedError{SurfaceId: surfaceId})
}

func LayoutFailed(tag int64, err error) error {
	return MakeCodedError(Code_LayoutFailed, &LayoutError{Tag: tag, Err: err})
}

func DuplicateTag(tag int64, parentTag int64) error {
	return MakeCodedError(Code_DuplicateTag, &DuplicateTagError{Tag: tag, ParentTag: parentTag})
}
