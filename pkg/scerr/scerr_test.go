// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package scerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("building tree: %w", InvalidProps("View", "opacity", errors.New("out of range")))
	if GetErrorCode(err) != Code_InvalidProps {
		t.Errorf("expected code %q, got %q", Code_InvalidProps, GetErrorCode(err))
	}
	if GetErrorSubCode(err) != "View" {
		t.Errorf("expected subcode View, got %q", GetErrorSubCode(err))
	}
	var ipe *InvalidPropsError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidPropsError in chain")
	}
	if ipe.Field != "opacity" {
		t.Errorf("expected field opacity, got %q", ipe.Field)
	}
}

func TestCodedError_NoCode(t *testing.T) {
	if GetErrorCode(nil) != "" {
		t.Errorf("nil error should have no code")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Errorf("plain error should have no code")
	}
}

func TestHasCode(t *testing.T) {
	inner := TreeInvalidated("s1")
	outer := MakeCodedError(Code_Transform, fmt.Errorf("commit: %w", inner))
	if !HasCode(outer, Code_TreeInvalidated) {
		t.Errorf("expected nested treeinvalidated code")
	}
	if GetErrorCode(outer) != Code_Transform {
		t.Errorf("outermost code should win, got %q", GetErrorCode(outer))
	}
	var tie *TreeInvalidatedError
	if !errors.As(outer, &tie) || tie.SurfaceId != "s1" {
		t.Errorf("expected TreeInvalidatedError for s1")
	}
}

func TestHasCode_JoinedErrors(t *testing.T) {
	joined := errors.Join(errors.New("first"), fmt.Errorf("second: %w", LayoutFailed(4, errors.New("no room"))))
	if !HasCode(joined, Code_LayoutFailed) {
		t.Errorf("expected layoutfailed inside joined error")
	}
	if HasCode(joined, Code_InvalidProps) {
		t.Errorf("unexpected invalidprops code")
	}
	if HasCode(nil, Code_LayoutFailed) {
		t.Errorf("nil error has no code")
	}
}
