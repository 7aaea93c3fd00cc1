// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package scerr

import (
	"errors"
	"fmt"
)

const (
	Code_InvalidProps     = "invalidprops"
	Code_IllegalMutation  = "illegalmutation"
	Code_UnknownComponent = "unknowncomponent"
	Code_TreeInvalidated  = "treeinvalidated"
	Code_LayoutFailed     = "layoutfailed"
	Code_Reentrant        = "reentrantcommit"
	Code_Transform        = "transform"
	Code_DuplicateTag     = "duplicatetag"
)

// CodedError attaches a category code (and an optional sub code, usually the
// component name or surface id) to an error. The code survives wrapping and
// can be read back with GetErrorCode.
type CodedError struct {
	Code    string
	SubCode string
	Err     error
}

func (e CodedError) Error() string {
	return e.Err.Error()
}

func (e CodedError) Unwrap() error {
	return e.Err
}

func MakeCodedError(code string, err error) CodedError {
	return CodedError{Code: code, Err: err}
}

func MakeSubCodedError(code string, subCode string, err error) CodedError {
	return CodedError{Code: code, SubCode: subCode, Err: err}
}

// GetErrorCode returns the code of the outermost CodedError in err's chain, or "".
func GetErrorCode(err error) string {
	var coded CodedError
	if err != nil && errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

func GetErrorSubCode(err error) string {
	var coded CodedError
	if err != nil && errors.As(err, &coded) {
		return coded.SubCode
	}
	return ""
}

// HasCode reports whether err carries code anywhere in its tree, including
// the branches of joined errors.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if coded, ok := err.(CodedError); ok && coded.Code == code {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return HasCode(x.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	}
	return false
}

func Errorf(code string, format string, args ...any) error {
	return MakeCodedError(code, fmt.Errorf(format, args...))
}
