// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package props

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type RawKind int

const (
	RawKind_Null RawKind = iota
	RawKind_String
	RawKind_Number
	RawKind_Bool
	RawKind_Map
	RawKind_List
)

func (k RawKind) String() string {
	switch k {
	case RawKind_Null:
		return "null"
	case RawKind_String:
		return "string"
	case RawKind_Number:
		return "number"
	case RawKind_Bool:
		return "bool"
	case RawKind_Map:
		return "map"
	case RawKind_List:
		return "list"
	}
	return "unknown"
}

// RawValue is untyped prop input as it arrives from the application side
// (the equivalent of a JSON value). Only descriptors parsing props ever look
// inside one. The zero value is null.
type RawValue struct {
	kind RawKind
	str  string
	num  float64
	bval bool
	m    map[string]RawValue
	list []RawValue
}

// RawProps is a bag of raw prop values keyed by prop name.
type RawProps map[string]RawValue

func Null() RawValue { return RawValue{} }
func String(s string) RawValue { return RawValue{kind: RawKind_String, str: s} }
func Number(f float64) RawValue { return RawValue{kind: RawKind_Number, num: f} }
func Bool(b bool) RawValue { return RawValue{kind: RawKind_Bool, bval: b} }
func Map(m map[string]RawValue) RawValue { return RawValue{kind: RawKind_Map, m: m} }
func List(list ...RawValue) RawValue { return RawValue{kind: RawKind_List, list: list} }
func (v RawValue) Kind() RawKind { return v.kind }
func (v RawValue) IsNull() bool { return v.kind == RawKind_Null }
func (v RawValue) AsString() (string, bool) { return v.str, v.kind == RawKind_String }
func (v RawValue) AsNumber() (float64, bool) { return v.num, v.kind == RawKind_Number }
func (v RawValue) AsBool() (bool, bool) { return v.bval, v.kind == RawKind_Bool }

func (v RawValue) AsMap() (map[string]RawValue, bool) {
	return v.m, v.kind == RawKind_Map
}

func (v RawValue) AsList() ([]RawValue, bool) {
	return v.list, v.kind == RawKind_List
}

// FromAny converts decoded JSON/YAML style Go values into a RawValue.
func FromAny(val any) (RawValue, error) {
	switch tv := val.(type) {
	case nil:
		return Null(), nil
	case RawValue:
		return tv, nil
	case string:
		return String(tv), nil
	case bool:
		return Bool(tv), nil
	case map[string]any:
		m := make(map[string]RawValue, len(tv))
		for k, elem := range tv {
			rv, err := FromAny(elem)
			if err != nil {
				return Null(), fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = rv
		}
		return Map(m), nil
	case map[any]any:
		m := make(map[string]RawValue, len(tv))
		for k, elem := range tv {
			ks, ok := k.(string)
			if !ok {
				return Null(), fmt.Errorf("non-string map key %v (%T)", k, k)
			}
			rv, err := FromAny(elem)
			if err != nil {
				return Null(), fmt.Errorf("key %q: %w", ks, err)
			}
			m[ks] = rv
		}
		return Map(m), nil
	case []any:
		list := make([]RawValue, len(tv))
		for i, elem := range tv {
			rv, err := FromAny(elem)
			if err != nil {
				return Null(), fmt.Errorf("index %d: %w", i, err)
			}
			list[i] = rv
		}
		return List(list...), nil
	}
	if f, ok := toFloat64(val); ok {
		return Number(f), nil
	}
	return Null(), fmt.Errorf("unsupported raw value type %T", val)
}

// MakeRawProps converts a plain map into RawProps.
func MakeRawProps(m map[string]any) (RawProps, error) {
	rtn := make(RawProps, len(m))
	for k, v := range m {
		rv, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", k, err)
		}
		rtn[k] = rv
	}
	return rtn, nil
}

// MustRawProps is MakeRawProps for literals in tests and examples.
func MustRawProps(m map[string]any) RawProps {
	rtn, err := MakeRawProps(m)
	if err != nil {
		panic(err)
	}
	return rtn
}

// ToAny converts back to plain Go values (float64 for numbers).
func (v RawValue) ToAny() any {
	switch v.kind {
	case RawKind_String:
		return v.str
	case RawKind_Number:
		return v.num
	case RawKind_Bool:
		return v.bval
	case RawKind_Map:
		m := make(map[string]any, len(v.m))
		for k, elem := range v.m {
			m[k] = elem.ToAny()
		}
		return m
	case RawKind_List:
		list := make([]any, len(v.list))
		for i, elem := range v.list {
			list[i] = elem.ToAny()
		}
		return list
	}
	return nil
}

func (rp RawProps) ToMap() map[string]any {
	m := make(map[string]any, len(rp))
	for k, v := range rp {
		m[k] = v.ToAny()
	}
	return m
}

func (v RawValue) String() string {
	switch v.kind {
	case RawKind_String:
		return strconv.Quote(v.str)
	case RawKind_Number:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case RawKind_Bool:
		return strconv.FormatBool(v.bval)
	case RawKind_Map:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + v.m[k].String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	case RawKind_List:
		parts := make([]string, len(v.list))
		for i, elem := range v.list {
			parts[i] = elem.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "null"
}

func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
