// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package statecodec converts component state to and from the untyped form
// the host platform speaks. Which codec is used is decided at composition
// time (settings "state:codec").
package statecodec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/wavetermdev/shadowtree/pkg/props"
)

const (
	CodecName_JSON = "json"
	CodecName_Raw  = "raw"
)

type Codec interface {
	Name() string
	// Encode renders state data as a raw value.
	Encode(data any) (props.RawValue, error)
	// Decode turns a raw payload into new state data of the same type as
	// prev (prev itself is never written). A nil prev returns the payload as
	// plain Go values.
	Decode(payload props.RawValue, prev any) (any, error)
}

func ByName(name string) (Codec, error) {
	switch name {
	case "", CodecName_JSON:
		return JSONCodec{}, nil
	case CodecName_Raw:
		return RawCodec{}, nil
	}
	return nil, fmt.Errorf("unknown state codec %q", name)
}

// JSONCodec round-trips through encoding/json, honoring json tags.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return CodecName_JSON
}

func (JSONCodec) Encode(data any) (props.RawValue, error) {
	barr, err := json.Marshal(data)
	if err != nil {
		return props.Null(), fmt.Errorf("encoding state: %w", err)
	}
	var plain any
	if err := json.Unmarshal(barr, &plain); err != nil {
		return props.Null(), fmt.Errorf("encoding state: %w", err)
	}
	return props.FromAny(plain)
}

func (JSONCodec) Decode(payload props.RawValue, prev any) (any, error) {
	if prev == nil {
		return payload.ToAny(), nil
	}
	barr, err := json.Marshal(payload.ToAny())
	if err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	out := reflect.New(reflect.TypeOf(prev))
	if err := json.Unmarshal(barr, out.Interface()); err != nil {
		return nil, fmt.Errorf("decoding state into %T: %w", prev, err)
	}
	return out.Elem().Interface(), nil
}

// RawCodec maps structs directly with mapstructure (mapstructure tags), no
// byte encoding in between.
type RawCodec struct{}

func (RawCodec) Name() string {
	return CodecName_Raw
}

func (RawCodec) Encode(data any) (props.RawValue, error) {
	if data == nil {
		return props.Null(), nil
	}
	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return props.Null(), nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return props.FromAny(val.Interface())
	}
	var m map[string]any
	if err := mapstructure.Decode(val.Interface(), &m); err != nil {
		return props.Null(), fmt.Errorf("encoding state: %w", err)
	}
	return props.FromAny(flattenStructs(m))
}

// flattenStructs converts nested structs left in place by mapstructure into maps.
func flattenStructs(m map[string]any) map[string]any {
	for key, val := range m {
		rv := reflect.ValueOf(val)
		if rv.Kind() != reflect.Struct {
			continue
		}
		var sub map[string]any
		if err := mapstructure.Decode(val, &sub); err == nil {
			m[key] = flattenStructs(sub)
		}
	}
	return m
}

func (RawCodec) Decode(payload props.RawValue, prev any) (any, error) {
	if prev == nil {
		return payload.ToAny(), nil
	}
	out := reflect.New(reflect.TypeOf(prev))
	dconfig := &mapstructure.DecoderConfig{
		Result:           out.Interface(),
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(dconfig)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(payload.ToAny()); err != nil {
		return nil, fmt.Errorf("decoding state into %T: %w", prev, err)
	}
	return out.Elem().Interface(), nil
}
