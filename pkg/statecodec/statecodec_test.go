// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package statecodec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wavetermdev/shadowtree/pkg/props"
)

type offset struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

type scrollState struct {
	Offset offset `json:"contentOffset" mapstructure:"contentOffset"`
	Zoom   float64 `json:"zoom" mapstructure:"zoom"`
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, RawCodec{}} {
		orig := scrollState{Offset: offset{X: 1, Y: 42}, Zoom: 2}
		raw, err := codec.Encode(orig)
		if err != nil {
			t.Fatalf("%s encode: %v", codec.Name(), err)
		}
		m, ok := raw.AsMap()
		if !ok {
			t.Fatalf("%s: expected map payload, got %s", codec.Name(), raw.Kind())
		}
		if _, ok := m["contentOffset"]; !ok {
			t.Errorf("%s: expected contentOffset key, got %v", codec.Name(), raw)
		}
		decoded, err := codec.Decode(raw, scrollState{})
		if err != nil {
			t.Fatalf("%s decode: %v", codec.Name(), err)
		}
		if diff := cmp.Diff(orig, decoded); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", codec.Name(), diff)
		}
	}
}

func TestCodecs_DecodePlatformUpdate(t *testing.T) {
	payload := props.Map(map[string]props.RawValue{
		"contentOffset": props.Map(map[string]props.RawValue{"x": props.Number(0), "y": props.Number(120)}),
	})
	for _, codec := range []Codec{JSONCodec{}, RawCodec{}} {
		decoded, err := codec.Decode(payload, scrollState{Zoom: 3})
		if err != nil {
			t.Fatalf("%s decode: %v", codec.Name(), err)
		}
		st := decoded.(scrollState)
		if st.Offset.Y != 120 {
			t.Errorf("%s: expected y=120, got %+v", codec.Name(), st)
		}
		if st.Zoom != 0 {
			t.Errorf("%s: decode should replace, not merge (zoom=%v)", codec.Name(), st.Zoom)
		}
	}
}

func TestCodecs_NilPrev(t *testing.T) {
	decoded, err := JSONCodec{}.Decode(props.String("hi"), nil)
	if err != nil || decoded != "hi" {
		t.Errorf("expected plain value, got %v %v", decoded, err)
	}
}

func TestByName(t *testing.T) {
	if c, err := ByName(""); err != nil || c.Name() != CodecName_JSON {
		t.Errorf("empty name should pick json, got %v %v", c, err)
	}
	if c, err := ByName("raw"); err != nil || c.Name() != CodecName_Raw {
		t.Errorf("expected raw codec, got %v %v", c, err)
	}
	if _, err := ByName("protobuf"); err == nil {
		t.Errorf("expected error for unknown codec")
	}
}
