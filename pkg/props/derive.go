// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package props

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/wavetermdev/shadowtree/pkg/scerr"
)

var colorType = reflect.TypeOf(Color(0))
var edgesType = reflect.TypeOf(Edges{})

var validateOnce sync.Once
var propsValidate *validator.Validate

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		propsValidate = validator.New()
		// report prop names as the application spells them
		propsValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
	return propsValidate
}

func rawDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case colorType:
		switch from.Kind() {
		case reflect.String:
			return ParseColor(data.(string))
		case reflect.Float64:
			return Color(uint32(data.(float64))), nil
		}
	case edgesType:
		if from.Kind() == reflect.Float64 {
			return UniformEdges(data.(float64)), nil
		}
	}
	return data, nil
}

// decodeRaw applies raw on top of out using "json" tags. Embedded props
// structs are squashed so the application sees one flat namespace.
func decodeRaw(out any, raw RawProps) error {
	dconfig := &mapstructure.DecoderConfig{
		Result:     out,
		TagName:    "json",
		Squash:     true,
		ZeroFields: true,
		DecodeHook: rawDecodeHook,
	}
	decoder, err := mapstructure.NewDecoder(dconfig)
	if err != nil {
		return err
	}
	return decoder.Decode(raw.ToMap())
}

// Validate runs the struct validation tags of a props value.
func Validate(component string, p Props) error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return scerr.InvalidProps(component, fe.Field(), fmt.Errorf("failed %q check (value %v)", fe.Tag(), fe.Value()))
	}
	return scerr.InvalidProps(component, "", err)
}

// Derive builds a new props value from source with raw overrides applied.
// The result has source's revision + 1 and has passed validation; source is
// never modified.
func Derive(component string, source Props, raw RawProps) (Props, error) {
	if source == nil {
		return nil, scerr.InvalidProps(component, "", fmt.Errorf("no source props"))
	}
	rtn, err := copyProps(source)
	if err != nil {
		return nil, scerr.InvalidProps(component, "", err)
	}
	if len(raw) > 0 {
		err = decodeRaw(rtn, raw)
		if err != nil {
			return nil, scerr.InvalidProps(component, "", err)
		}
	}
	rtn.setRevision(source.Base().Revision + 1)
	err = Validate(component, rtn)
	if err != nil {
		return nil, err
	}
	return rtn, nil
}

// Parse builds fresh props (revision 0) from defaults plus raw input.
func Parse(component string, defaults Props, raw RawProps) (Props, error) {
	rtn, err := Derive(component, defaults, raw)
	if err != nil {
		return nil, err
	}
	rtn.setRevision(0)
	return rtn, nil
}
