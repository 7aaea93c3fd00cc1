// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scconfig holds the settings for the shadowtree tool: defaults,
// then a settings.json file, then SHADOWTREE_* environment overrides.
package scconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/wavetermdev/shadowtree/pkg/statecodec"
)

const SettingsFile = "settings.json"
const EnvPrefix = "SHADOWTREE_"

const (
	ConfigKey_LogVerbose       = "log:verbose"
	ConfigKey_StateCodec       = "state:codec"
	ConfigKey_MountCoalesce    = "mount:coalesce"
	ConfigKey_RootWidth        = "root:width"
	ConfigKey_RootHeight       = "root:height"
	ConfigKey_RootPointScale   = "root:pointscale"
	ConfigKey_TelemetryEnabled = "telemetry:enabled"
	ConfigKey_TelemetryDb      = "telemetry:db"
	ConfigKey_StressSurfaces   = "stress:surfaces"
	ConfigKey_StressCommits    = "stress:commits"
)

type SettingsType struct {
	LogVerbose       bool    `json:"log:verbose,omitempty"`
	StateCodec       string  `json:"state:codec,omitempty"`
	MountCoalesce    bool    `json:"mount:coalesce,omitempty"`
	RootWidth        float64 `json:"root:width,omitempty"`
	RootHeight       float64 `json:"root:height,omitempty"`
	RootPointScale   float64 `json:"root:pointscale,omitempty"`
	TelemetryEnabled bool    `json:"telemetry:enabled,omitempty"`
	TelemetryDb      string  `json:"telemetry:db,omitempty"`
	StressSurfaces   int     `json:"stress:surfaces,omitempty"`
	StressCommits    int     `json:"stress:commits,omitempty"`
}

func DefaultSettings() SettingsType {
	return SettingsType{
		StateCodec:     statecodec.CodecName_JSON,
		RootWidth:      390,
		RootHeight:     844,
		RootPointScale: 1,
		TelemetryDb:    "shadowtree-telemetry.db",
		StressSurfaces: 8,
		StressCommits:  200,
	}
}

// Validate rejects settings the tool cannot run with.
func (s SettingsType) Validate() error {
	if _, err := statecodec.ByName(s.StateCodec); err != nil {
		return fmt.Errorf("%s: %w", ConfigKey_StateCodec, err)
	}
	if s.RootWidth <= 0 || s.RootHeight <= 0 {
		return fmt.Errorf("%s/%s must be positive (got %v x %v)", ConfigKey_RootWidth, ConfigKey_RootHeight, s.RootWidth, s.RootHeight)
	}
	if s.RootPointScale <= 0 {
		return fmt.Errorf("%s must be positive", ConfigKey_RootPointScale)
	}
	if s.StressSurfaces <= 0 || s.StressCommits <= 0 {
		return fmt.Errorf("%s and %s must be positive", ConfigKey_StressSurfaces, ConfigKey_StressCommits)
	}
	return nil
}

// ReadSettingsFile overlays the file at path on base. A missing file is not
// an error.
func ReadSettingsFile(path string, base SettingsType) (SettingsType, error) {
	barr, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("reading %s: %w", path, err)
	}
	rtn := base
	if err := json.Unmarshal(barr, &rtn); err != nil {
		return base, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rtn, nil
}

// EnvName maps a config key to its environment variable,
// "root:width" -> SHADOWTREE_ROOT_WIDTH.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ":", "_"))
}

// ApplyEnv overlays SHADOWTREE_* variables found through lookup.
func ApplyEnv(s SettingsType, lookup func(string) (string, bool)) (SettingsType, error) {
	var errs []error
	setBool := func(key string, dst *bool) {
		if val, ok := lookup(EnvName(key)); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", EnvName(key), err))
				return
			}
			*dst = b
		}
	}
	setFloat := func(key string, dst *float64) {
		if val, ok := lookup(EnvName(key)); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", EnvName(key), err))
				return
			}
			*dst = f
		}
	}
	setInt := func(key string, dst *int) {
		if val, ok := lookup(EnvName(key)); ok {
			i, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", EnvName(key), err))
				return
			}
			*dst = i
		}
	}
	setString := func(key string, dst *string) {
		if val, ok := lookup(EnvName(key)); ok {
			*dst = val
		}
	}
	setBool(ConfigKey_LogVerbose, &s.LogVerbose)
	setString(ConfigKey_StateCodec, &s.StateCodec)
	setBool(ConfigKey_MountCoalesce, &s.MountCoalesce)
	setFloat(ConfigKey_RootWidth, &s.RootWidth)
	setFloat(ConfigKey_RootHeight, &s.RootHeight)
	setFloat(ConfigKey_RootPointScale, &s.RootPointScale)
	setBool(ConfigKey_TelemetryEnabled, &s.TelemetryEnabled)
	setString(ConfigKey_TelemetryDb, &s.TelemetryDb)
	setInt(ConfigKey_StressSurfaces, &s.StressSurfaces)
	setInt(ConfigKey_StressCommits, &s.StressCommits)
	return s, errors.Join(errs...)
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, name := range files {
		if _, err := os.Stat(name); err == nil {
			existing = append(existing, name)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load resolves settings from defaults, the settings file at path (may be
// empty) and the process environment.
func Load(path string) (SettingsType, error) {
	settings := DefaultSettings()
	var err error
	if path != "" {
		settings, err = ReadSettingsFile(path, settings)
		if err != nil {
			return settings, err
		}
	}
	settings, err = ApplyEnv(settings, os.LookupEnv)
	if err != nil {
		return settings, err
	}
	return settings, settings.Validate()
}
