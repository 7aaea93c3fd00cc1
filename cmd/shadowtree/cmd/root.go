// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/shadowtree/pkg/mounting"
	"github.com/wavetermdev/shadowtree/pkg/panichandler"
	"github.com/wavetermdev/shadowtree/pkg/scconfig"
	"github.com/wavetermdev/shadowtree/pkg/scenario"
	"github.com/wavetermdev/shadowtree/pkg/telemetrystore"
	"github.com/wavetermdev/shadowtree/pkg/util/logutil"
)

var ShadowtreeVersion = "0.1.0"
var BuildTime = "0"

var (
	rootCmd = &cobra.Command{
		Use:               "shadowtree",
		Short:             "Run scene graph scenarios through the shadow tree reconciler",
		Long:              `shadowtree builds element trees from YAML scenarios, commits them, diffs every revision and mounts the resulting transactions into an in-memory view tree, checking each step.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}
)

var WrappedStdout io.Writer = os.Stdout
var WrappedStderr io.Writer = os.Stderr
var ExitCode int

var configPath string
var envFiles []string
var verboseFlag bool
var jsonOutput bool

// Settings is resolved before any subcommand runs.
var Settings scconfig.SettingsType

func WriteStderr(fmtStr string, args ...interface{}) {
	WrappedStderr.Write([]byte(fmt.Sprintf(fmtStr, args...)))
}

func WriteStdout(fmtStr string, args ...interface{}) {
	WrappedStdout.Write([]byte(fmt.Sprintf(fmtStr, args...)))
}

func writeJson(v any) error {
	barr, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	WriteStdout("%s\n", barr)
	return nil
}

func loadSettings(cmd *cobra.Command, args []string) error {
	if err := scconfig.LoadDotEnv(envFiles...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	settings, err := scconfig.Load(configPath)
	if err != nil {
		return err
	}
	if verboseFlag {
		settings.LogVerbose = true
	}
	Settings = settings
	logutil.SetVerbose(settings.LogVerbose)
	return nil
}

func runOptions() scenario.RunOptions {
	return scenario.RunOptions{
		Root: scenario.RootSpec{
			Width:      Settings.RootWidth,
			Height:     Settings.RootHeight,
			PointScale: Settings.RootPointScale,
		},
		Coalesce: Settings.MountCoalesce,
		Codec:    Settings.StateCodec,
	}
}

// openTelemetry returns nil, nil when telemetry is off.
func openTelemetry(ctx context.Context, force bool) (*telemetrystore.Store, error) {
	if !force && !Settings.TelemetryEnabled {
		return nil, nil
	}
	return telemetrystore.Open(ctx, Settings.TelemetryDb)
}

func sinkOf(store *telemetrystore.Store) mounting.TelemetrySink {
	if store == nil {
		return nil
	}
	return store
}

func Execute() {
	defer func() {
		r := recover()
		if r != nil {
			WriteStderr("[panic] %v\n", r)
			debug.PrintStack()
			os.Exit(1)
		}
		if count := panichandler.PanicCount(); count > 0 {
			WriteStderr("%d panics were recovered during the run\n", count)
			if ExitCode == 0 {
				ExitCode = 2
			}
		}
		os.Exit(ExitCode)
	}()
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", scconfig.SettingsFile, "settings file (missing file means defaults)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env"}, "dotenv files to load before reading SHADOWTREE_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log every transaction")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print reports as json")
	err := rootCmd.Execute()
	if err != nil {
		ExitCode = 1
	}
}
