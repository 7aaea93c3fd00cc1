// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wavetermdev/shadowtree/pkg/componentregistry"
)

var versionVerbose bool

var versionCmd = &cobra.Command{
	Use:   "version [-a]",
	Short: "Print the version number of shadowtree",
	RunE:  runVersionCmd,
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "all", "a", false, "Display full version information")
	rootCmd.AddCommand(versionCmd)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if !versionVerbose {
		WriteStdout("shadowtree v%s\n", ShadowtreeVersion)
		return nil
	}
	WriteStdout("v%s (%s)\n", ShadowtreeVersion, BuildTime)
	WriteStdout("components: %v\n", componentregistry.NewDefault().Names())
	WriteStdout("state codec: %s\n", Settings.StateCodec)
	WriteStdout("telemetry db: %s (enabled=%v)\n", Settings.TelemetryDb, Settings.TelemetryEnabled)
	return nil
}
