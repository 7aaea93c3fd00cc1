// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/shadowtree/pkg/scenario"
	"github.com/wavetermdev/shadowtree/pkg/telemetrystore"
)

var runTelemetry bool
var runShowMounted bool

var runCmd = &cobra.Command{
	Use:   "run [flags] scenario.yaml...",
	Short: "play scenarios and verify every mounted revision",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunCmd,
}

func init() {
	runCmd.Flags().BoolVarP(&runTelemetry, "telemetry", "t", false, "record transaction telemetry even if disabled in settings")
	runCmd.Flags().BoolVarP(&runShowMounted, "mounted", "m", false, "print the final mounted view tree")
	rootCmd.AddCommand(runCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := signalContext()
	defer cancelFn()
	store, err := openTelemetry(ctx, runTelemetry)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	var failed int
	for _, path := range args {
		if err := runScenarioFile(ctx, path, store); err != nil {
			WriteStderr("%s: FAILED\n%v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
	}
	return nil
}

func runScenarioFile(ctx context.Context, path string, store *telemetrystore.Store) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	opts := runOptions()
	opts.Sink = sinkOf(store)
	rpt, err := scenario.Run(ctx, sc, opts)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJson(rpt)
	}
	printReport(path, rpt)
	return nil
}

func printReport(path string, rpt *scenario.Report) {
	WriteStdout("%s: ok (%s, surface %s)\n", path, rpt.Scenario, rpt.SurfaceId)
	for _, step := range rpt.Steps {
		name := step.Name
		if name == "" {
			name = "-"
		}
		WriteStdout("  step %-3d %-11s %-24s rev=%d", step.Index, step.Kind, name, step.Revision)
		if step.Unchanged {
			WriteStdout(" unchanged")
		}
		WriteStdout("\n")
		for _, tx := range step.Transactions {
			WriteStdout("    tx#%d mutations=%d coalesced=%d\n", tx.Number, len(tx.Mutations), tx.Coalesced)
			if Settings.LogVerbose {
				for _, m := range tx.Mutations {
					WriteStdout("      %s\n", m)
				}
			}
		}
	}
	c := rpt.Counts
	WriteStdout("  totals: create=%d delete=%d insert=%d remove=%d update=%d views=%d\n", c.Create, c.Delete, c.Insert, c.Remove, c.Update, rpt.Views)
	if runShowMounted {
		WriteStdout("%s", rpt.Mounted)
	}
}
