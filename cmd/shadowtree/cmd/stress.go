// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/shadowtree/pkg/scenario"
)

var stressSurfaces int
var stressCommits int
var stressCommitters int
var stressSeed int64
var stressTelemetry bool

var stressCmd = &cobra.Command{
	Use:   "stress [flags] scenario.yaml",
	Short: "apply random concurrent commits to many surfaces seeded from a scenario tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runStressCmd,
}

func init() {
	stressCmd.Flags().IntVarP(&stressSurfaces, "surfaces", "n", 0, "number of surfaces (default from settings)")
	stressCmd.Flags().IntVar(&stressCommits, "commits", 0, "commits per surface (default from settings)")
	stressCmd.Flags().IntVar(&stressCommitters, "committers", 2, "concurrent committing goroutines per surface")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 0, "random seed (0 uses the current time)")
	stressCmd.Flags().BoolVarP(&stressTelemetry, "telemetry", "t", false, "record transaction telemetry even if disabled in settings")
	rootCmd.AddCommand(stressCmd)
}

func runStressCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := signalContext()
	defer cancelFn()
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	store, err := openTelemetry(ctx, stressTelemetry)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	opts := scenario.StressOptions{
		RunOptions: runOptions(),
		Surfaces:   Settings.StressSurfaces,
		Commits:    Settings.StressCommits,
		Committers: stressCommitters,
		Seed:       stressSeed,
	}
	opts.Sink = sinkOf(store)
	if stressSurfaces > 0 {
		opts.Surfaces = stressSurfaces
	}
	if stressCommits > 0 {
		opts.Commits = stressCommits
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	rpt, err := scenario.Stress(ctx, sc, opts)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJson(rpt)
	}
	WriteStdout("%s: %d surfaces x %d commits in %v (seed %d)\n", sc.Name, len(rpt.Surfaces), opts.Commits, rpt.Duration.Round(time.Millisecond), opts.Seed)
	for _, res := range rpt.Surfaces {
		WriteStdout("  %s tx=%d nodes=%d %v\n", res.SurfaceId, res.Transactions, res.Nodes, res.Duration.Round(time.Millisecond))
	}
	if store != nil {
		WriteStdout("telemetry: %d records, %d errors\n", store.RecordCount(), store.ErrorCount())
	}
	return nil
}
