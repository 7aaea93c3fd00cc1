// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var telemetrySurface string
var telemetryLimit int
var telemetryOlder time.Duration

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "inspect recorded transaction telemetry",
}

var telemetryListCmd = &cobra.Command{
	Use:   "list",
	Short: "list the newest transaction records",
	RunE:  runTelemetryListCmd,
}

var telemetrySummaryCmd = &cobra.Command{
	Use:   "summary [surfaceid...]",
	Short: "aggregate timings per surface (all surfaces when none given)",
	RunE:  runTelemetrySummaryCmd,
}

var telemetryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "delete old transaction records",
	RunE:  runTelemetryPruneCmd,
}

func init() {
	telemetryListCmd.Flags().StringVarP(&telemetrySurface, "surface", "s", "", "only this surface")
	telemetryListCmd.Flags().IntVarP(&telemetryLimit, "limit", "l", 20, "maximum number of records")
	telemetryPruneCmd.Flags().DurationVar(&telemetryOlder, "older", 24*time.Hour, "delete records older than this")
	telemetryCmd.AddCommand(telemetryListCmd)
	telemetryCmd.AddCommand(telemetrySummaryCmd)
	telemetryCmd.AddCommand(telemetryPruneCmd)
	rootCmd.AddCommand(telemetryCmd)
}

func runTelemetryListCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := signalContext()
	defer cancelFn()
	store, err := openTelemetry(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()
	recs, err := store.List(ctx, telemetrySurface, telemetryLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJson(recs)
	}
	for _, rec := range recs {
		ts := time.UnixMilli(rec.CommitTs).Format(time.TimeOnly)
		WriteStdout("%s %s tx#%-4d %-11s commit=%.2fms layout=%.2fms diff=%.2fms mount=%.2fms mutations=%d",
			ts, rec.SurfaceId, rec.TxNum, rec.Source, rec.CommitMs, rec.LayoutMs, rec.DiffMs, rec.MountMs, rec.NumMutations)
		if rec.MountError != "" {
			WriteStdout(" error=%q", rec.MountError)
		}
		WriteStdout("\n")
	}
	return nil
}

func runTelemetrySummaryCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := signalContext()
	defer cancelFn()
	store, err := openTelemetry(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()
	surfaces := args
	if len(surfaces) == 0 {
		surfaces, err = store.Surfaces(ctx)
		if err != nil {
			return err
		}
	}
	for _, surfaceId := range surfaces {
		summary, err := store.Summary(ctx, surfaceId)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := writeJson(summary); err != nil {
				return err
			}
			continue
		}
		WriteStdout("%s tx=%d mutations=%d errors=%d avg commit=%.2fms diff=%.2fms (max %.2fms) mount=%.2fms\n",
			summary.SurfaceId, summary.NumTx, summary.NumMutations, summary.NumErrors, summary.AvgCommitMs, summary.AvgDiffMs, summary.MaxDiffMs, summary.AvgMountMs)
	}
	return nil
}

func runTelemetryPruneCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := signalContext()
	defer cancelFn()
	store, err := openTelemetry(ctx, true)
	if err != nil {
		return err
	}
	defer store.Close()
	count, err := store.Prune(ctx, time.Now().Add(-telemetryOlder))
	if err != nil {
		return err
	}
	WriteStdout("pruned %d records\n", count)
	return nil
}
