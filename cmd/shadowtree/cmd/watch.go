// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/wavetermdev/shadowtree/pkg/scconfig"
	"github.com/wavetermdev/shadowtree/pkg/util/logutil"
)

const watchDebounce = 200 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [flags] scenario.yaml",
	Short: "rerun a scenario whenever it or the settings file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchCmd,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	ctx, cancelFn := signalContext()
	defer cancelFn()
	scenarioPath, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	rerunCh := make(chan struct{}, 1)
	rerun := func() {
		select {
		case rerunCh <- struct{}{}:
		default:
		}
	}

	// updates arrive on the watcher goroutine; Settings is only touched here
	settingsCh := make(chan scconfig.SettingsType, 4)
	settingsWatcher, err := scconfig.NewWatcher(configPath, func(update scconfig.WatcherUpdate) {
		if update.Err != nil {
			WriteStderr("settings: %v\n", update.Err)
			return
		}
		select {
		case settingsCh <- update.Settings:
		default:
			log.Printf("[watch] dropping settings update, previous ones not handled yet\n")
		}
	})
	if err != nil {
		return err
	}
	defer settingsWatcher.Close()

	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fileWatcher.Close()
	if err := fileWatcher.Add(filepath.Dir(scenarioPath)); err != nil {
		return err
	}
	settingsWatcher.Start()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			WriteStderr("stopping watch\n")
			return nil
		case event, ok := <-fileWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || filepath.Clean(event.Name) != scenarioPath {
				continue
			}
			debounce = time.After(watchDebounce)
		case err, ok := <-fileWatcher.Errors:
			if !ok {
				return nil
			}
			log.Println("[watch] watcher error:", err)
		case settings := <-settingsCh:
			Settings = settings
			logutil.SetVerbose(settings.LogVerbose || verboseFlag)
			rerun()
		case <-debounce:
			debounce = nil
			rerun()
		case <-rerunCh:
			WriteStdout("--- %s\n", time.Now().Format(time.TimeOnly))
			if err := runScenarioFile(ctx, scenarioPath, nil); err != nil {
				WriteStderr("%s: FAILED\n%v\n", scenarioPath, err)
			}
		}
	}
}
