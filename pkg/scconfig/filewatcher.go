// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package scconfig

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type WatcherUpdate struct {
	Settings SettingsType `json:"settings"`
	Err      error        `json:"-"`
}

// Watcher reloads the settings file whenever it changes on disk and hands
// the result to its callback. The directory is watched, not the file, so
// editors that replace the file on save keep working.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onUpdate func(WatcherUpdate)

	mutex    sync.Mutex
	settings SettingsType
	started  bool
	done     chan struct{}
}

func NewWatcher(path string, onUpdate func(WatcherUpdate)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &Watcher{path: absPath, watcher: watcher, onUpdate: onUpdate, settings: DefaultSettings(), done: make(chan struct{})}, nil
}

// Start loads the current settings, reports them once and begins watching.
func (w *Watcher) Start() {
	w.mutex.Lock()
	w.started = true
	w.mutex.Unlock()
	w.reload()
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Println("[scconfig] watcher error:", err)
			}
		}
	}()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}
	w.reload()
}

func (w *Watcher) reload() {
	settings, err := Load(w.path)
	w.mutex.Lock()
	if err == nil {
		w.settings = settings
	} else {
		log.Printf("[scconfig] error reloading %s: %v\n", w.path, err)
	}
	current := w.settings
	w.mutex.Unlock()
	if w.onUpdate != nil {
		w.onUpdate(WatcherUpdate{Settings: current, Err: err})
	}
}

func (w *Watcher) Settings() SettingsType {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.settings
}

func (w *Watcher) Close() {
	w.watcher.Close()
	w.mutex.Lock()
	started := w.started
	w.mutex.Unlock()
	if started {
		<-w.done
	}
}
