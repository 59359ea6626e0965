// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watcher hot-reloads graph definitions: it watches the graphs
// directory and re-registers files as they are created or modified.
// Re-registration overwrites by graph_id; in-flight runs keep the compiled
// graph they started with.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/tombee/graphexec/pkg/graph"
)

// Registrar receives reloaded graph definitions.
type Registrar interface {
	RegisterGraph(def *graph.Definition) error
}

// Watcher re-registers graph files on filesystem changes.
type Watcher struct {
	dir       string
	registrar Registrar
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
}

// New creates a watcher over dir. Subdirectories present at start are
// watched too.
func New(dir string, registrar Registrar, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:       dir,
		registrar: registrar,
		logger:    logger,
		fsw:       fsw,
	}, nil
}

// Start processes filesystem events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.eventLoop(ctx)
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !isGraphFile(event.Name) {
		// A created subdirectory gets added to the watch; anything else is
		// ignored.
		if event.Has(fsnotify.Create) {
			if err := w.fsw.Add(event.Name); err == nil {
				w.logger.Debug("watching new directory", "path", event.Name)
			}
		}
		return
	}

	g, err := graph.LoadFile(event.Name)
	if err != nil {
		w.logger.Warn("failed to reload graph file", "path", event.Name, "error", err)
		return
	}
	if err := w.registrar.RegisterGraph(g.Definition()); err != nil {
		w.logger.Warn("failed to re-register graph", "path", event.Name, "error", err)
		return
	}
	w.logger.Info("graph reloaded", "graph_id", g.ID, "path", event.Name)
}

func isGraphFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
