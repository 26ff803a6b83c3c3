// Copyright 2025 The vodsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main contains the setup and initialization logic for the
// application's state: the configuration singleton, the shared service
// instances, and the progress hub that fans batch export events out to
// streaming API clients.
package main

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/services"
	"github.com/vodsync/vodsync/internal/media"
	"github.com/vodsync/vodsync/internal/store"
)

// StateManager holds all the shared dependencies for the application,
// avoiding globals scattered across handlers.
type StateManager struct {
	config         *config.Config
	projectService *services.ProjectService
	exportService  *services.ExportService
	progress       *progressHub
}

// state is the single instance of StateManager.
var state = &StateManager{}

// SetupOS points the configuration loader at the configs directory and the
// local runtime unless the environment already says otherwise.
func SetupOS() (err error) {
	if os.Getenv(config.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(config.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(config.EnvConfigRuntime) == "" {
		err = os.Setenv(config.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig provides the configuration singleton, loading it from the TOML
// files on first use.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up environment: %v\n", err)
		}
		cfg := config.NewConfig()
		config.LoadConfig(cfg)
		state.config = cfg
	}
	return state.config
}

// InitState wires the application services together: the workspace over the
// configured work directory, the external tool adapters, snapshot
// persistence, and the project registry loaded from disk.
func InitState(_ context.Context) {
	cfg := GetConfig()

	ws := store.NewWorkspace(cfg.Storage, media.NewFFProbe(""))
	projects, err := services.NewProjectService(cfg, store.NewProjectStore(ws))
	if err != nil {
		log.Fatalf("failed to initialize project service: %v\n", err)
	}

	state.projectService = projects
	state.exportService = services.NewExportService(
		media.NewYtDlpRetriever(cfg.Retrieval),
		media.NewFFmpegRenderer(cfg.Render),
		ws,
		cfg.Render.MaxTransition)
	state.progress = newProgressHub()
}

// progressHub fans export progress events out to any number of streaming
// subscribers per project. The hub itself implements nothing of the export
// pipeline; it is only plumbing between the batch goroutine and SSE clients.
type progressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan export.Event]struct{}
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[string]map[chan export.Event]struct{})}
}

// Sink returns the publishing side for one project's batch run. Events are
// dropped for subscribers with a full buffer rather than blocking the batch.
func (h *progressHub) Sink(projectId string) export.Sink {
	return export.SinkFunc(func(_ context.Context, ev export.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		for ch := range h.subs[projectId] {
			select {
			case ch <- ev:
			default:
			}
		}
	})
}

// Subscribe registers a streaming client for a project's events. The
// returned cancel function must be called when the client disconnects.
func (h *progressHub) Subscribe(projectId string) (<-chan export.Event, func()) {
	ch := make(chan export.Event, 64)
	h.mu.Lock()
	if h.subs[projectId] == nil {
		h.subs[projectId] = make(map[chan export.Event]struct{})
	}
	h.subs[projectId][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[projectId], ch)
		if len(h.subs[projectId]) == 0 {
			delete(h.subs, projectId)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
