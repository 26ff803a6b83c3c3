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

// Package services wires the core packages into the operations the API
// layer exposes: a registry of live project aggregates backed by snapshot
// persistence, and the export service that guards and runs batch exports.
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/project"
	"github.com/vodsync/vodsync/internal/store"
)

// ErrProjectNotFound reports a lookup for an unknown project id.
var ErrProjectNotFound = errors.New("services: project not found")

// ProjectService is the registry of live project aggregates. Every aggregate
// it hands out has the snapshot store subscribed, so committed mutations are
// persisted without the caller doing anything.
type ProjectService struct {
	mu        sync.RWMutex
	cfg       *config.Config
	snapshots *store.ProjectStore
	projects  map[string]*project.Aggregate
}

// NewProjectService creates the registry and loads every project found in
// the workspace.
func NewProjectService(cfg *config.Config, snapshots *store.ProjectStore) (*ProjectService, error) {
	s := &ProjectService{
		cfg:       cfg,
		snapshots: snapshots,
		projects:  make(map[string]*project.Aggregate),
	}

	snaps, err := snapshots.List()
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	for _, snap := range snaps {
		agg := project.FromSnapshot(snap, cfg.Clips)
		s.attach(agg)
		s.projects[agg.Id()] = agg
	}
	slog.Info("project registry loaded", slog.Int("projects", len(s.projects)))
	return s, nil
}

// attach subscribes snapshot persistence to an aggregate.
func (s *ProjectService) attach(agg *project.Aggregate) {
	agg.Subscribe(func(snap model.Snapshot) {
		if err := s.snapshots.Save(snap); err != nil {
			slog.Error("failed to persist project snapshot",
				slog.String("project_id", snap.Id), slog.String("error", err.Error()))
		}
	})
}

// Create makes a new project with its reference participant, persists the
// initial snapshot, and registers the aggregate.
func (s *ProjectService) Create(name, refName, refLocator string, refPlatform model.PlatformKind) (*project.Aggregate, error) {
	agg, err := project.New(name, s.cfg.Clips, refName, refLocator, refPlatform)
	if err != nil {
		return nil, err
	}
	s.attach(agg)
	if err := s.snapshots.Save(agg.Snapshot()); err != nil {
		return nil, fmt.Errorf("persisting new project: %w", err)
	}

	s.mu.Lock()
	s.projects[agg.Id()] = agg
	s.mu.Unlock()

	slog.Info("project created", slog.String("project_id", agg.Id()), slog.String("name", name))
	return agg, nil
}

// Get returns the live aggregate for a project id.
func (s *ProjectService) Get(id string) (*project.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return agg, nil
}

// List returns a snapshot of every registered project.
func (s *ProjectService) List() []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]model.Snapshot, 0, len(s.projects))
	for _, agg := range s.projects {
		snaps = append(snaps, agg.Snapshot())
	}
	return snaps
}

// Delete unregisters a project and removes its workspace directory.
func (s *ProjectService) Delete(id string) error {
	s.mu.Lock()
	agg, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	s.mu.Unlock()

	if err := s.snapshots.Delete(agg.Name()); err != nil && !errors.Is(err, store.ErrProjectNotFound) {
		return err
	}
	slog.Info("project deleted", slog.String("project_id", id))
	return nil
}
