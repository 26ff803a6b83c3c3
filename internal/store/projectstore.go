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

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vodsync/vodsync/internal/core/model"
)

// ErrProjectNotFound reports a lookup for a project with no snapshot file.
var ErrProjectNotFound = errors.New("store: project not found")

// ProjectStore persists project snapshots as JSON files inside each
// project's workspace directory. It is wired to the aggregate as a change
// subscriber, so every committed mutation lands on disk.
type ProjectStore struct {
	ws *Workspace
}

// NewProjectStore creates a snapshot store over the workspace.
func NewProjectStore(ws *Workspace) *ProjectStore {
	return &ProjectStore{ws: ws}
}

// Save writes the snapshot to the project's workspace. The write goes
// through a temp file and a rename so a crash mid-write never corrupts the
// previous snapshot.
func (s *ProjectStore) Save(snap model.Snapshot) error {
	dir := s.ws.ProjectDir(snap.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating project dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, SnapshotFileName+".tmp-")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.ws.SnapshotPath(snap.Name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Load reads a project snapshot back by project name.
func (s *ProjectStore) Load(projectName string) (model.Snapshot, error) {
	data, err := os.ReadFile(s.ws.SnapshotPath(projectName))
	if os.IsNotExist(err) {
		return model.Snapshot{}, ErrProjectNotFound
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

// List returns the snapshots of every project found under the work
// directory. Directories without a snapshot file are ignored; a directory
// with an unreadable snapshot fails the listing.
func (s *ProjectStore) List() ([]model.Snapshot, error) {
	entries, err := os.ReadDir(s.ws.cfg.WorkDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading work dir: %w", err)
	}

	var snaps []model.Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.ws.cfg.WorkDir, entry.Name(), SnapshotFileName)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
		}
		var snap model.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Delete removes a project's entire workspace directory, clips and montages
// included.
func (s *ProjectStore) Delete(projectName string) error {
	dir := s.ws.ProjectDir(projectName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrProjectNotFound
	}
	return os.RemoveAll(dir)
}
