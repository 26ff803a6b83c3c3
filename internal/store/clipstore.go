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

// Package store owns the on-disk workspace: one directory per project
// holding the snapshot file, extracted clips, and rendered montages. The
// clip store side reads extraction state back off disk; the project store
// side persists snapshots. Extraction itself happens in the export package,
// which only needs the paths this package hands out.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/media"
)

// SnapshotFileName is the per-project snapshot file inside a workspace dir.
const SnapshotFileName = "project.json"

// headerSniffSize is how many leading bytes filetype needs for matching.
const headerSniffSize = 261

// Workspace resolves and inspects per-project storage directories.
type Workspace struct {
	cfg    config.Storage
	prober media.Prober
}

// NewWorkspace creates a workspace rooted at the configured work directory.
func NewWorkspace(cfg config.Storage, prober media.Prober) *Workspace {
	return &Workspace{cfg: cfg, prober: prober}
}

// ProjectDir returns the workspace directory for a project, keyed by its
// sanitized name.
func (w *Workspace) ProjectDir(projectName string) string {
	return filepath.Join(w.cfg.WorkDir, export.SanitizeName(projectName))
}

// ClipsDir returns the directory extracted clips land in.
func (w *Workspace) ClipsDir(projectName string) string {
	return filepath.Join(w.ProjectDir(projectName), w.cfg.ClipsDir)
}

// MontagesDir returns the directory rendered montages land in.
func (w *Workspace) MontagesDir(projectName string) string {
	return filepath.Join(w.ProjectDir(projectName), w.cfg.MontagesDir)
}

// SnapshotPath returns the project's snapshot file path.
func (w *Workspace) SnapshotPath(projectName string) string {
	return filepath.Join(w.ProjectDir(projectName), SnapshotFileName)
}

// ProbeClipStatus reports, for each request, whether its target file already
// exists in the project's clips directory.
func (w *Workspace) ProbeClipStatus(projectName string, requests []model.ClipRequest) []model.ClipStatusProbe {
	dir := w.ClipsDir(projectName)
	probes := make([]model.ClipStatusProbe, 0, len(requests))
	for _, req := range requests {
		name := export.ClipFileName(req.MarkerId, req.ParticipantId)
		_, err := os.Stat(filepath.Join(dir, name))
		probes = append(probes, model.ClipStatusProbe{
			MarkerLabel:     req.MarkerLabel,
			ParticipantName: req.ParticipantName,
			FileName:        name,
			IsExtracted:     err == nil,
		})
	}
	return probes
}

// ListExtractedClips returns every verified video file in the project's
// clips directory with its probed duration. Files that are not actually
// video (a failed download can leave an HTML error page behind) are skipped.
func (w *Workspace) ListExtractedClips(ctx context.Context, projectName string) ([]model.ExtractedClip, error) {
	dir := w.ClipsDir(projectName)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading clips dir: %w", err)
	}

	var clips []model.ExtractedClip
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !isVideoFile(path) {
			continue
		}
		duration, err := w.prober.DurationSeconds(ctx, path)
		if err != nil {
			return nil, err
		}
		clips = append(clips, model.ExtractedClip{
			FileName:        entry.Name(),
			Path:            path,
			DurationSeconds: duration,
		})
	}
	return clips, nil
}

// Reconcile maps clip requests back onto the files the extraction phase
// produced, in request order. Requests whose file is missing or is not a
// verified video are dropped; what remains is the working set the render
// phase consumes, with contiguous Order values.
func (w *Workspace) Reconcile(ctx context.Context, projectName string, requests []model.ClipRequest) ([]model.MontageClip, error) {
	dir := w.ClipsDir(projectName)
	var clips []model.MontageClip
	for _, req := range requests {
		name := export.ClipFileName(req.MarkerId, req.ParticipantId)
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if !isVideoFile(path) {
			continue
		}
		duration, err := w.prober.DurationSeconds(ctx, path)
		if err != nil {
			return nil, err
		}
		clips = append(clips, model.MontageClip{
			Id:                  uuid.NewString(),
			SourceMarkerId:      req.MarkerId,
			SourceParticipantId: req.ParticipantId,
			ParticipantName:     req.ParticipantName,
			MarkerLabel:         req.MarkerLabel,
			FileName:            name,
			FilePath:            path,
			DurationSeconds:     duration,
			Order:               len(clips),
		})
	}
	return clips, nil
}

// isVideoFile sniffs the file header and reports whether it is a video
// container. The extension alone is not trusted: a failed download can
// leave a .mp4 that is really an HTML error page.
func isVideoFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, headerSniffSize)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false
	}
	return filetype.IsVideo(head[:n])
}
