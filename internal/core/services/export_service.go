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

package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/montage"
	"github.com/vodsync/vodsync/internal/core/workflow"
	"github.com/vodsync/vodsync/internal/store"
)

// ErrExportInFlight reports a batch start while another batch is already
// running for the same project. One batch per project at a time.
var ErrExportInFlight = errors.New("services: an export is already running for this project")

// ExportService runs batch exports. It owns the external tool adapters and
// enforces the single-in-flight rule per project.
type ExportService struct {
	mu            sync.Mutex
	inFlight      map[string]struct{}
	retriever     export.Retriever
	renderer      montage.Renderer
	ws            *store.Workspace
	maxTransition float64
}

// NewExportService creates the export service over the given adapters.
// maxTransition caps the crossfade a caller may request; zero or negative
// falls back to the built-in ceiling.
func NewExportService(retriever export.Retriever, renderer montage.Renderer, ws *store.Workspace, maxTransition float64) *ExportService {
	if maxTransition <= 0 || maxTransition > montage.MaxTransitionSeconds {
		maxTransition = montage.MaxTransitionSeconds
	}
	return &ExportService{
		inFlight:      make(map[string]struct{}),
		retriever:     retriever,
		renderer:      renderer,
		ws:            ws,
		maxTransition: maxTransition,
	}
}

// acquire claims the project's in-flight slot, failing when a batch is
// already running. The returned release must be called when the batch ends.
func (s *ExportService) acquire(projectId string) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inFlight[projectId]; running {
		return nil, ErrExportInFlight
	}
	s.inFlight[projectId] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, projectId)
		s.mu.Unlock()
	}, nil
}

func (s *ExportService) run(ctx context.Context, snap model.Snapshot, params workflow.BatchParams, sink export.Sink) (model.BatchResult, error) {
	if params.TransitionSeconds > s.maxTransition {
		params.TransitionSeconds = s.maxTransition
	}
	w := workflow.NewBatchExportWorkflow(snap, params, s.retriever, s.renderer, s.ws, sink)
	return w.Run(ctx)
}

// RunBatch executes one full batch export over the snapshot, publishing
// progress to the sink. It blocks until the batch finishes or ctx is
// cancelled. A second call for the same project while one is running fails
// with ErrExportInFlight.
func (s *ExportService) RunBatch(ctx context.Context, snap model.Snapshot, params workflow.BatchParams, sink export.Sink) (model.BatchResult, error) {
	release, err := s.acquire(snap.Id)
	if err != nil {
		return model.BatchResult{}, err
	}
	defer release()
	return s.run(ctx, snap, params, sink)
}

// StartBatch claims the project's in-flight slot synchronously and runs the
// batch in the background, so a caller that gets nil back is guaranteed the
// batch was accepted and a concurrent caller reliably gets
// ErrExportInFlight. The result is observable through the sink; a failed
// run is also logged.
func (s *ExportService) StartBatch(ctx context.Context, snap model.Snapshot, params workflow.BatchParams, sink export.Sink) error {
	release, err := s.acquire(snap.Id)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		if _, err := s.run(ctx, snap, params, sink); err != nil {
			slog.Error("batch export failed", "project_id", snap.Id, "error", err.Error())
		}
	}()
	return nil
}

// Running reports whether a batch is currently in flight for the project.
func (s *ExportService) Running(projectId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.inFlight[projectId]
	return running
}

// ClipStatus reports, per would-be clip request, whether the file already
// exists on disk. An unset reference start time yields an empty report
// rather than an error; there is simply nothing extractable yet.
func (s *ExportService) ClipStatus(snap model.Snapshot) []model.ClipStatusProbe {
	requests, err := export.BuildRequests(snap)
	if err != nil {
		return nil
	}
	return s.ws.ProbeClipStatus(snap.Name, requests)
}

// ListExtractedClips returns the verified clip files in the project's
// workspace.
func (s *ExportService) ListExtractedClips(ctx context.Context, projectName string) ([]model.ExtractedClip, error) {
	return s.ws.ListExtractedClips(ctx, projectName)
}
