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

package montage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
)

// MaxTransitionSeconds caps the crossfade between consecutive clips.
const MaxTransitionSeconds = 2.0

// RenderSpec carries everything one render invocation needs beyond the
// group itself.
type RenderSpec struct {
	Group             model.ClipGroup
	OutputPath        string
	TransitionSeconds float64
	Overlay           *model.OverlayConfig
	Progress          func(outSeconds, speed float64)
}

// Renderer turns one clip group into a single output file. Implementations
// own the external process, its filter graph, and its timeout, and must
// honor ctx cancellation.
type Renderer interface {
	Render(ctx context.Context, spec RenderSpec) error
}

// RenderCoordinator drives the render phase: one group at a time, each into
// its own output file, collecting per-group results without aborting on
// individual failures.
type RenderCoordinator struct {
	renderer Renderer
	sink     export.Sink
}

// NewRenderCoordinator creates a render coordinator publishing progress to
// the given sink. A nil sink discards events.
func NewRenderCoordinator(renderer Renderer, sink export.Sink) *RenderCoordinator {
	if sink == nil {
		sink = export.NopSink
	}
	return &RenderCoordinator{renderer: renderer, sink: sink}
}

// Run renders every group into outputDir. The transition duration is clamped
// to [0, MaxTransitionSeconds] before rendering. A failed group records its
// error and the run moves to the next group; only context cancellation stops
// the run early. Output names embed the sanitized project name, the group
// key, and a timestamp, so successive exports never overwrite each other.
func (c *RenderCoordinator) Run(ctx context.Context, projectId, projectName string, groups []model.ClipGroup, outputDir string, transitionSeconds float64, overlay *model.OverlayConfig) ([]model.RenderResult, error) {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating montage output dir: %w", err)
	}

	transitionSeconds = min(max(transitionSeconds, 0), MaxTransitionSeconds)
	namePrefix := export.SanitizeName(projectName)

	results := make([]model.RenderResult, 0, len(groups))
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		outputPath := filepath.Join(outputDir,
			fmt.Sprintf("%s_%s_%d.mp4", namePrefix, group.Key, time.Now().Unix()))
		total := TotalDurationSeconds(group, transitionSeconds)

		c.sink.Publish(ctx, export.Event{
			Kind:       export.EventPhaseChanged,
			ProjectId:  projectId,
			Phase:      "rendering",
			GroupLabel: group.Label,
		})

		err := c.renderer.Render(ctx, RenderSpec{
			Group:             group,
			OutputPath:        outputPath,
			TransitionSeconds: transitionSeconds,
			Overlay:           overlay,
			Progress: func(outSeconds, speed float64) {
				percent := 0.0
				if total > 0 {
					percent = min(outSeconds/total*100, 100)
				}
				c.sink.Publish(ctx, export.Event{
					Kind:       export.EventRenderProgress,
					ProjectId:  projectId,
					GroupLabel: group.Label,
					Percent:    percent,
					Rate:       fmt.Sprintf("%.2fx", speed),
				})
			},
		})
		result := model.RenderResult{GroupKey: group.Key}
		outcome := export.ClipOutcome{Kind: export.OutcomeSuccess}
		if err != nil {
			os.Remove(outputPath)
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			result.Error = err.Error()
			outcome = export.ClipOutcome{Kind: export.OutcomeFailed, Error: err.Error()}
		} else {
			result.Success = true
			result.OutputPath = outputPath
			result.DurationSeconds = total
		}
		results = append(results, result)

		// Batch-level render progress: the share of groups finished so far,
		// success or not.
		c.sink.Publish(ctx, export.Event{
			Kind:       export.EventGroupCompleted,
			ProjectId:  projectId,
			GroupLabel: group.Label,
			Outcome:    &outcome,
			Percent:    float64(len(results)) / float64(len(groups)) * 100,
		})
	}
	return results, nil
}
