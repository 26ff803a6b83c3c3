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

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vodsync/vodsync/internal/core/model"
)

// ProgressFunc receives percent and transfer-rate updates parsed from the
// external tool's output while one clip is being retrieved.
type ProgressFunc func(percent float64, rate string)

// Retriever extracts one clip from a remote recording into destPath. The
// implementation owns tool invocation, retries, and timeouts; it must honor
// ctx cancellation and report progress through the callback when it can.
type Retriever interface {
	Retrieve(ctx context.Context, req model.ClipRequest, destPath string, progress ProgressFunc) error
}

// Coordinator runs the extraction phase of a batch: one retrieval at a time,
// in request order, collecting per-clip outcomes without aborting the batch
// on individual failures.
type Coordinator struct {
	retriever Retriever
	sink      Sink
}

// NewCoordinator creates an extraction coordinator publishing progress to
// the given sink. A nil sink discards events.
func NewCoordinator(retriever Retriever, sink Sink) *Coordinator {
	if sink == nil {
		sink = NopSink
	}
	return &Coordinator{retriever: retriever, sink: sink}
}

// Run extracts every request into outputDir. A request whose target file
// already exists is skipped, which makes re-running a batch cheap after a
// partial failure. A failed retrieval records the error and moves on; only
// context cancellation stops the batch early, and the error returned then is
// the context's. Failed attempts never leave a partial file behind.
func (c *Coordinator) Run(ctx context.Context, projectId string, requests []model.ClipRequest, outputDir string) (model.ExtractionResult, error) {
	result := model.ExtractionResult{OutputDir: outputDir}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return result, fmt.Errorf("creating clip output dir: %w", err)
	}

	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		label := fmt.Sprintf("%s / %s", req.MarkerLabel, req.ParticipantName)
		destPath := filepath.Join(outputDir, ClipFileName(req.MarkerId, req.ParticipantId))

		if _, err := os.Stat(destPath); err == nil {
			result.Skipped++
			c.sink.Publish(ctx, Event{
				Kind:      EventClipCompleted,
				ProjectId: projectId,
				ClipIndex: req.Index,
				ClipLabel: label,
				Outcome:   &ClipOutcome{Kind: OutcomeSkipped},
			})
			continue
		}

		c.sink.Publish(ctx, Event{
			Kind:      EventClipStarted,
			ProjectId: projectId,
			ClipIndex: req.Index,
			ClipLabel: label,
		})

		err := c.retriever.Retrieve(ctx, req, destPath, func(percent float64, rate string) {
			c.sink.Publish(ctx, Event{
				Kind:      EventClipProgress,
				ProjectId: projectId,
				ClipIndex: req.Index,
				ClipLabel: label,
				Percent:   percent,
				Rate:      rate,
			})
		})
		if err != nil {
			os.Remove(destPath)
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", label, err))
			c.sink.Publish(ctx, Event{
				Kind:      EventClipCompleted,
				ProjectId: projectId,
				ClipIndex: req.Index,
				ClipLabel: label,
				Outcome:   &ClipOutcome{Kind: OutcomeFailed, Error: err.Error()},
			})
			continue
		}

		result.Extracted++
		c.sink.Publish(ctx, Event{
			Kind:      EventClipCompleted,
			ProjectId: projectId,
			ClipIndex: req.Index,
			ClipLabel: label,
			Outcome:   &ClipOutcome{Kind: OutcomeSuccess},
		})
	}
	return result, nil
}
