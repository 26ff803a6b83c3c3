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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into coherent pipelines. This file implements the
// batch export workflow, the one pipeline that takes a project from
// committed snapshot to rendered montage files.
package workflow

import (
	goctx "context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/vodsync/vodsync/internal/core/cor"
	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/montage"
	"github.com/vodsync/vodsync/internal/store"
)

// BatchExportWorkflow drives one batch export run as a chain of phase
// commands. A workflow instance is built per run: the project identity and
// batch parameters are baked into the commands at construction.
type BatchExportWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
	sink  export.Sink
	snap  model.Snapshot
}

// NewBatchExportWorkflow assembles the pipeline for one run over the given
// snapshot.
func NewBatchExportWorkflow(
	snap model.Snapshot,
	params BatchParams,
	retriever export.Retriever,
	renderer montage.Renderer,
	ws *store.Workspace,
	sink export.Sink) *BatchExportWorkflow {

	if sink == nil {
		sink = export.NopSink
	}

	w := &BatchExportWorkflow{
		BaseCommand: *cor.NewBaseCommand("batch-export-workflow"),
		sink:        sink,
		snap:        snap,
	}

	chain := cor.NewBaseChain(w.GetName())
	chain.AddCommand(newBuildRequestsCommand(sink))
	chain.AddCommand(newExtractClipsCommand(
		export.NewCoordinator(retriever, sink), ws, sink, snap.Id, snap.Name))
	chain.AddCommand(newReconcileClipsCommand(ws, sink, snap.Id, snap.Name))
	chain.AddCommand(newGroupClipsCommand(sink, snap.Id, params))
	chain.AddCommand(newRenderMontagesCommand(
		montage.NewRenderCoordinator(renderer, sink), ws, snap.Id, snap.Name, params))
	w.chain = chain
	return w
}

// Execute runs the underlying chain. Use Run for the aggregated result.
func (w *BatchExportWorkflow) Execute(ctx cor.Context) {
	w.chain.Execute(ctx)
}

// Run executes the batch and aggregates the phase artifacts into a single
// result. The outcome is succeeded when every clip landed and every group
// rendered, failed when nothing was produced, and partial in between. The
// returned error is non-nil only for failed runs.
func (w *BatchExportWorkflow) Run(ctx goctx.Context) (model.BatchResult, error) {
	tracer := otel.Tracer(w.GetName())
	traceCtx, span := tracer.Start(ctx, "batch-export")
	defer span.End()

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(traceCtx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, w.snap)

	w.chain.Execute(chainCtx)

	result := w.assemble(chainCtx)
	w.sink.Publish(traceCtx, export.Event{
		Kind:      export.EventBatchFinished,
		ProjectId: w.snap.Id,
		Succeeded: result.Extraction.Extracted,
		Skipped:   result.Extraction.Skipped,
		Failed:    result.Extraction.Failed,
	})

	if result.Outcome == model.BatchFailed {
		span.SetStatus(codes.Error, result.Error)
		return result, errors.New(result.Error)
	}
	span.SetStatus(codes.Ok, string(result.Outcome))
	return result, nil
}

func (w *BatchExportWorkflow) assemble(ctx cor.Context) model.BatchResult {
	var result model.BatchResult
	if extraction, ok := ctx.Get(CtxExtraction).(model.ExtractionResult); ok {
		result.Extraction = extraction
	}
	if renders, ok := ctx.Get(CtxRenders).([]model.RenderResult); ok {
		result.Renders = renders
	}

	if ctx.HasErrors() {
		result.Outcome = model.BatchFailed
		for _, err := range ctx.GetErrors() {
			result.Error = err.Error()
			break
		}
		return result
	}

	// A partial outcome still surfaces every clip and group failure in the
	// aggregated error, not only in the per-item results.
	failures := append([]string(nil), result.Extraction.Errors...)
	for _, r := range result.Renders {
		if !r.Success {
			failures = append(failures, fmt.Sprintf("group %s: %s", r.GroupKey, r.Error))
		}
	}
	if len(failures) == 0 && result.Extraction.Failed == 0 {
		result.Outcome = model.BatchSucceeded
	} else {
		result.Outcome = model.BatchPartial
		result.Error = strings.Join(failures, "; ")
	}
	return result
}
