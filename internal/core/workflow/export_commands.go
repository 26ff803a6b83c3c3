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
// combining commands into coherent pipelines. This file implements the five
// phases of a batch export as chain commands: build clip requests from the
// snapshot, extract the clips, reconcile what actually landed on disk, group
// the results, and render one montage per group.
package workflow

import (
	"errors"

	"github.com/vodsync/vodsync/internal/core/cor"
	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/montage"
	"github.com/vodsync/vodsync/internal/store"
)

// Context keys for batch state shared across commands beyond the chain's
// input/output piping.
const (
	CtxRequests   = "clip_requests"
	CtxExtraction = "extraction_result"
	CtxRenders    = "render_results"
)

// ErrNoIncludedClips reports a batch start with nothing to extract: no
// decision is both Included and backed by a synchronized participant.
var ErrNoIncludedClips = errors.New("workflow: no included clips to export")

// ErrNoClipsOnDisk reports that extraction left no usable clip file behind,
// so there is nothing to group or render.
var ErrNoClipsOnDisk = errors.New("workflow: no extracted clips on disk")

// BatchParams carries the per-run export options.
type BatchParams struct {
	GroupBy           model.GroupBy
	TransitionSeconds float64
	Overlay           *model.OverlayConfig
}

// buildRequestsCommand projects the snapshot onto the timeline. Input: the
// project snapshot. Output: the ordered clip requests.
type buildRequestsCommand struct {
	cor.BaseCommand
	sink export.Sink
}

func newBuildRequestsCommand(sink export.Sink) *buildRequestsCommand {
	return &buildRequestsCommand{BaseCommand: *cor.NewBaseCommand("build-clip-requests"), sink: sink}
}

func (c *buildRequestsCommand) IsExecutable(ctx cor.Context) bool {
	_, ok := ctx.Get(c.GetInputParam()).(model.Snapshot)
	return ok
}

func (c *buildRequestsCommand) Execute(ctx cor.Context) {
	snap := ctx.Get(c.GetInputParam()).(model.Snapshot)
	c.sink.Publish(ctx.GetContext(), export.Event{
		Kind: export.EventPhaseChanged, ProjectId: snap.Id, Phase: "building"})

	requests, err := export.BuildRequests(snap)
	if err != nil {
		c.GetErrorCounter().Add(ctx.GetContext(), 1)
		ctx.AddError(c.GetName(), err)
		return
	}
	if len(requests) == 0 {
		c.GetErrorCounter().Add(ctx.GetContext(), 1)
		ctx.AddError(c.GetName(), ErrNoIncludedClips)
		return
	}

	c.sink.Publish(ctx.GetContext(), export.Event{
		Kind: export.EventBatchStarted, ProjectId: snap.Id, TotalClips: len(requests)})
	ctx.Add(CtxRequests, requests)
	ctx.Add(c.GetOutputParam(), requests)
	c.GetSuccessCounter().Add(ctx.GetContext(), 1)
}

// extractClipsCommand runs the extraction coordinator over the requests.
// Input: the clip requests. Output: the extraction result.
type extractClipsCommand struct {
	cor.BaseCommand
	coordinator *export.Coordinator
	ws          *store.Workspace
	sink        export.Sink
	projectId   string
	projectName string
}

func newExtractClipsCommand(coordinator *export.Coordinator, ws *store.Workspace, sink export.Sink, projectId, projectName string) *extractClipsCommand {
	return &extractClipsCommand{
		BaseCommand: *cor.NewBaseCommand("extract-clips"),
		coordinator: coordinator,
		ws:          ws,
		sink:        sink,
		projectId:   projectId,
		projectName: projectName,
	}
}

func (c *extractClipsCommand) IsExecutable(ctx cor.Context) bool {
	_, ok := ctx.Get(c.GetInputParam()).([]model.ClipRequest)
	return ok
}

func (c *extractClipsCommand) Execute(ctx cor.Context) {
	requests := ctx.Get(c.GetInputParam()).([]model.ClipRequest)
	c.sink.Publish(ctx.GetContext(), export.Event{
		Kind: export.EventPhaseChanged, ProjectId: c.projectId, Phase: "extracting"})

	result, err := c.coordinator.Run(ctx.GetContext(), c.projectId, requests, c.ws.ClipsDir(c.projectName))
	ctx.Add(CtxExtraction, result)
	if err != nil {
		c.GetErrorCounter().Add(ctx.GetContext(), 1)
		ctx.AddError(c.GetName(), err)
		return
	}

	ctx.Add(c.GetOutputParam(), result)
	c.GetSuccessCounter().Add(ctx.GetContext(), 1)
}

// reconcileClipsCommand maps the requests back onto the files extraction
// actually produced. Input: the extraction result. Output: the montage
// clips, in request order.
type reconcileClipsCommand struct {
	cor.BaseCommand
	ws          *store.Workspace
	sink        export.Sink
	projectId   string
	projectName string
}

func newReconcileClipsCommand(ws *store.Workspace, sink export.Sink, projectId, projectName string) *reconcileClipsCommand {
	return &reconcileClipsCommand{
		BaseCommand: *cor.NewBaseCommand("reconcile-clips"),
		ws:          ws,
		sink:        sink,
		projectId:   projectId,
		projectName: projectName,
	}
}

func (c *reconcileClipsCommand) IsExecutable(ctx cor.Context) bool {
	_, ok := ctx.Get(CtxRequests).([]model.ClipRequest)
	return ok
}

func (c *reconcileClipsCommand) Execute(ctx cor.Context) {
	requests := ctx.Get(CtxRequests).([]model.ClipRequest)
	c.sink.Publish(ctx.GetContext(), export.Event{
		Kind: export.EventPhaseChanged, ProjectId: c.projectId, Phase: "reconciling"})

	clips, err := c.ws.Reconcile(ctx.GetContext(), c.projectName, requests)
	if err != nil {
		c.GetErrorCounter().Add(ctx.GetContext(), 1)
		ctx.AddError(c.GetName(), err)
		return
	}
	if len(clips) == 0 {
		c.GetErrorCounter().Add(ctx.GetContext(), 1)
		ctx.AddError(c.GetName(), ErrNoClipsOnDisk)
		return
	}

	ctx.Add(c.GetOutputParam(), clips)
	c.GetSuccessCounter().Add(ctx.GetContext(), 1)
}

// groupClipsCommand partitions the montage clips into render groups. Input:
// the montage clips. Output: the clip groups.
type groupClipsCommand struct {
	cor.BaseCommand
	sink      export.Sink
	projectId string
	params    BatchParams
}

func newGroupClipsCommand(sink export.Sink, projectId string, params BatchParams) *groupClipsCommand {
	return &groupClipsCommand{
		BaseCommand: *cor.NewBaseCommand("group-clips"),
		sink:        sink,
		projectId:   projectId,
		params:      params,
	}
}

func (c *groupClipsCommand) IsExecutable(ctx cor.Context) bool {
	_, ok := ctx.Get(c.GetInputParam()).([]model.MontageClip)
	return ok
}

func (c *groupClipsCommand) Execute(ctx cor.Context) {
	clips := ctx.Get(c.GetInputParam()).([]model.MontageClip)
	c.sink.Publish(ctx.GetContext(), export.Event{
		Kind: export.EventPhaseChanged, ProjectId: c.projectId, Phase: "grouping"})

	groups := montage.GroupClips(clips, c.params.GroupBy)
	ctx.Add(c.GetOutputParam(), groups)
	c.GetSuccessCounter().Add(ctx.GetContext(), 1)
}

// renderMontagesCommand renders one output file per group. Input: the clip
// groups. Output: the per-group render results.
type renderMontagesCommand struct {
	cor.BaseCommand
	coordinator *montage.RenderCoordinator
	ws          *store.Workspace
	projectId   string
	projectName string
	params      BatchParams
}

func newRenderMontagesCommand(coordinator *montage.RenderCoordinator, ws *store.Workspace, projectId, projectName string, params BatchParams) *renderMontagesCommand {
	return &renderMontagesCommand{
		BaseCommand: *cor.NewBaseCommand("render-montages"),
		coordinator: coordinator,
		ws:          ws,
		projectId:   projectId,
		projectName: projectName,
		params:      params,
	}
}

func (c *renderMontagesCommand) IsExecutable(ctx cor.Context) bool {
	_, ok := ctx.Get(c.GetInputParam()).([]model.ClipGroup)
	return ok
}

func (c *renderMontagesCommand) Execute(ctx cor.Context) {
	groups := ctx.Get(c.GetInputParam()).([]model.ClipGroup)

	results, err := c.coordinator.Run(
		ctx.GetContext(), c.projectId, c.projectName, groups,
		c.ws.MontagesDir(c.projectName), c.params.TransitionSeconds, c.params.Overlay)
	ctx.Add(CtxRenders, results)
	if err != nil {
		c.GetErrorCounter().Add(ctx.GetContext(), 1)
		ctx.AddError(c.GetName(), err)
		return
	}

	ctx.Add(c.GetOutputParam(), results)
	c.GetSuccessCounter().Add(ctx.GetContext(), 1)
}
