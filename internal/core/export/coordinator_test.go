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

package export_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
)

// fakeRetriever writes a marker byte to destPath unless the request's
// participant is listed as failing.
type fakeRetriever struct {
	calls   int
	failFor map[string]error
}

func (f *fakeRetriever) Retrieve(_ context.Context, req model.ClipRequest, destPath string, progress export.ProgressFunc) error {
	f.calls++
	if err, ok := f.failFor[req.ParticipantId]; ok {
		return err
	}
	if progress != nil {
		progress(50, "5.00MiB/s")
		progress(100, "5.00MiB/s")
	}
	return os.WriteFile(destPath, []byte{0xFF}, 0o640)
}

// TestCoordinatorExtractsAll runs a clean batch and checks every request
// produced its file under the deterministic name.
func TestCoordinatorExtractsAll(t *testing.T) {
	dir := t.TempDir()
	requests, err := export.BuildRequests(buildSnapshot())
	require.NoError(t, err)

	retriever := &fakeRetriever{}
	sink := export.NewChannelSink(64)
	coord := export.NewCoordinator(retriever, sink)

	result, err := coord.Run(context.Background(), "proj-1", requests, dir)
	require.NoError(t, err)
	assert.Equal(t, len(requests), result.Extracted)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)
	assert.Equal(t, len(requests), result.Total())

	for _, req := range requests {
		_, err := os.Stat(filepath.Join(dir, export.ClipFileName(req.MarkerId, req.ParticipantId)))
		assert.NoError(t, err)
	}
}

// TestCoordinatorIsIdempotent verifies the skip-if-exists rule: a second run
// over the same requests touches nothing and reports every clip skipped.
func TestCoordinatorIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	requests, err := export.BuildRequests(buildSnapshot())
	require.NoError(t, err)

	retriever := &fakeRetriever{}
	coord := export.NewCoordinator(retriever, nil)

	_, err = coord.Run(context.Background(), "proj-1", requests, dir)
	require.NoError(t, err)
	firstCalls := retriever.calls

	result, err := coord.Run(context.Background(), "proj-1", requests, dir)
	require.NoError(t, err)
	assert.Equal(t, firstCalls, retriever.calls)
	assert.Equal(t, len(requests), result.Skipped)
	assert.Zero(t, result.Extracted)
	assert.Zero(t, result.Failed)
}

// TestCoordinatorContinuesPastFailures verifies one participant's failures
// do not abort the batch: the other participant's clips all land, failures
// are counted and carried in the error list.
func TestCoordinatorContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	requests, err := export.BuildRequests(buildSnapshot())
	require.NoError(t, err)

	retriever := &fakeRetriever{failFor: map[string]error{
		"p-bob": errors.New("403 forbidden"),
	}}
	coord := export.NewCoordinator(retriever, nil)

	result, err := coord.Run(context.Background(), "proj-1", requests, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Extracted)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, result.Errors, 3)

	// Failed requests must not leave files behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

// TestCoordinatorHonorsCancellation verifies a cancelled context stops the
// batch before the next clip starts.
func TestCoordinatorHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	requests, err := export.BuildRequests(buildSnapshot())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := export.NewCoordinator(&fakeRetriever{}, nil)
	result, err := coord.Run(ctx, "proj-1", requests, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Total())
}

// TestCoordinatorPublishesEvents checks the event stream of a small batch:
// a start and a completion per clip, with progress in between, and tagged
// outcomes on the completions.
func TestCoordinatorPublishesEvents(t *testing.T) {
	dir := t.TempDir()
	requests, err := export.BuildRequests(buildSnapshot())
	require.NoError(t, err)
	requests = requests[:1]

	sink := export.NewChannelSink(64)
	coord := export.NewCoordinator(&fakeRetriever{}, sink)

	_, err = coord.Run(context.Background(), "proj-1", requests, dir)
	require.NoError(t, err)
	sink.Close()

	var kinds []export.EventKind
	var outcome *export.ClipOutcome
	for ev := range sink.C {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == export.EventClipCompleted {
			outcome = ev.Outcome
		}
	}
	assert.Equal(t, []export.EventKind{
		export.EventClipStarted,
		export.EventClipProgress,
		export.EventClipProgress,
		export.EventClipCompleted,
	}, kinds)
	require.NotNil(t, outcome)
	assert.Equal(t, export.OutcomeSuccess, outcome.Kind)
}
