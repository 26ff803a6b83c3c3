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

// Package store_test contains unit tests for the on-disk workspace: path
// resolution, extraction-state probing, and the reconciliation of clip
// requests against the files actually present.
package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/store"
)

// mp4Header is a minimal ISO media header that passes content sniffing.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
	'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

type fixedProber struct{ duration float64 }

func (p fixedProber) DurationSeconds(context.Context, string) (float64, error) {
	return p.duration, nil
}

func testStorageAt(workDir string) config.Storage {
	return config.Storage{
		WorkDir:     workDir,
		ClipsDir:    "clips",
		MontagesDir: "montages",
	}
}

func newWorkspace(t *testing.T) *store.Workspace {
	t.Helper()
	return store.NewWorkspace(testStorageAt(t.TempDir()), fixedProber{duration: 20})
}

func writeClip(t *testing.T, ws *store.Workspace, projectName, markerId, participantId string, content []byte) string {
	t.Helper()
	dir := ws.ClipsDir(projectName)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, export.ClipFileName(markerId, participantId))
	require.NoError(t, os.WriteFile(path, content, 0o640))
	return path
}

// TestWorkspacePaths verifies the per-project directory layout and that the
// project name is sanitized before it becomes a path element.
func TestWorkspacePaths(t *testing.T) {
	ws := newWorkspace(t)

	clips := ws.ClipsDir("raid night #2")
	montages := ws.MontagesDir("raid night #2")
	snapshot := ws.SnapshotPath("raid night #2")

	assert.Contains(t, clips, filepath.Join("raid_night_2", "clips"))
	assert.Contains(t, montages, filepath.Join("raid_night_2", "montages"))
	assert.Contains(t, snapshot, filepath.Join("raid_night_2", "project.json"))
}

// TestProbeClipStatus checks the extraction-state report against a mix of
// existing and missing files.
func TestProbeClipStatus(t *testing.T) {
	ws := newWorkspace(t)
	requests := []model.ClipRequest{
		{MarkerId: "m-1", MarkerLabel: "first", ParticipantId: "p-1", ParticipantName: "Alice"},
		{MarkerId: "m-1", MarkerLabel: "first", ParticipantId: "p-2", ParticipantName: "Bob"},
	}
	writeClip(t, ws, "proj", "m-1", "p-1", mp4Header)

	probes := ws.ProbeClipStatus("proj", requests)
	require.Len(t, probes, 2)
	assert.True(t, probes[0].IsExtracted)
	assert.Equal(t, "first", probes[0].MarkerLabel)
	assert.Equal(t, export.ClipFileName("m-1", "p-1"), probes[0].FileName)
	assert.False(t, probes[1].IsExtracted)
}

// TestListExtractedClips verifies the listing skips files that are not
// actually video, whatever their extension claims.
func TestListExtractedClips(t *testing.T) {
	ws := newWorkspace(t)
	writeClip(t, ws, "proj", "m-1", "p-1", mp4Header)
	// A failed download can leave an HTML error page with a .mp4 name.
	writeClip(t, ws, "proj", "m-2", "p-1", []byte("<html>403 Forbidden</html>"))

	clips, err := ws.ListExtractedClips(context.Background(), "proj")
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, export.ClipFileName("m-1", "p-1"), clips[0].FileName)
	assert.InDelta(t, 20.0, clips[0].DurationSeconds, 1e-9)
}

// TestListExtractedClipsMissingDir confirms a project that never extracted
// anything lists as empty rather than failing.
func TestListExtractedClipsMissingDir(t *testing.T) {
	ws := newWorkspace(t)
	clips, err := ws.ListExtractedClips(context.Background(), "proj")
	assert.NoError(t, err)
	assert.Empty(t, clips)
}

// TestReconcile verifies the request-to-file mapping: missing and non-video
// files drop out, survivors keep request order with contiguous Order values
// and probed durations.
func TestReconcile(t *testing.T) {
	ws := newWorkspace(t)
	requests := []model.ClipRequest{
		{MarkerId: "m-1", MarkerLabel: "first", ParticipantId: "p-1", ParticipantName: "Alice", Index: 0},
		{MarkerId: "m-1", MarkerLabel: "first", ParticipantId: "p-2", ParticipantName: "Bob", Index: 1},
		{MarkerId: "m-2", MarkerLabel: "second", ParticipantId: "p-1", ParticipantName: "Alice", Index: 2},
	}
	writeClip(t, ws, "proj", "m-1", "p-1", mp4Header)
	// Bob's file is missing; Alice's second clip is a fake video.
	writeClip(t, ws, "proj", "m-2", "p-1", []byte("<html>oops</html>"))

	clips, err := ws.Reconcile(context.Background(), "proj", requests)
	require.NoError(t, err)
	require.Len(t, clips, 1)

	clip := clips[0]
	assert.Equal(t, "m-1", clip.SourceMarkerId)
	assert.Equal(t, "p-1", clip.SourceParticipantId)
	assert.Equal(t, "Alice", clip.ParticipantName)
	assert.Equal(t, 0, clip.Order)
	assert.InDelta(t, 20.0, clip.DurationSeconds, 1e-9)
	assert.NotEmpty(t, clip.Id)
}
