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

// Package montage_test contains unit tests for clip grouping and the render
// coordinator.
package montage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/montage"
)

// testClips builds a 2x2 matrix of montage clips in marker-first order.
func testClips() []model.MontageClip {
	var clips []model.MontageClip
	markers := []struct{ id, label string }{{"m-1", "first"}, {"m-2", "second"}}
	participants := []struct{ id, name string }{{"p-1", "Alice"}, {"p-2", "Bob"}}
	for _, m := range markers {
		for _, p := range participants {
			clips = append(clips, model.MontageClip{
				SourceMarkerId:      m.id,
				SourceParticipantId: p.id,
				ParticipantName:     p.name,
				MarkerLabel:         m.label,
				DurationSeconds:     10,
				Order:               len(clips),
			})
		}
	}
	return clips
}

// TestGroupByParticipant verifies partitioning along the participant axis:
// every clip lands in exactly one group, groups appear in first-clip order,
// and within each group the input order is preserved.
func TestGroupByParticipant(t *testing.T) {
	groups := montage.GroupClips(testClips(), model.GroupByParticipant)

	require.Len(t, groups, 2)
	assert.Equal(t, "Alice", groups[0].Label)
	assert.Equal(t, "Bob", groups[1].Label)

	total := 0
	for _, g := range groups {
		total += len(g.Clips)
		for _, c := range g.Clips {
			assert.Equal(t, g.Clips[0].SourceParticipantId, c.SourceParticipantId)
		}
	}
	assert.Equal(t, 4, total)

	// Alice's clips keep marker order.
	assert.Equal(t, "m-1", groups[0].Clips[0].SourceMarkerId)
	assert.Equal(t, "m-2", groups[0].Clips[1].SourceMarkerId)
}

// TestGroupByMarker verifies the marker axis produces one group per marker.
func TestGroupByMarker(t *testing.T) {
	groups := montage.GroupClips(testClips(), model.GroupByMarker)

	require.Len(t, groups, 2)
	assert.Equal(t, "first", groups[0].Label)
	assert.Equal(t, "second", groups[1].Label)
	assert.Len(t, groups[0].Clips, 2)
	assert.Len(t, groups[1].Clips, 2)
}

// TestGroupKeyCollisions verifies distinct labels that sanitize identically
// still get distinct filename keys.
func TestGroupKeyCollisions(t *testing.T) {
	clips := []model.MontageClip{
		{SourceParticipantId: "p-1", ParticipantName: "a b"},
		{SourceParticipantId: "p-2", ParticipantName: "a/b"},
		{SourceParticipantId: "p-3", ParticipantName: "a?b"},
	}

	groups := montage.GroupClips(clips, model.GroupByParticipant)
	require.Len(t, groups, 3)
	assert.Equal(t, "a_b", groups[0].Key)
	assert.Equal(t, "a_b_2", groups[1].Key)
	assert.Equal(t, "a_b_3", groups[2].Key)
}

// TestGroupClipsEmpty confirms an empty input yields no groups.
func TestGroupClipsEmpty(t *testing.T) {
	assert.Empty(t, montage.GroupClips(nil, model.GroupByParticipant))
}

// TestTotalDurationSeconds checks the crossfade arithmetic: transitions
// overlap consecutive clips, so each one shortens the montage.
func TestTotalDurationSeconds(t *testing.T) {
	group := model.ClipGroup{Clips: []model.MontageClip{
		{DurationSeconds: 10}, {DurationSeconds: 15}, {DurationSeconds: 20},
	}}

	assert.InDelta(t, 45.0, montage.TotalDurationSeconds(group, 0), 1e-9)
	assert.InDelta(t, 44.0, montage.TotalDurationSeconds(group, 0.5), 1e-9)

	single := model.ClipGroup{Clips: []model.MontageClip{{DurationSeconds: 10}}}
	assert.InDelta(t, 10.0, montage.TotalDurationSeconds(single, 0.5), 1e-9)
}
