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

// Package project_test contains unit tests for the project aggregate: the
// participant/marker/decision matrix invariants, the reference-participant
// rules, and the change-notification hook.
package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/project"
)

func testDefaults() config.Clips {
	return config.Clips{DefaultInOffsetSeconds: -10, DefaultOutOffsetSeconds: 10}
}

func newTestProject(t *testing.T) *project.Aggregate {
	t.Helper()
	agg, err := project.New("raid night", testDefaults(), "Alice", "https://twitch.tv/videos/1", model.PlatformTwitch)
	require.NoError(t, err)
	return agg
}

// TestNewProject verifies construction: the project starts with exactly its
// reference participant, whose sync offset is zero by definition, and with
// no reference start time.
func TestNewProject(t *testing.T) {
	agg := newTestProject(t)
	snap := agg.Snapshot()

	require.Len(t, snap.Participants, 1)
	ref := snap.Participants[0]
	assert.True(t, ref.IsReference)
	assert.Equal(t, "Alice", ref.DisplayName)
	require.NotNil(t, ref.SyncOffsetSeconds)
	assert.InDelta(t, 0.0, *ref.SyncOffsetSeconds, 1e-9)
	assert.Nil(t, snap.ReferenceStartTimeSeconds)
	assert.NotEmpty(t, snap.Id)
}

// TestNewProjectRequiresDisplayName confirms an empty reference name is
// rejected.
func TestNewProjectRequiresDisplayName(t *testing.T) {
	_, err := project.New("p", testDefaults(), "", "", model.PlatformOther)
	assert.ErrorIs(t, err, project.ErrEmptyDisplayName)
}

// TestAddParticipantBackfillsDecisions verifies the matrix invariant from
// the participant side: a participant added after markers exist receives one
// Pending decision per marker, carrying the project defaults.
func TestAddParticipantBackfillsDecisions(t *testing.T) {
	agg := newTestProject(t)
	m1 := agg.AddMarker("first blood", 30)
	m2 := agg.AddMarker("boss kill", 90)

	p, err := agg.AddParticipant("Bob", "https://twitch.tv/videos/2", model.PlatformTwitch)
	require.NoError(t, err)

	snap := agg.Snapshot()
	for _, m := range []model.EventMarker{m1, m2} {
		d := snap.Decision(m.Id, p.Id)
		require.NotNil(t, d)
		assert.Equal(t, model.ClipPending, d.Status)
		assert.InDelta(t, -10.0, d.InOffsetSeconds, 1e-9)
		assert.InDelta(t, 10.0, d.OutOffsetSeconds, 1e-9)
	}
	// A new participant is unsynchronized until an offset is set.
	assert.False(t, snap.Participant(p.Id).Synchronized())
}

// TestAddMarkerBackfillsDecisions verifies the matrix invariant from the
// marker side and that markers stay sorted by event time regardless of
// insertion order.
func TestAddMarkerBackfillsDecisions(t *testing.T) {
	agg := newTestProject(t)
	_, err := agg.AddParticipant("Bob", "", model.PlatformYouTube)
	require.NoError(t, err)

	agg.AddMarker("late", 120)
	agg.AddMarker("early", 10)
	agg.AddMarker("middle", 60)

	snap := agg.Snapshot()
	require.Len(t, snap.Markers, 3)
	assert.Equal(t, "early", snap.Markers[0].Label)
	assert.Equal(t, "middle", snap.Markers[1].Label)
	assert.Equal(t, "late", snap.Markers[2].Label)

	// 3 markers x 2 participants.
	assert.Len(t, snap.Decisions, 6)
}

// TestPaletteAssignment confirms participants get distinct palette colors in
// order, wrapping when the palette is exhausted.
func TestPaletteAssignment(t *testing.T) {
	agg := newTestProject(t)
	for i := 0; i < len(config.DefaultPalette); i++ {
		_, err := agg.AddParticipant("p", "", model.PlatformOther)
		require.NoError(t, err)
	}

	snap := agg.Snapshot()
	require.Len(t, snap.Participants, len(config.DefaultPalette)+1)
	assert.Equal(t, config.DefaultPalette[0], snap.Participants[0].ColorTag)
	assert.Equal(t, config.DefaultPalette[1], snap.Participants[1].ColorTag)
	// The participant after a full cycle wraps back to the first color.
	assert.Equal(t, config.DefaultPalette[0], snap.Participants[len(config.DefaultPalette)].ColorTag)
}

// TestRemoveParticipantCascades verifies removing a participant drops its
// decisions for every marker and leaves everyone else's untouched.
func TestRemoveParticipantCascades(t *testing.T) {
	agg := newTestProject(t)
	bob, err := agg.AddParticipant("Bob", "", model.PlatformTwitch)
	require.NoError(t, err)
	agg.AddMarker("m1", 10)
	agg.AddMarker("m2", 20)

	require.Len(t, agg.Snapshot().Decisions, 4)
	require.NoError(t, agg.RemoveParticipant(bob.Id))

	snap := agg.Snapshot()
	assert.Len(t, snap.Participants, 1)
	assert.Len(t, snap.Decisions, 2)
	for _, d := range snap.Decisions {
		assert.NotEqual(t, bob.Id, d.ParticipantId)
	}
}

// TestRemoveReferenceRejected confirms the reference participant cannot be
// removed; the reference role must be reassigned first.
func TestRemoveReferenceRejected(t *testing.T) {
	agg := newTestProject(t)
	ref := agg.Snapshot().Participants[0]

	assert.ErrorIs(t, agg.RemoveParticipant(ref.Id), project.ErrCannotRemoveReference)

	// After reassigning the reference, the old reference is removable.
	bob, err := agg.AddParticipant("Bob", "", model.PlatformTwitch)
	require.NoError(t, err)
	require.NoError(t, agg.SetReference(bob.Id))
	assert.NoError(t, agg.RemoveParticipant(ref.Id))
}

// TestSetReference verifies the role handoff: the new reference's offset
// becomes zero, the old reference loses its offset and must be
// re-synchronized against the new origin.
func TestSetReference(t *testing.T) {
	agg := newTestProject(t)
	bob, err := agg.AddParticipant("Bob", "", model.PlatformTwitch)
	require.NoError(t, err)
	require.NoError(t, agg.SynchronizeParticipant(bob.Id, 12.5))

	require.NoError(t, agg.SetReference(bob.Id))

	snap := agg.Snapshot()
	newRef := snap.Participant(bob.Id)
	assert.True(t, newRef.IsReference)
	require.NotNil(t, newRef.SyncOffsetSeconds)
	assert.InDelta(t, 0.0, *newRef.SyncOffsetSeconds, 1e-9)

	oldRef := snap.Participants[0]
	assert.False(t, oldRef.IsReference)
	assert.Nil(t, oldRef.SyncOffsetSeconds)
}

// TestSynchronizeReferenceRejected confirms the reference's offset is fixed
// at zero and cannot be changed directly.
func TestSynchronizeReferenceRejected(t *testing.T) {
	agg := newTestProject(t)
	ref := agg.Snapshot().Participants[0]

	assert.ErrorIs(t, agg.SynchronizeParticipant(ref.Id, 5), project.ErrReferenceOffsetFixed)
}

// TestSetClipDecision verifies partial updates: only the patched fields
// change, and a patch producing inverted bounds is rejected atomically,
// leaving the decision exactly as it was.
func TestSetClipDecision(t *testing.T) {
	agg := newTestProject(t)
	ref := agg.Snapshot().Participants[0]
	m := agg.AddMarker("clutch", 45)

	included := model.ClipIncluded
	in := -5.0
	require.NoError(t, agg.SetClipDecision(m.Id, ref.Id, project.ClipPatch{
		InOffsetSeconds: &in,
		Status:          &included,
	}))

	snap := agg.Snapshot()
	d := snap.Decision(m.Id, ref.Id)
	require.NotNil(t, d)
	assert.InDelta(t, -5.0, d.InOffsetSeconds, 1e-9)
	assert.InDelta(t, 10.0, d.OutOffsetSeconds, 1e-9)
	assert.Equal(t, model.ClipIncluded, d.Status)

	// An out point at or before the in point is invalid; the decision must
	// keep its previous boundaries and status.
	badOut := -6.0
	err := agg.SetClipDecision(m.Id, ref.Id, project.ClipPatch{OutOffsetSeconds: &badOut})
	assert.ErrorIs(t, err, project.ErrInvalidClipBounds)

	snapAfter := agg.Snapshot()
	unchanged := snapAfter.Decision(m.Id, ref.Id)
	assert.InDelta(t, -5.0, unchanged.InOffsetSeconds, 1e-9)
	assert.InDelta(t, 10.0, unchanged.OutOffsetSeconds, 1e-9)
	assert.Equal(t, model.ClipIncluded, unchanged.Status)
}

// TestResetClipDecision confirms a reset restores the default boundaries
// without touching the review status.
func TestResetClipDecision(t *testing.T) {
	agg := newTestProject(t)
	ref := agg.Snapshot().Participants[0]
	m := agg.AddMarker("m", 1)

	excluded := model.ClipExcluded
	in, out := -2.0, 3.0
	require.NoError(t, agg.SetClipDecision(m.Id, ref.Id, project.ClipPatch{
		InOffsetSeconds: &in, OutOffsetSeconds: &out, Status: &excluded,
	}))

	require.NoError(t, agg.ResetClipDecision(m.Id, ref.Id))

	snap := agg.Snapshot()
	d := snap.Decision(m.Id, ref.Id)
	assert.InDelta(t, -10.0, d.InOffsetSeconds, 1e-9)
	assert.InDelta(t, 10.0, d.OutOffsetSeconds, 1e-9)
	assert.Equal(t, model.ClipExcluded, d.Status)
}

// TestRemoveMarkerCascades verifies removing a marker drops its decisions
// for every participant.
func TestRemoveMarkerCascades(t *testing.T) {
	agg := newTestProject(t)
	_, err := agg.AddParticipant("Bob", "", model.PlatformTwitch)
	require.NoError(t, err)
	m1 := agg.AddMarker("keep", 10)
	m2 := agg.AddMarker("drop", 20)

	require.NoError(t, agg.RemoveMarker(m2.Id))

	snap := agg.Snapshot()
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, m1.Id, snap.Markers[0].Id)
	assert.Len(t, snap.Decisions, 2)

	assert.ErrorIs(t, agg.RemoveMarker(m2.Id), project.ErrMarkerNotFound)
}

// TestSubscribeNotifiesOnCommit verifies the observer hook: every committed
// mutation produces exactly one snapshot with a strictly increasing version,
// and rejected mutations produce none.
func TestSubscribeNotifiesOnCommit(t *testing.T) {
	agg := newTestProject(t)

	var seen []model.Snapshot
	agg.Subscribe(func(snap model.Snapshot) {
		seen = append(seen, snap)
	})

	start := 100.0
	agg.SetReferenceStartTime(&start)
	agg.AddMarker("m", 5)

	// A rejected mutation must not notify.
	ref := agg.Snapshot().Participants[0]
	assert.Error(t, agg.SynchronizeParticipant(ref.Id, 1))

	require.Len(t, seen, 2)
	assert.Greater(t, seen[1].Version, seen[0].Version)
	require.NotNil(t, seen[0].ReferenceStartTimeSeconds)
	assert.InDelta(t, 100.0, *seen[0].ReferenceStartTimeSeconds, 1e-9)
}

// TestFromSnapshot verifies a persisted snapshot reconstructs an equivalent
// aggregate.
func TestFromSnapshot(t *testing.T) {
	agg := newTestProject(t)
	start := 50.0
	agg.SetReferenceStartTime(&start)
	agg.AddMarker("m", 30)

	restored := project.FromSnapshot(agg.Snapshot(), testDefaults())

	assert.Equal(t, agg.Id(), restored.Id())
	assert.Equal(t, agg.Name(), restored.Name())
	assert.Equal(t, agg.Snapshot(), restored.Snapshot())
}
