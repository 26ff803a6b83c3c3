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

// Package project implements the project aggregate: the canonical in-memory
// state of one editing project and every rule that governs its mutation.
//
// The aggregate exclusively owns participants, event markers, and clip
// decisions. Every marker owns exactly one clip decision per participant;
// adding a marker back-fills decisions for existing participants and adding
// a participant back-fills decisions for existing markers, while removal of
// either cascades. Mutators are synchronous and side-effect free beyond the
// state transition itself: persistence and any other reaction to committed
// state happens through subscribers registered with Subscribe, which receive
// an immutable snapshot after every successful mutation.
package project

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/model"
)

// Subscriber is a change-notification hook invoked with the committed
// snapshot after every successful mutation.
type Subscriber func(model.Snapshot)

// Aggregate holds the canonical project state. All access goes through its
// methods; the zero value is not usable, construct with New or FromSnapshot.
type Aggregate struct {
	mu           sync.Mutex
	version      int
	id           string
	name         string
	refStart     *float64
	participants []model.Participant
	markers      []model.EventMarker
	decisions    []model.ClipDecision
	defaults     config.Clips
	subscribers  []Subscriber
}

// New creates a project with its reference participant. A project is never
// observable without a reference, so the reference participant's details are
// part of construction rather than a separate mutation.
func New(name string, defaults config.Clips, refName, refLocator string, refPlatform model.PlatformKind) (*Aggregate, error) {
	if refName == "" {
		return nil, ErrEmptyDisplayName
	}
	zero := 0.0
	a := &Aggregate{
		id:       uuid.NewString(),
		name:     name,
		defaults: defaults,
	}
	a.participants = append(a.participants, model.Participant{
		Id:                uuid.NewString(),
		DisplayName:       refName,
		RecordingLocator:  refLocator,
		Platform:          refPlatform,
		SyncOffsetSeconds: &zero,
		IsReference:       true,
		ColorTag:          config.DefaultPalette[0],
	})
	return a, nil
}

// FromSnapshot reconstructs an aggregate from a persisted snapshot.
func FromSnapshot(snap model.Snapshot, defaults config.Clips) *Aggregate {
	a := &Aggregate{
		version:      snap.Version,
		id:           snap.Id,
		name:         snap.Name,
		refStart:     snap.ReferenceStartTimeSeconds,
		participants: append([]model.Participant(nil), snap.Participants...),
		markers:      append([]model.EventMarker(nil), snap.Markers...),
		decisions:    append([]model.ClipDecision(nil), snap.Decisions...),
		defaults:     defaults,
	}
	return a
}

// Subscribe registers a change-notification hook. Subscribers are invoked
// after the mutation commits, outside the aggregate lock, in registration
// order.
func (a *Aggregate) Subscribe(s Subscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscribers = append(a.subscribers, s)
}

// Id returns the project's stable identifier.
func (a *Aggregate) Id() string {
	return a.id
}

// Name returns the project's display name, which also keys its workspace
// directory.
func (a *Aggregate) Name() string {
	return a.name
}

// Snapshot returns an immutable copy of the committed state.
func (a *Aggregate) Snapshot() model.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregate) snapshotLocked() model.Snapshot {
	var refStart *float64
	if a.refStart != nil {
		v := *a.refStart
		refStart = &v
	}
	return model.Snapshot{
		Version:                   a.version,
		Id:                        a.id,
		Name:                      a.name,
		ReferenceStartTimeSeconds: refStart,
		Participants:              append([]model.Participant(nil), a.participants...),
		Markers:                   append([]model.EventMarker(nil), a.markers...),
		Decisions:                 append([]model.ClipDecision(nil), a.decisions...),
	}
}

// commitLocked bumps the version, copies the snapshot and returns the
// notification closure to run after the lock is released.
func (a *Aggregate) commitLocked() func() {
	a.version++
	snap := a.snapshotLocked()
	subs := append([]Subscriber(nil), a.subscribers...)
	return func() {
		for _, s := range subs {
			s(snap)
		}
	}
}

// SetReferenceStartTime sets (or clears, with nil) the instant the tracked
// event began on the reference recording. It does not validate participant
// offsets; the clip request builder guards against an unset origin.
func (a *Aggregate) SetReferenceStartTime(seconds *float64) {
	a.mu.Lock()
	if seconds != nil {
		v := *seconds
		a.refStart = &v
	} else {
		a.refStart = nil
	}
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
}

// AddParticipant adds an unsynchronized participant, assigns it the next
// palette color, and back-fills one Pending clip decision per existing
// marker.
func (a *Aggregate) AddParticipant(displayName, locator string, platform model.PlatformKind) (model.Participant, error) {
	if displayName == "" {
		return model.Participant{}, ErrEmptyDisplayName
	}
	a.mu.Lock()
	p := model.Participant{
		Id:               uuid.NewString(),
		DisplayName:      displayName,
		RecordingLocator: locator,
		Platform:         platform,
		ColorTag:         config.DefaultPalette[len(a.participants)%len(config.DefaultPalette)],
	}
	a.participants = append(a.participants, p)
	for _, m := range a.markers {
		a.decisions = append(a.decisions, a.defaultDecision(m.Id, p.Id))
	}
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return p, nil
}

// RemoveParticipant removes a participant and cascades removal of its clip
// decisions across all markers. Removing the reference participant is
// rejected; reassign the reference with SetReference first.
func (a *Aggregate) RemoveParticipant(id string) error {
	a.mu.Lock()
	idx := a.participantIndexLocked(id)
	if idx < 0 {
		a.mu.Unlock()
		return ErrParticipantNotFound
	}
	if a.participants[idx].IsReference {
		a.mu.Unlock()
		return ErrCannotRemoveReference
	}
	a.participants = append(a.participants[:idx], a.participants[idx+1:]...)
	kept := a.decisions[:0]
	for _, d := range a.decisions {
		if d.ParticipantId != id {
			kept = append(kept, d)
		}
	}
	a.decisions = kept
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return nil
}

// SetReference reassigns the reference role. The new reference's offset
// becomes zero by definition; the previous reference loses its offset and
// must be re-synchronized against the new origin.
func (a *Aggregate) SetReference(id string) error {
	a.mu.Lock()
	idx := a.participantIndexLocked(id)
	if idx < 0 {
		a.mu.Unlock()
		return ErrParticipantNotFound
	}
	zero := 0.0
	for i := range a.participants {
		if i == idx {
			a.participants[i].IsReference = true
			a.participants[i].SyncOffsetSeconds = &zero
		} else if a.participants[i].IsReference {
			a.participants[i].IsReference = false
			a.participants[i].SyncOffsetSeconds = nil
		}
	}
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return nil
}

// SynchronizeParticipant sets a participant's sync offset in seconds. The
// offset may be negative and has no magnitude bound. The reference
// participant cannot be synchronized; its offset defines the origin.
func (a *Aggregate) SynchronizeParticipant(id string, offsetSeconds float64) error {
	a.mu.Lock()
	idx := a.participantIndexLocked(id)
	if idx < 0 {
		a.mu.Unlock()
		return ErrParticipantNotFound
	}
	if a.participants[idx].IsReference {
		a.mu.Unlock()
		return ErrReferenceOffsetFixed
	}
	v := offsetSeconds
	a.participants[idx].SyncOffsetSeconds = &v
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return nil
}

// AddMarker inserts a marker at the given event time, keeps the marker list
// sorted ascending by event time, and creates one Pending clip decision per
// existing participant.
func (a *Aggregate) AddMarker(label string, eventTimeSeconds float64) model.EventMarker {
	a.mu.Lock()
	m := model.EventMarker{
		Id:               uuid.NewString(),
		Label:            label,
		EventTimeSeconds: eventTimeSeconds,
	}
	a.markers = append(a.markers, m)
	sort.SliceStable(a.markers, func(i, j int) bool {
		return a.markers[i].EventTimeSeconds < a.markers[j].EventTimeSeconds
	})
	for _, p := range a.participants {
		a.decisions = append(a.decisions, a.defaultDecision(m.Id, p.Id))
	}
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return m
}

// RemoveMarker removes a marker and cascades removal of all its clip
// decisions.
func (a *Aggregate) RemoveMarker(id string) error {
	a.mu.Lock()
	found := false
	markers := a.markers[:0]
	for _, m := range a.markers {
		if m.Id == id {
			found = true
			continue
		}
		markers = append(markers, m)
	}
	if !found {
		a.mu.Unlock()
		return ErrMarkerNotFound
	}
	a.markers = markers
	kept := a.decisions[:0]
	for _, d := range a.decisions {
		if d.MarkerId != id {
			kept = append(kept, d)
		}
	}
	a.decisions = kept
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return nil
}

// ClipPatch is a partial update of a clip decision. Nil fields are left
// unchanged.
type ClipPatch struct {
	InOffsetSeconds  *float64
	OutOffsetSeconds *float64
	Status           *model.ClipStatus
}

// SetClipDecision applies a partial update to the decision for the given
// marker/participant pair. A patch whose resulting bounds would violate
// in < out is rejected with ErrInvalidClipBounds and leaves the decision
// unchanged.
func (a *Aggregate) SetClipDecision(markerId, participantId string, patch ClipPatch) error {
	a.mu.Lock()
	idx := a.decisionIndexLocked(markerId, participantId)
	if idx < 0 {
		a.mu.Unlock()
		return ErrDecisionNotFound
	}
	next := a.decisions[idx]
	if patch.InOffsetSeconds != nil {
		next.InOffsetSeconds = *patch.InOffsetSeconds
	}
	if patch.OutOffsetSeconds != nil {
		next.OutOffsetSeconds = *patch.OutOffsetSeconds
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if next.InOffsetSeconds >= next.OutOffsetSeconds {
		a.mu.Unlock()
		return ErrInvalidClipBounds
	}
	a.decisions[idx] = next
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return nil
}

// ResetClipDecision restores the project-wide default boundaries on a
// decision without changing its review status.
func (a *Aggregate) ResetClipDecision(markerId, participantId string) error {
	a.mu.Lock()
	idx := a.decisionIndexLocked(markerId, participantId)
	if idx < 0 {
		a.mu.Unlock()
		return ErrDecisionNotFound
	}
	a.decisions[idx].InOffsetSeconds = a.defaults.DefaultInOffsetSeconds
	a.decisions[idx].OutOffsetSeconds = a.defaults.DefaultOutOffsetSeconds
	notify := a.commitLocked()
	a.mu.Unlock()
	notify()
	return nil
}

func (a *Aggregate) defaultDecision(markerId, participantId string) model.ClipDecision {
	return model.ClipDecision{
		MarkerId:         markerId,
		ParticipantId:    participantId,
		InOffsetSeconds:  a.defaults.DefaultInOffsetSeconds,
		OutOffsetSeconds: a.defaults.DefaultOutOffsetSeconds,
		Status:           model.ClipPending,
	}
}

func (a *Aggregate) participantIndexLocked(id string) int {
	for i := range a.participants {
		if a.participants[i].Id == id {
			return i
		}
	}
	return -1
}

func (a *Aggregate) decisionIndexLocked(markerId, participantId string) int {
	for i := range a.decisions {
		if a.decisions[i].MarkerId == markerId && a.decisions[i].ParticipantId == participantId {
			return i
		}
	}
	return -1
}
