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

// Package model defines the core data structures for the application.
// This file contains the entities that make up a project: the participants
// whose recordings are being aligned, the event markers placed on the shared
// timeline, and the per-participant clip decisions each marker owns. These
// structs are plain data; all mutation rules and invariants live in the
// project aggregate.
package model

// PlatformKind identifies the hosting platform of a participant's recording.
// The core never interprets the value beyond display; the retrieval process
// resolves the locator itself.
type PlatformKind string

const (
	PlatformTwitch  PlatformKind = "twitch"
	PlatformYouTube PlatformKind = "youtube"
	PlatformOther   PlatformKind = "other"
)

// ClipStatus is the review state of a clip decision. Decisions are created
// Pending and move to Included or Excluded only through explicit review.
type ClipStatus string

const (
	ClipPending  ClipStatus = "pending"
	ClipIncluded ClipStatus = "included"
	ClipExcluded ClipStatus = "excluded"
)

// Participant is one recording of the shared event. Exactly one participant
// per project is the reference; its recording defines the shared timeline
// origin and its sync offset is always zero. Every other participant is
// unsynchronized (SyncOffsetSeconds == nil) until the user aligns it.
type Participant struct {
	Id                string       `json:"id"`
	DisplayName       string       `json:"display_name"`
	RecordingLocator  string       `json:"recording_locator"` // VOD URL handed verbatim to the retrieval process.
	Platform          PlatformKind `json:"platform"`
	SyncOffsetSeconds *float64     `json:"sync_offset_seconds,omitempty"`
	IsReference       bool         `json:"is_reference"`
	ColorTag          string       `json:"color_tag"` // Display color, assigned deterministically from the palette.
}

// Synchronized reports whether the participant has a usable sync offset.
func (p *Participant) Synchronized() bool {
	return p.SyncOffsetSeconds != nil
}

// EventMarker is a labeled instant in shared event time: seconds relative to
// the project's reference start time. Markers are kept sorted ascending by
// EventTimeSeconds.
type EventMarker struct {
	Id               string  `json:"id"`
	Label            string  `json:"label"`
	EventTimeSeconds float64 `json:"event_time_seconds"`
}

// ClipDecision is a participant's per-marker in/out boundary and inclusion
// status. Offsets are relative to the marker's event time, so the in offset
// is typically negative. Invariant: InOffsetSeconds < OutOffsetSeconds.
type ClipDecision struct {
	MarkerId         string     `json:"marker_id"`
	ParticipantId    string     `json:"participant_id"`
	InOffsetSeconds  float64    `json:"in_offset_seconds"`
	OutOffsetSeconds float64    `json:"out_offset_seconds"`
	Status           ClipStatus `json:"status"`
}

// Snapshot is an immutable copy of a project's committed state, handed to
// change subscribers and to the read-only pipeline stages (the clip request
// builder works from a snapshot, never from the live aggregate).
type Snapshot struct {
	Version                   int            `json:"version"`
	Id                        string         `json:"id"`
	Name                      string         `json:"name"`
	ReferenceStartTimeSeconds *float64       `json:"reference_start_time_seconds,omitempty"`
	Participants              []Participant  `json:"participants"`
	Markers                   []EventMarker  `json:"markers"`
	Decisions                 []ClipDecision `json:"decisions"`
}

// Participant returns the participant with the given id, or nil.
func (s *Snapshot) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].Id == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Marker returns the marker with the given id, or nil.
func (s *Snapshot) Marker(id string) *EventMarker {
	for i := range s.Markers {
		if s.Markers[i].Id == id {
			return &s.Markers[i]
		}
	}
	return nil
}

// Decision returns the clip decision for the given marker/participant pair,
// or nil.
func (s *Snapshot) Decision(markerId, participantId string) *ClipDecision {
	for i := range s.Decisions {
		if s.Decisions[i].MarkerId == markerId && s.Decisions[i].ParticipantId == participantId {
			return &s.Decisions[i]
		}
	}
	return nil
}
