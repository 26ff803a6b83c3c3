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

package project

import "errors"

// Sentinel errors returned by aggregate mutators. All of them are rejected
// synchronously; a rejected mutation leaves the aggregate untouched and
// notifies no subscribers.
var (
	// ErrInvalidClipBounds is returned when a clip decision patch would make
	// the in offset greater than or equal to the out offset.
	ErrInvalidClipBounds = errors.New("clip in offset must be less than out offset")

	// ErrParticipantNotFound is returned when a mutation names an unknown
	// participant.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrMarkerNotFound is returned when a mutation names an unknown marker.
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrDecisionNotFound is returned when no clip decision exists for a
	// marker/participant pair.
	ErrDecisionNotFound = errors.New("clip decision not found")

	// ErrCannotRemoveReference is returned when removing the reference
	// participant without first reassigning the reference role. A project
	// without a reference participant is invalid.
	ErrCannotRemoveReference = errors.New("cannot remove the reference participant; reassign the reference first")

	// ErrReferenceOffsetFixed is returned when synchronizing the reference
	// participant: its offset defines the timeline origin and is always zero.
	ErrReferenceOffsetFixed = errors.New("the reference participant's sync offset is fixed at zero")

	// ErrEmptyDisplayName is returned when adding a participant without a
	// display name. The name labels clips and montage groups, so it cannot
	// be blank.
	ErrEmptyDisplayName = errors.New("participant display name must not be empty")
)
