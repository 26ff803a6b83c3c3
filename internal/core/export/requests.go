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

// Package export turns committed project state into extracted clip files on
// disk. The request builder projects included clip decisions onto the shared
// timeline, the coordinator drives the retrieval tool clip by clip, and the
// progress types carry the batch lifecycle to any interested sink.
package export

import (
	"errors"

	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/timeline"
)

// ErrNoReferenceStart reports a build attempted before the reference start
// time has been set; no absolute time can be computed without the origin.
var ErrNoReferenceStart = errors.New("export: reference start time is not set")

// BuildRequests derives the concrete clip extraction requests from a project
// snapshot. Only decisions marked Included produce requests. Decisions whose
// participant has no sync offset yet are skipped silently, matching the rule
// that an unsynchronized participant simply contributes nothing. Requests are
// ordered marker-first (markers ascend by event time in the snapshot), then
// by participant order, and indexed sequentially in that order.
func BuildRequests(snap model.Snapshot) ([]model.ClipRequest, error) {
	if snap.ReferenceStartTimeSeconds == nil {
		return nil, ErrNoReferenceStart
	}
	refStart := *snap.ReferenceStartTimeSeconds

	var requests []model.ClipRequest
	for _, m := range snap.Markers {
		for _, p := range snap.Participants {
			d := snap.Decision(m.Id, p.Id)
			if d == nil || d.Status != model.ClipIncluded {
				continue
			}
			if !p.Synchronized() {
				continue
			}
			in := timeline.AbsoluteTime(refStart, m.EventTimeSeconds, *p.SyncOffsetSeconds, d.InOffsetSeconds)
			out := timeline.AbsoluteTime(refStart, m.EventTimeSeconds, *p.SyncOffsetSeconds, d.OutOffsetSeconds)
			if err := timeline.NewClipTiming(in, out).Validate(); err != nil {
				continue
			}
			requests = append(requests, model.ClipRequest{
				MarkerId:           m.Id,
				MarkerLabel:        m.Label,
				ParticipantId:      p.Id,
				ParticipantName:    p.DisplayName,
				RecordingLocator:   p.RecordingLocator,
				AbsoluteInSeconds:  in,
				AbsoluteOutSeconds: out,
				Index:              len(requests),
			})
		}
	}
	return requests, nil
}
