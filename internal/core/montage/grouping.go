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

// Package montage assembles extracted clips into rendered output files. The
// grouping step partitions clips into render groups, and the render
// coordinator drives one external render invocation per group.
package montage

import (
	"fmt"

	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
)

// GroupClips partitions montage clips into render groups by the chosen axis.
// Clip order within each group preserves the input order, and groups appear
// in the order their first clip appears, so identical input always yields
// identical groups. Every clip lands in exactly one group. Distinct labels
// that sanitize to the same filename key get a numeric suffix to keep the
// output files apart.
func GroupClips(clips []model.MontageClip, by model.GroupBy) []model.ClipGroup {
	var groups []model.ClipGroup
	index := make(map[string]int)
	usedKeys := make(map[string]int)

	for _, clip := range clips {
		var id, label string
		switch by {
		case model.GroupByMarker:
			id, label = clip.SourceMarkerId, clip.MarkerLabel
		default:
			id, label = clip.SourceParticipantId, clip.ParticipantName
		}

		i, ok := index[id]
		if !ok {
			key := export.SanitizeName(label)
			if n := usedKeys[key]; n > 0 {
				usedKeys[key] = n + 1
				key = fmt.Sprintf("%s_%d", key, n+1)
			} else {
				usedKeys[key] = 1
			}
			index[id] = len(groups)
			i = len(groups)
			groups = append(groups, model.ClipGroup{Key: key, Label: label})
		}
		groups[i].Clips = append(groups[i].Clips, clip)
	}
	return groups
}

// TotalDurationSeconds returns the expected montage length for a group:
// the sum of clip durations minus the overlap consumed by each crossfade
// between consecutive clips.
func TotalDurationSeconds(group model.ClipGroup, transitionSeconds float64) float64 {
	var total float64
	for _, c := range group.Clips {
		total += c.DurationSeconds
	}
	if n := len(group.Clips); n > 1 && transitionSeconds > 0 {
		total -= float64(n-1) * transitionSeconds
	}
	return total
}
