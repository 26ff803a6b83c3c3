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

// Package timeline is the time model: pure functions converting a moment in
// shared event time into an absolute timestamp inside one participant's
// independently-offset recording. This is the single place the conversion
// formula lives; every caller that needs a recording-local timestamp (clip
// in point, out point, or the marker instant itself) goes through
// AbsoluteTime.
package timeline

import "fmt"

// Clip duration bounds enforced before any external process is invoked.
const (
	// MinClipDurationSeconds rejects degenerate cuts the retrieval process
	// cannot produce.
	MinClipDurationSeconds = 0.1
	// MaxClipDurationSeconds caps a single clip at one hour.
	MaxClipDurationSeconds = 3600.0
)

// AbsoluteTime converts a moment expressed in shared event time into a
// position in one participant's recording:
//
//	absolute = referenceStart + eventTime + syncOffset + pointOffset
//
// referenceStart locates the event origin on the reference recording,
// eventTime is the marker's position relative to that origin, syncOffset is
// how far the participant's recording is shifted against the reference, and
// pointOffset selects a point around the marker (0 for the marker instant,
// negative for an in point, positive for an out point).
//
// The function is total over finite inputs. Callers must guard that the
// participant is synchronized and the reference start time is set; the type
// system cannot express that here because both arrive as plain floats.
func AbsoluteTime(referenceStartSeconds, eventTimeSeconds, syncOffsetSeconds, pointOffsetSeconds float64) float64 {
	return referenceStartSeconds + eventTimeSeconds + syncOffsetSeconds + pointOffsetSeconds
}

// ClipTiming is an absolute cut in a recording: a start position and a
// duration, both in seconds.
type ClipTiming struct {
	StartSeconds    float64
	DurationSeconds float64
}

// NewClipTiming builds a ClipTiming from absolute in/out positions.
func NewClipTiming(absoluteInSeconds, absoluteOutSeconds float64) ClipTiming {
	return ClipTiming{
		StartSeconds:    absoluteInSeconds,
		DurationSeconds: absoluteOutSeconds - absoluteInSeconds,
	}
}

// EndSeconds returns the absolute out position of the cut.
func (t ClipTiming) EndSeconds() float64 {
	return t.StartSeconds + t.DurationSeconds
}

// Validate checks the timing against the bounds the external retrieval
// process can honor: a non-negative start and a duration within
// [MinClipDurationSeconds, MaxClipDurationSeconds].
func (t ClipTiming) Validate() error {
	if t.StartSeconds < 0 {
		return fmt.Errorf("invalid clip start time %.2fs: must be >= 0", t.StartSeconds)
	}
	if t.DurationSeconds < MinClipDurationSeconds || t.DurationSeconds > MaxClipDurationSeconds {
		return fmt.Errorf("invalid clip duration %.2fs: must be between %.1fs and %.0fs",
			t.DurationSeconds, MinClipDurationSeconds, MaxClipDurationSeconds)
	}
	return nil
}
