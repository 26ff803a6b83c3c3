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
// This file contains the transient structures of the export pipeline: the
// clip requests derived from a project snapshot, the montage clips
// reconstructed from extracted files, the overlay configuration forwarded to
// the render process, and the per-phase result records. These objects are a
// disposable working set owned by one batch run; they reference but never
// mutate the project.
package model

// ClipRequest is one physically extractable clip derived from an Included
// clip decision. AbsoluteInSeconds and AbsoluteOutSeconds are positions in
// the participant's own recording, already adjusted for the reference start
// time and the participant's sync offset. Index is the stable zero-based
// position in marker-then-participant order; identical project state always
// produces identical requests.
type ClipRequest struct {
	MarkerId           string  `json:"marker_id"`
	MarkerLabel        string  `json:"marker_label"`
	ParticipantId      string  `json:"participant_id"`
	ParticipantName    string  `json:"participant_name"`
	RecordingLocator   string  `json:"recording_locator"`
	AbsoluteInSeconds  float64 `json:"absolute_in_seconds"`
	AbsoluteOutSeconds float64 `json:"absolute_out_seconds"`
	Index              int     `json:"index"`
}

// DurationSeconds returns the requested clip length.
func (r *ClipRequest) DurationSeconds() float64 {
	return r.AbsoluteOutSeconds - r.AbsoluteInSeconds
}

// MontageClip is the unit the render coordinator consumes: a physically
// extracted clip file placed on an export timeline. Order defines timeline
// position and is renumbered contiguously whenever the set changes.
type MontageClip struct {
	Id                  string  `json:"id"`
	SourceMarkerId      string  `json:"source_marker_id"`
	SourceParticipantId string  `json:"source_participant_id"`
	ParticipantName     string  `json:"participant_name"`
	MarkerLabel         string  `json:"marker_label"`
	FileName            string  `json:"file_name"`
	FilePath            string  `json:"file_path"`
	DurationSeconds     float64 `json:"duration_seconds"`
	Order               int     `json:"order"`
}

// OverlayKind selects what an overlay displays.
type OverlayKind string

const (
	// OverlayParticipantName renders each clip's participant name; it is
	// shorthand for a CustomText overlay whose text is the participant
	// token.
	OverlayParticipantName OverlayKind = "participant_name"
	OverlayCustomText      OverlayKind = "custom_text"
)

// OverlayPosition is one of the four screen corners.
type OverlayPosition string

const (
	OverlayTopLeft     OverlayPosition = "top-left"
	OverlayTopRight    OverlayPosition = "top-right"
	OverlayBottomLeft  OverlayPosition = "bottom-left"
	OverlayBottomRight OverlayPosition = "bottom-right"
)

// ParticipantToken is the template token in overlay text that the render
// process resolves per source clip. The core forwards it untouched.
const ParticipantToken = "{participant}"

// OverlayConfig describes the text overlay burned into a montage. At most
// one overlay is active per export; a nil *OverlayConfig means no overlay.
type OverlayConfig struct {
	Kind     OverlayKind     `json:"kind"`
	Text     string          `json:"text,omitempty"` // Used by OverlayCustomText; may contain ParticipantToken.
	Position OverlayPosition `json:"position"`
	FontSize int             `json:"font_size"`
	Color    string          `json:"color"`               // Hex, e.g. "FFFFFF".
	BoxColor string          `json:"box_color,omitempty"` // Optional, e.g. "000000@0.5" for a half-opaque box.
}

// EffectiveText returns the drawtext template for this overlay: the custom
// text as-is, or the participant token for participant-name overlays.
func (o *OverlayConfig) EffectiveText() string {
	if o.Kind == OverlayParticipantName {
		return ParticipantToken
	}
	return o.Text
}

// GroupBy selects how extracted clips are partitioned into render groups.
type GroupBy string

const (
	GroupByParticipant GroupBy = "participant"
	GroupByMarker      GroupBy = "marker"
)

// ClipGroup is one render group: an ordered list of montage clips that will
// be assembled into a single output file. Key is the sanitized group key
// used in the output filename; Label is the original human-readable label.
type ClipGroup struct {
	Key   string        `json:"key"`
	Label string        `json:"label"`
	Clips []MontageClip `json:"clips"`
}

// ExtractionResult is the batch-level outcome of the extraction phase.
type ExtractionResult struct {
	Extracted int      `json:"extracted"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	OutputDir string   `json:"output_dir"`
}

// Total returns the number of requests the extraction phase observed.
func (r *ExtractionResult) Total() int {
	return r.Extracted + r.Skipped + r.Failed
}

// RenderResult is the outcome of rendering one group.
type RenderResult struct {
	GroupKey        string  `json:"group_key"`
	Success         bool    `json:"success"`
	OutputPath      string  `json:"output_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// BatchOutcome distinguishes the three user-visible endings of a batch run.
type BatchOutcome string

const (
	BatchSucceeded BatchOutcome = "succeeded"
	BatchPartial   BatchOutcome = "partial"
	BatchFailed    BatchOutcome = "failed"
)

// BatchResult is the single aggregated result of a batch export run.
// Success is true iff every group rendered successfully. A partial outcome
// still leaves the successful groups' output files on disk.
type BatchResult struct {
	Outcome    BatchOutcome     `json:"outcome"`
	Extraction ExtractionResult `json:"extraction"`
	Renders    []RenderResult   `json:"renders"`
	Error      string           `json:"error,omitempty"`
}

// Success reports whether every group rendered successfully.
func (b *BatchResult) Success() bool {
	return b.Outcome == BatchSucceeded
}

// ClipStatusProbe reports whether a request's file already exists on disk,
// backing the UI's download-state display.
type ClipStatusProbe struct {
	MarkerLabel     string `json:"marker_label"`
	ParticipantName string `json:"participant_name"`
	FileName        string `json:"file_name"`
	IsExtracted     bool   `json:"is_extracted"`
}

// ExtractedClip is one file found in the project's storage namespace.
type ExtractedClip struct {
	FileName        string  `json:"file_name"`
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
}
