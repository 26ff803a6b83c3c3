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

package export

import (
	"context"
	"log/slog"
)

// EventKind discriminates progress events emitted during a batch export.
type EventKind string

const (
	EventBatchStarted   EventKind = "batch_started"
	EventClipStarted    EventKind = "clip_started"
	EventClipProgress   EventKind = "clip_progress"
	EventClipCompleted  EventKind = "clip_completed"
	EventPhaseChanged   EventKind = "phase_changed"
	EventRenderProgress EventKind = "render_progress"
	EventGroupCompleted EventKind = "group_completed"
	EventBatchFinished  EventKind = "batch_finished"
)

// OutcomeKind discriminates the per-clip completion variants.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// ClipOutcome is the terminal state of one clip or render-group attempt.
// Error is set only for OutcomeFailed.
type ClipOutcome struct {
	Kind  OutcomeKind `json:"kind"`
	Error string      `json:"error,omitempty"`
}

// Event is one progress notification. Which fields are meaningful depends on
// Kind; unused fields are zero and omitted from the wire form.
type Event struct {
	Kind       EventKind    `json:"kind"`
	ProjectId  string       `json:"project_id"`
	TotalClips int          `json:"total_clips,omitempty"`
	ClipIndex  int          `json:"clip_index,omitempty"`
	ClipLabel  string       `json:"clip_label,omitempty"`
	Percent    float64      `json:"percent,omitempty"`
	Rate       string       `json:"rate,omitempty"`
	Phase      string       `json:"phase,omitempty"`
	GroupLabel string       `json:"group_label,omitempty"`
	Outcome    *ClipOutcome `json:"outcome,omitempty"`
	Succeeded  int          `json:"succeeded,omitempty"`
	Skipped    int          `json:"skipped,omitempty"`
	Failed     int          `json:"failed,omitempty"`
}

// Sink receives progress events. Implementations must be safe for calls from
// a single exporting goroutine and must not block for long; a slow sink
// stalls the batch.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

// NopSink discards all events.
var NopSink Sink = SinkFunc(func(context.Context, Event) {})

// FanOut publishes each event to every sink in order.
func FanOut(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		for _, s := range sinks {
			s.Publish(ctx, ev)
		}
	})
}

// LogSink writes each event to the default structured logger at debug level,
// with completions and batch boundaries at info.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, ev Event) {
	attrs := []any{
		slog.String("kind", string(ev.Kind)),
		slog.String("project_id", ev.ProjectId),
	}
	switch ev.Kind {
	case EventBatchStarted:
		attrs = append(attrs, slog.Int("total_clips", ev.TotalClips))
		slog.InfoContext(ctx, "batch export started", attrs...)
	case EventClipCompleted:
		attrs = append(attrs, slog.Int("clip_index", ev.ClipIndex), slog.String("clip", ev.ClipLabel))
		if ev.Outcome != nil {
			attrs = append(attrs, slog.String("outcome", string(ev.Outcome.Kind)))
			if ev.Outcome.Error != "" {
				attrs = append(attrs, slog.String("error", ev.Outcome.Error))
			}
		}
		slog.InfoContext(ctx, "clip completed", attrs...)
	case EventPhaseChanged:
		attrs = append(attrs, slog.String("phase", ev.Phase))
		slog.InfoContext(ctx, "export phase changed", attrs...)
	case EventGroupCompleted:
		attrs = append(attrs, slog.String("group", ev.GroupLabel), slog.Float64("percent", ev.Percent))
		if ev.Outcome != nil {
			attrs = append(attrs, slog.String("outcome", string(ev.Outcome.Kind)))
			if ev.Outcome.Error != "" {
				attrs = append(attrs, slog.String("error", ev.Outcome.Error))
			}
		}
		slog.InfoContext(ctx, "render group completed", attrs...)
	case EventBatchFinished:
		attrs = append(attrs,
			slog.Int("succeeded", ev.Succeeded),
			slog.Int("skipped", ev.Skipped),
			slog.Int("failed", ev.Failed))
		slog.InfoContext(ctx, "batch export finished", attrs...)
	default:
		slog.DebugContext(ctx, "export progress", attrs...)
	}
}

// ChannelSink forwards events to a channel, dropping events when the buffer
// is full so a stalled consumer never blocks the exporter.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink buffered to the given size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

func (s *ChannelSink) Publish(_ context.Context, ev Event) {
	select {
	case s.C <- ev:
	default:
	}
}

// Close closes the underlying channel. Call only after the batch producing
// events has finished.
func (s *ChannelSink) Close() {
	close(s.C)
}
