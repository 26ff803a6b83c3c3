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

package media

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/montage"
)

// overlayMarginPixels is the fixed distance an overlay keeps from its corner.
const overlayMarginPixels = 20

// stderrTailLines bounds how much ffmpeg stderr is retained for error
// reporting.
const stderrTailLines = 50

// FFmpegRenderer assembles one clip group into a single montage file by
// shelling out to ffmpeg with a filter graph that applies the optional text
// overlay per clip, crossfades between consecutive clips, and concatenates
// the results. It implements montage.Renderer.
type FFmpegRenderer struct {
	cfg config.Render
}

// NewFFmpegRenderer creates a renderer from the render configuration.
func NewFFmpegRenderer(cfg config.Render) *FFmpegRenderer {
	return &FFmpegRenderer{cfg: cfg}
}

// Render runs ffmpeg over the group's clips into spec.OutputPath. Input
// files are verified before the process starts. The invocation runs under
// the configured timeout, and the error for a failed run carries the
// error-bearing tail of ffmpeg's stderr.
func (r *FFmpegRenderer) Render(ctx context.Context, spec montage.RenderSpec) error {
	if len(spec.Group.Clips) == 0 {
		return fmt.Errorf("render group %q has no clips", spec.Group.Key)
	}
	for _, clip := range spec.Group.Clips {
		if _, err := os.Stat(clip.FilePath); err != nil {
			return fmt.Errorf("clip file not found: %s", clip.FilePath)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutInSeconds)*time.Second)
	defer cancel()

	args := r.Args(spec)
	slog.DebugContext(ctx, "starting render",
		slog.String("group", spec.Group.Key),
		slog.Int("clips", len(spec.Group.Clips)))

	cmd := exec.CommandContext(runCtx, r.cfg.Command, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("capturing ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	parser := NewFFmpegProgress()
	var tail []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
		if outSeconds, speed, ok := parser.Parse(line); ok && spec.Progress != nil {
			spec.Progress(outSeconds, speed)
		}
	}

	if err := cmd.Wait(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("render timed out after %ds", r.cfg.TimeoutInSeconds)
		}
		if msg := errorTail(tail); msg != "" {
			return fmt.Errorf("ffmpeg failed: %s", msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// Args builds the complete ffmpeg argument list for one render. Exported for
// the command-construction tests.
func (r *FFmpegRenderer) Args(spec montage.RenderSpec) []string {
	args := []string{"-y"}
	for _, clip := range spec.Group.Clips {
		args = append(args, "-i", clip.FilePath)
	}
	args = append(args,
		"-filter_complex", r.FilterGraph(spec),
		"-map", "[vout]", "-map", "[aout]",
		"-c:v", r.cfg.Encoder, "-preset", r.cfg.Preset, "-crf", fmt.Sprintf("%d", r.cfg.CRF), "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", r.cfg.AudioBitrate,
		"-movflags", "+faststart", "-progress", "pipe:2",
		spec.OutputPath,
	)
	return args
}

// FilterGraph builds the filter_complex expression: per-input overlay and
// fade chains feeding a single concat. The first clip only fades out, the
// last only fades in, middle clips do both, so consecutive clips crossfade
// by the transition duration.
func (r *FFmpegRenderer) FilterGraph(spec montage.RenderSpec) string {
	clips := spec.Group.Clips
	n := len(clips)
	fade := spec.TransitionSeconds

	if n == 1 {
		v := "null"
		if spec.Overlay != nil {
			v = r.overlayFilter(spec.Overlay, clips[0].ParticipantName)
		}
		return fmt.Sprintf("[0:v]%s[vout];[0:a]anull[aout]", v)
	}

	var filters []string
	for i, clip := range clips {
		var vf, af []string
		if spec.Overlay != nil {
			vf = append(vf, r.overlayFilter(spec.Overlay, clip.ParticipantName))
		}
		if fade > 0 {
			fadeOutStart := max(clip.DurationSeconds-fade, 0)
			if i > 0 {
				vf = append(vf, fmt.Sprintf("fade=t=in:st=0:d=%.2f", fade))
				af = append(af, fmt.Sprintf("afade=t=in:st=0:d=%.2f", fade))
			}
			if i < n-1 {
				vf = append(vf, fmt.Sprintf("fade=t=out:st=%.2f:d=%.2f", fadeOutStart, fade))
				af = append(af, fmt.Sprintf("afade=t=out:st=%.2f:d=%.2f", fadeOutStart, fade))
			}
		}
		filters = append(filters, fmt.Sprintf("[%d:v]%s[v%d]", i, chainOrNull(vf, "null"), i))
		filters = append(filters, fmt.Sprintf("[%d:a]%s[a%d]", i, chainOrNull(af, "anull"), i))
	}

	var concat strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&concat, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&concat, "concat=n=%d:v=1:a=1[vout][aout]", n)
	filters = append(filters, concat.String())

	return strings.Join(filters, ";")
}

func (r *FFmpegRenderer) overlayFilter(overlay *model.OverlayConfig, participantName string) string {
	text := strings.ReplaceAll(overlay.EffectiveText(), model.ParticipantToken, participantName)
	text = strings.ReplaceAll(text, ":", "\\:")
	text = strings.ReplaceAll(text, "'", "\\'")

	fontPath := strings.ReplaceAll(r.cfg.FontFile, "\\", "/")
	fontPath = strings.ReplaceAll(fontPath, ":/", "\\:/")

	filter := fmt.Sprintf("drawtext=fontfile='%s':text='%s':%s:fontsize=%d:fontcolor=#%s",
		fontPath, text, overlayCoords(overlay.Position), overlay.FontSize, overlay.Color)
	if overlay.BoxColor != "" {
		filter += fmt.Sprintf(":box=1:boxcolor=%s:boxborderw=10", overlay.BoxColor)
	}
	return filter
}

func overlayCoords(pos model.OverlayPosition) string {
	m := overlayMarginPixels
	switch pos {
	case model.OverlayTopRight:
		return fmt.Sprintf("x=w-tw-%d:y=%d", m, m)
	case model.OverlayBottomLeft:
		return fmt.Sprintf("x=%d:y=h-th-%d", m, m)
	case model.OverlayBottomRight:
		return fmt.Sprintf("x=w-tw-%d:y=h-th-%d", m, m)
	default:
		return fmt.Sprintf("x=%d:y=%d", m, m)
	}
}

func chainOrNull(filters []string, null string) string {
	if len(filters) == 0 {
		return null
	}
	return strings.Join(filters, ",")
}

// errorTail picks the error-bearing lines out of collected stderr.
func errorTail(lines []string) string {
	var picked []string
	for _, l := range lines {
		if strings.Contains(l, "Error") || strings.Contains(l, "error") || strings.Contains(l, "Invalid") {
			picked = append(picked, l)
			if len(picked) == 5 {
				break
			}
		}
	}
	return strings.Join(picked, "\n")
}
