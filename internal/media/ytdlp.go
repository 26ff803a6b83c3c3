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
	"os/exec"
	"time"

	"golang.org/x/time/rate"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/core/export"
	"github.com/vodsync/vodsync/internal/core/model"
	"github.com/vodsync/vodsync/internal/core/timeline"
)

// retrievalAttempts is the number of full attempts per clip. Each attempt
// may itself run twice: once with keyframe-accurate cutting and once
// without, since forcing keyframes fails on some formats.
const retrievalAttempts = 2

// YtDlpRetriever extracts clips from remote recordings by shelling out to
// yt-dlp with a --download-sections time range. It implements
// export.Retriever. A shared rate limiter spaces out invocations so batch
// runs stay polite to the VOD platforms.
type YtDlpRetriever struct {
	cfg     config.Retrieval
	limiter *rate.Limiter
}

// NewYtDlpRetriever creates a retriever from the retrieval configuration.
func NewYtDlpRetriever(cfg config.Retrieval) *YtDlpRetriever {
	limit := rate.Inf
	if cfg.MaxRequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.MaxRequestsPerMinute))
	}
	return &YtDlpRetriever{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// FormatTime renders seconds as the HH:MM:SS form yt-dlp expects in a
// download section. Fractional seconds are truncated; the keyframe-accurate
// cut cannot do better than whole seconds anyway.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Retrieve downloads the request's time range into destPath, retrying with
// progressively laxer cutting. The first attempt forces keyframes at the cut
// points when configured; every attempt falls back to an unforced cut before
// counting as failed. Each invocation runs under the configured timeout.
func (r *YtDlpRetriever) Retrieve(ctx context.Context, req model.ClipRequest, destPath string, progress export.ProgressFunc) error {
	timing := timeline.NewClipTiming(req.AbsoluteInSeconds, req.AbsoluteOutSeconds)
	if err := timing.Validate(); err != nil {
		return err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= retrievalAttempts; attempt++ {
		if r.cfg.ForceKeyframes && attempt == 1 {
			err := r.runOnce(ctx, req, timing, destPath, true, progress)
			if err == nil {
				return nil
			}
			slog.WarnContext(ctx, "keyframe-accurate retrieval failed, retrying without",
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		err := r.runOnce(ctx, req, timing, destPath, false, progress)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "clip retrieval failed",
			slog.Int("attempt", attempt), slog.String("error", err.Error()))
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// Args builds the yt-dlp argument list for one invocation. Exported for the
// command-construction tests.
func (r *YtDlpRetriever) Args(locator string, timing timeline.ClipTiming, destPath string, forceKeyframes bool) []string {
	args := []string{
		"-f", fmt.Sprintf("best[height<=%d]", r.cfg.MaxHeight),
		"--download-sections", fmt.Sprintf("*%s-%s", FormatTime(timing.StartSeconds), FormatTime(timing.EndSeconds())),
	}
	if forceKeyframes {
		args = append(args, "--force-keyframes-at-cuts")
	}
	args = append(args,
		"-o", destPath,
		"--no-playlist",
		"--progress",
		"--newline",
		locator,
	)
	return args
}

func (r *YtDlpRetriever) runOnce(ctx context.Context, req model.ClipRequest, timing timeline.ClipTiming, destPath string, forceKeyframes bool, progress export.ProgressFunc) error {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutInSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.cfg.Command, r.Args(req.RecordingLocator, timing, destPath, forceKeyframes)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capturing yt-dlp stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting yt-dlp: %w", err)
	}

	parser := NewYtDlpProgress()
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if percent, rateStr, ok := parser.Parse(scanner.Text()); ok && progress != nil {
			progress(percent, rateStr)
		}
	}

	if err := cmd.Wait(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("yt-dlp timed out after %ds", r.cfg.TimeoutInSeconds)
		}
		return fmt.Errorf("yt-dlp failed: %w", err)
	}
	return nil
}
