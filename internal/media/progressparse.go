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

// Package media wraps the external tools the export pipeline shells out to:
// yt-dlp for clip retrieval, ffmpeg for montage rendering, and ffprobe for
// duration inspection. Everything here speaks the tools' command lines and
// output formats; no project semantics leak in.
package media

import (
	"regexp"
	"strconv"
)

// FFmpegProgress parses ffmpeg stderr lines into render progress. ffmpeg
// reports the output position as time=HH:MM:SS.cc and the encode speed as a
// realtime multiple.
type FFmpegProgress struct {
	timeRe  *regexp.Regexp
	speedRe *regexp.Regexp
}

// NewFFmpegProgress creates a parser for one render invocation.
func NewFFmpegProgress() *FFmpegProgress {
	return &FFmpegProgress{
		timeRe:  regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`),
		speedRe: regexp.MustCompile(`speed=\s*([0-9.]+)x`),
	}
}

// Parse extracts the output position in seconds and the encode speed from a
// stderr line. ok is false for lines carrying no progress information. speed
// is zero when the line has a position but no speed field.
func (p *FFmpegProgress) Parse(line string) (outSeconds, speed float64, ok bool) {
	m := p.timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	mi, _ := strconv.ParseFloat(m[2], 64)
	s, _ := strconv.ParseFloat(m[3], 64)
	cs, _ := strconv.ParseFloat(m[4], 64)
	outSeconds = h*3600 + mi*60 + s + cs/100

	if sm := p.speedRe.FindStringSubmatch(line); sm != nil {
		speed, _ = strconv.ParseFloat(sm[1], 64)
	}
	return outSeconds, speed, true
}

// YtDlpProgress parses yt-dlp stdout lines into download progress. With
// --progress --newline, yt-dlp emits lines like
// "[download]  45.2% of 100.0MiB at 5.20MiB/s".
type YtDlpProgress struct {
	percentRe *regexp.Regexp
	rateRe    *regexp.Regexp
}

// NewYtDlpProgress creates a parser for one retrieval invocation.
func NewYtDlpProgress() *YtDlpProgress {
	return &YtDlpProgress{
		percentRe: regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%`),
		rateRe:    regexp.MustCompile(`at\s+([0-9.]+\s*\w+/s)`),
	}
}

// Parse extracts the completion percentage and the transfer rate from a
// stdout line. ok is false for lines carrying no progress information. rate
// is empty when the line has a percentage but no rate field.
func (p *YtDlpProgress) Parse(line string) (percent float64, rate string, ok bool) {
	m := p.percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	percent, _ = strconv.ParseFloat(m[1], 64)
	if percent > 100 {
		percent = 100
	}
	if rm := p.rateRe.FindStringSubmatch(line); rm != nil {
		rate = rm[1]
	}
	return percent, rate, true
}
