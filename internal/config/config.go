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

// Package config defines the data structures for application configuration,
// loaded from TOML files. It centralizes every configurable parameter of the
// export pipeline: the workspace directory layout, the defaults applied to
// newly created clip decisions, the participant color palette, and the
// settings for the two external media processes (retrieval and rendering).
//
// Structs:
//   - Application: General application settings (name, workspace directory).
//   - Clips: Project-wide defaults for clip decision boundaries.
//   - Retrieval: Settings for the external video-retrieval process (yt-dlp).
//   - Render: Settings for the external transcoding/assembly process (ffmpeg).
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that initializes a new Config object with sane defaults.
package config

// DefaultPalette is the fixed participant color palette. Colors are assigned
// deterministically by participant index, wrapping around when a project has
// more participants than palette entries.
var DefaultPalette = []string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#42d4f4", // cyan
	"#f032e6", // magenta
	"#ffe119", // yellow
}

// Application holds general application settings.
type Application struct {
	Name     string `toml:"name"`      // The name of the application, used for telemetry resource naming.
	Port     int    `toml:"port"`      // The HTTP listen port for the API server.
	LogLevel string `toml:"log_level"` // Minimum log level (debug, info, warn, error).
}

// Storage describes the on-disk workspace layout. Every project owns a
// directory under WorkDir containing its snapshot file, extracted clips and
// rendered montages.
type Storage struct {
	WorkDir     string `toml:"work_dir"`     // Root directory for all project workspaces.
	ClipsDir    string `toml:"clips_dir"`    // Per-project subdirectory holding extracted clips.
	MontagesDir string `toml:"montages_dir"` // Per-project subdirectory holding rendered montages.
}

// Clips holds the project-wide defaults applied to newly created clip
// decisions. Offsets are relative to the marker's event time, so the in
// offset is normally negative.
type Clips struct {
	DefaultInOffsetSeconds  float64 `toml:"default_in_offset_seconds"`
	DefaultOutOffsetSeconds float64 `toml:"default_out_offset_seconds"`
}

// Retrieval configures the external video-retrieval process.
type Retrieval struct {
	Command              string `toml:"command"`                 // Path to the yt-dlp executable.
	MaxHeight            int    `toml:"max_height"`              // Maximum video height to download (e.g. 1080).
	ForceKeyframes       bool   `toml:"force_keyframes"`         // Whether to force keyframes at cuts on the first attempt.
	TimeoutInSeconds     int    `toml:"timeout_in_seconds"`      // Per-clip timeout for the retrieval process.
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"` // Rate limit applied to retrieval invocations.
}

// Render configures the external transcoding/assembly process.
type Render struct {
	Command          string  `toml:"command"`            // Path to the ffmpeg executable.
	Encoder          string  `toml:"encoder"`            // Video encoder (libx264 is the safe default for filter graphs).
	Preset           string  `toml:"preset"`             // Encoder preset.
	CRF              int     `toml:"crf"`                // Constant rate factor.
	AudioBitrate     string  `toml:"audio_bitrate"`      // Audio bitrate (e.g. "128k").
	FontFile         string  `toml:"font_file"`          // Font used for drawtext overlays.
	TimeoutInSeconds int     `toml:"timeout_in_seconds"` // Per-group timeout for the render process.
	MaxTransition    float64 `toml:"max_transition"`     // Upper clamp for the transition duration in seconds.
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It acts as the root container for all other configuration
// structs.
type Config struct {
	Application Application `toml:"application"`
	Storage     Storage     `toml:"storage"`
	Clips       Clips       `toml:"clips"`
	Retrieval   Retrieval   `toml:"retrieval"`
	Render      Render      `toml:"render"`
}

// NewConfig is a constructor function that creates a new Config instance
// populated with working defaults. Values loaded from TOML files overwrite
// these defaults, so a missing or sparse configuration file still yields a
// usable configuration.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with defaults applied.
func NewConfig() *Config {
	return &Config{
		Application: Application{
			Name:     "vodsync",
			Port:     8080,
			LogLevel: "info",
		},
		Storage: Storage{
			WorkDir:     "work",
			ClipsDir:    "clips",
			MontagesDir: "montages",
		},
		Clips: Clips{
			DefaultInOffsetSeconds:  -10,
			DefaultOutOffsetSeconds: 10,
		},
		Retrieval: Retrieval{
			Command:              "yt-dlp",
			MaxHeight:            1080,
			ForceKeyframes:       true,
			TimeoutInSeconds:     300,
			MaxRequestsPerMinute: 30,
		},
		Render: Render{
			Command:          "ffmpeg",
			Encoder:          "libx264",
			Preset:           "fast",
			CRF:              23,
			AudioBitrate:     "128k",
			TimeoutInSeconds: 900,
			MaxTransition:    2.0,
		},
	}
}
