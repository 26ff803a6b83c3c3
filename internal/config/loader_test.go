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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/config"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o640))
}

// TestLoadConfigHierarchy verifies the two-level load: the base file
// overwrites defaults, then the runtime-specific file overwrites the base.
func TestLoadConfigHierarchy(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".env.toml", `
[application]
name = "vodsync"
port = 9090
log_level = "info"

[retrieval]
max_height = 720
`)
	writeConfigFile(t, dir, ".env.test.toml", `
[application]
log_level = "debug"
`)
	t.Setenv(config.EnvConfigFilePrefix, dir)
	t.Setenv(config.EnvConfigRuntime, "test")

	cfg := config.NewConfig()
	config.LoadConfig(cfg)

	assert.Equal(t, 9090, cfg.Application.Port)
	assert.Equal(t, "debug", cfg.Application.LogLevel)
	assert.Equal(t, 720, cfg.Retrieval.MaxHeight)
	// Untouched sections keep their defaults.
	assert.Equal(t, "yt-dlp", cfg.Retrieval.Command)
	assert.Equal(t, "libx264", cfg.Render.Encoder)
}

// TestLoadConfigMissingFiles leaves the defaults intact when neither file
// exists.
func TestLoadConfigMissingFiles(t *testing.T) {
	t.Setenv(config.EnvConfigFilePrefix, filepath.Join(t.TempDir(), "nowhere"))
	t.Setenv(config.EnvConfigRuntime, "test")

	cfg := config.NewConfig()
	config.LoadConfig(cfg)

	assert.Equal(t, "vodsync", cfg.Application.Name)
	assert.Equal(t, 8080, cfg.Application.Port)
	assert.Equal(t, -10.0, cfg.Clips.DefaultInOffsetSeconds)
	assert.Equal(t, 2.0, cfg.Render.MaxTransition)
}

// TestLoadConfigDefaultRuntime falls back to the "local" override file when
// the runtime variable is unset.
func TestLoadConfigDefaultRuntime(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, ".env.toml", `
[application]
port = 9090
`)
	writeConfigFile(t, dir, ".env.local.toml", `
[application]
port = 9091
`)
	t.Setenv(config.EnvConfigFilePrefix, dir)
	t.Setenv(config.EnvConfigRuntime, "")

	cfg := config.NewConfig()
	config.LoadConfig(cfg)

	assert.Equal(t, 9091, cfg.Application.Port)
}
