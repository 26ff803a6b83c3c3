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

package export_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/core/export"
)

// TestClipFileNameRoundTrip verifies the filename contract is exact in both
// directions for real identifiers.
func TestClipFileNameRoundTrip(t *testing.T) {
	markerId := uuid.NewString()
	participantId := uuid.NewString()

	name := export.ClipFileName(markerId, participantId)
	assert.Equal(t, markerId+"_"+participantId+".mp4", name)

	m, p, ok := export.ParseClipFileName(name)
	require.True(t, ok)
	assert.Equal(t, markerId, m)
	assert.Equal(t, participantId, p)
}

// TestParseClipFileNameRejects confirms names outside the contract are not
// mistaken for clips.
func TestParseClipFileNameRejects(t *testing.T) {
	for _, name := range []string{
		"notaclip.txt",
		"missing-separator.mp4",
		"_leading.mp4",
		"trailing_.mp4",
		"noextension_atall",
	} {
		_, _, ok := export.ParseClipFileName(name)
		assert.False(t, ok, "expected %q to be rejected", name)
	}
}

// TestSanitizeName checks the filesystem-safe reduction: alphanumerics pass,
// everything else collapses to single underscores, and degenerate inputs
// fall back to a stable placeholder.
func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Alice", export.SanitizeName("Alice"))
	assert.Equal(t, "raid_night_2", export.SanitizeName("raid night #2"))
	assert.Equal(t, "a_b", export.SanitizeName("a///b"))
	assert.Equal(t, "trailing", export.SanitizeName("trailing!!!"))
	assert.Equal(t, "unnamed", export.SanitizeName(""))
	assert.Equal(t, "unnamed", export.SanitizeName("###"))
}
