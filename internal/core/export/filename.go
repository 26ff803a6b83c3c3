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
	"fmt"
	"strings"
)

// ClipFileName returns the deterministic on-disk name for an extracted clip.
// The full marker and participant identifiers make the mapping from file back
// to decision exact, so reconciliation never has to guess from prefixes.
func ClipFileName(markerId, participantId string) string {
	return fmt.Sprintf("%s_%s.mp4", markerId, participantId)
}

// ParseClipFileName inverts ClipFileName. The second return is false when the
// name does not follow the contract.
func ParseClipFileName(name string) (markerId, participantId string, ok bool) {
	base, found := strings.CutSuffix(name, ".mp4")
	if !found {
		return "", "", false
	}
	markerId, participantId, ok = strings.Cut(base, "_")
	if !ok || markerId == "" || participantId == "" {
		return "", "", false
	}
	return markerId, participantId, true
}

// SanitizeName reduces a display name or group label to a filesystem-safe
// token: ASCII letters and digits pass through, runs of anything else
// collapse to a single underscore. An empty result falls back to "unnamed".
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "unnamed"
	}
	return out
}
