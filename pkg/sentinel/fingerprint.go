// fingerprint.go generates stable hashes for grouping similar errors.

package sentinel

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// fingerprintFrames is how many leading stack frames feed the fingerprint.
const fingerprintFrames = 3

// Fingerprint generates a hash for grouping similar errors.
// The fingerprint is based on:
//   - service name, error type, source
//   - the route, when the report came from a framework adapter
//   - first 3 stack frames (function names only, normalized)
//
// It ignores variable data like timestamps, event IDs, messages,
// line numbers, and memory addresses.
func Fingerprint(env Envelope) string {
	parts := []string{env.ServiceName, env.Error.Type, string(env.Source)}
	if route, ok := env.Context["route"].(string); ok {
		parts = append(parts, route)
	}
	parts = append(parts, normalizeFrames(env.Error.StackTrace)...)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	// First 16 bytes, 32 hex chars.
	return hex.EncodeToString(hash[:16])
}

var (
	memAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)

	// Match function names like "main.doSomething" or "pkg/subpkg.(*T).Method"
	funcNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_./\-]+\.[a-zA-Z0-9_.()*\[\]]+`)
)

// normalizeFrames extracts the leading function names from rendered frames
// ("function (file:line)"), dropping locations and addresses.
func normalizeFrames(frames []string) []string {
	var out []string
	for _, f := range frames {
		if idx := strings.Index(f, " ("); idx > 0 {
			f = f[:idx]
		}
		f = strings.TrimSpace(memAddrPattern.ReplaceAllString(f, ""))
		if match := funcNamePattern.FindString(f); match != "" {
			out = append(out, match)
			if len(out) >= fingerprintFrames {
				break
			}
		}
	}
	return out
}
