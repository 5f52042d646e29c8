// scrubber.go implements fail-closed redaction of secrets and PII in report
// envelopes.

package sentinel

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Redaction placeholders.
const (
	redacted          = "[REDACTED]"
	redactedScrubErr  = "[REDACTED:SCRUB_ERROR]"
	truncationMarker  = "...[TRUNCATED]"
	maxContextDepth   = 16
	normalizedPathTag = "/[PATH]/"
)

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// SensitivePatterns are extra case-insensitive substrings that mark a
	// context key as sensitive.
	SensitivePatterns []string

	// MaxMessageSize is the maximum length of the error message (default 4096).
	MaxMessageSize int

	// MaxFrameSize is the maximum length of one rendered stack frame (default 1024).
	MaxFrameSize int

	// MaxStackFrames is the maximum number of frames kept (default 64).
	MaxStackFrames int

	// MaxValueSize is the maximum length of one string context value (default 1024).
	MaxValueSize int

	// ScrubMessages enables pattern scrubbing of messages and string values.
	ScrubMessages bool

	// FailClosed redacts values that cannot be inspected instead of passing
	// them through.
	FailClosed bool
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		MaxMessageSize: 4096,
		MaxFrameSize:   1024,
		MaxStackFrames: 64,
		MaxValueSize:   1024,
		ScrubMessages:  true,
		FailClosed:     true,
	}
}

// Compiled once at package init.
var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)(authorization|bearer)[=:\s]+['"]?[\w\-\.]+['"]?[\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`(?i)xox[baprs]-[a-zA-Z0-9\-]{10,}`),
	regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
	regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|redis)://[^\s]+`),

	// Credentials
	regexp.MustCompile(`(?i)password[=:\s]+['"]?[^\s'"",]+['"]?`),
	regexp.MustCompile(`(?i)secret[=:\s]+['"]?[^\s'"",]+['"]?`),
	regexp.MustCompile(`(?i)passwd[=:\s]+['"]?[^\s'"",]+['"]?`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

var sensitiveKeyPatterns = []string{
	"token",
	"key",
	"secret",
	"password",
	"passwd",
	"credential",
	"auth",
	"cookie",
}

var pathNormalizationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[^/]+/`),
	regexp.MustCompile(`/Users/[^/]+/`),
	regexp.MustCompile(`C:\\Users\\[^\\]+\\`),
	regexp.MustCompile(`/tmp/[^/]+/`),
}

// Scrubber redacts sensitive data from envelopes.
type Scrubber struct {
	cfg      ScrubberConfig
	patterns []string
}

// NewScrubber creates a scrubber. Zero size limits take the defaults.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	def := DefaultScrubberConfig()
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.MaxStackFrames <= 0 {
		cfg.MaxStackFrames = def.MaxStackFrames
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = def.MaxValueSize
	}

	patterns := append([]string(nil), sensitiveKeyPatterns...)
	for _, p := range cfg.SensitivePatterns {
		patterns = append(patterns, strings.ToLower(p))
	}
	return &Scrubber{cfg: cfg, patterns: patterns}
}

// ScrubEnvelope returns a copy of env with its message, stack and context
// scrubbed.
func (s *Scrubber) ScrubEnvelope(env Envelope) Envelope {
	env.Error.Message = s.ScrubMessage(env.Error.Message)
	env.Error.StackTrace = s.ScrubStack(env.Error.StackTrace)
	env.Context = s.ScrubContext(env.Context)
	return env
}

// ScrubMessage truncates msg and replaces secret and PII patterns.
func (s *Scrubber) ScrubMessage(msg string) string {
	if len(msg) > s.cfg.MaxMessageSize {
		msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	}
	if !s.cfg.ScrubMessages {
		return msg
	}
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, redacted)
	}
	return msg
}

// ScrubStack normalizes user-specific paths and bounds the stack size.
func (s *Scrubber) ScrubStack(frames []string) []string {
	if frames == nil {
		return nil
	}
	if len(frames) > s.cfg.MaxStackFrames {
		frames = frames[:s.cfg.MaxStackFrames]
	}
	out := make([]string, len(frames))
	for i, f := range frames {
		for _, pattern := range pathNormalizationPatterns {
			f = pattern.ReplaceAllString(f, normalizedPathTag)
		}
		out[i] = truncateWithMarker(f, s.cfg.MaxFrameSize)
	}
	return out
}

// ScrubContext redacts sensitive keys and scrubs string values recursively.
// Values of other types are normalized through JSON first; a value that
// cannot be encoded is redacted when FailClosed is set.
func (s *Scrubber) ScrubContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if s.isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = s.scrubValue(v, 0)
	}
	return out
}

func (s *Scrubber) scrubValue(v any, depth int) any {
	if depth > maxContextDepth {
		return truncationMarker
	}
	switch val := v.(type) {
	case nil, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return val
	case string:
		return truncateWithMarker(s.ScrubMessage(val), s.cfg.MaxValueSize)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if s.isSensitiveKey(k) {
				out[k] = redacted
				continue
			}
			out[k] = s.scrubValue(inner, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = s.scrubValue(inner, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = s.scrubValue(inner, depth+1)
		}
		return out
	default:
		normalized, ok := s.normalize(val)
		if !ok {
			if s.cfg.FailClosed {
				return redactedScrubErr
			}
			return val
		}
		return s.scrubValue(normalized, depth+1)
	}
}

// normalize converts an arbitrary value into its generic JSON shape.
func (s *Scrubber) normalize(v any) (any, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	return generic, true
}

func (s *Scrubber) isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range s.patterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// truncateWithMarker truncates a string and adds a truncation marker.
func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncationMarker) {
		return truncationMarker[:maxLen]
	}
	return s[:maxLen-len(truncationMarker)] + truncationMarker
}
