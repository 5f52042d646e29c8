// record.go defines the captured error record and the report envelope sent to
// the collection endpoint.

package sentinel

import (
	"errors"
	"fmt"
	"time"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

// Severity indicates how serious a reported error is.
type Severity string

const (
	// SeverityLow marks noise-level issues worth recording.
	SeverityLow Severity = "low"

	// SeverityMedium is the default for manually reported errors.
	SeverityMedium Severity = "medium"

	// SeverityHigh marks errors that failed a user-visible operation.
	SeverityHigh Severity = "high"

	// SeverityCritical marks panics and other unrecoverable failures.
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Source identifies which capture path produced a report.
type Source string

const (
	SourceManual    Source = "manual"
	SourcePanic     Source = "panic"
	SourceFramework Source = "framework"
	SourceAgent     Source = "agent"
)

// Frame is one entry of a captured stack.
type Frame = hook.Frame

// Record is an error at the moment it was intercepted. The stack is captured
// at the catch site and never modified afterwards.
type Record struct {
	Err       error
	Message   string
	Type      string
	Stack     []Frame
	Context   map[string]any
	Tags      []string
	Severity  Severity
	Source    Source
	Timestamp time.Time
}

// ErrorInfo is the "error" object of the wire payload.
type ErrorInfo struct {
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	StackTrace []string `json:"stack_trace"`
}

// SystemState captures process metrics at the time of an error.
type SystemState struct {
	// MemoryBytes is the current heap allocation in bytes.
	MemoryBytes int64 `json:"memory_bytes"`

	// GoroutineCount is the number of live goroutines.
	GoroutineCount int `json:"goroutine_count"`

	// UptimeMs is the process uptime in milliseconds.
	UptimeMs int64 `json:"uptime_ms"`

	HostName  string `json:"host_name,omitempty"`
	PID       int    `json:"pid"`
	GoVersion string `json:"go_version"`
}

// Envelope is a filter-approved, enriched report ready for delivery. Its JSON
// encoding is the wire payload.
type Envelope struct {
	EventID     string         `json:"event_id"`
	ServiceName string         `json:"service_name"`
	Repo        string         `json:"repo,omitempty"`
	Error       ErrorInfo      `json:"error"`
	Context     map[string]any `json:"context"`
	Tags        []string       `json:"tags"`
	Severity    Severity       `json:"severity"`
	Timestamp   time.Time      `json:"timestamp"`
	Fingerprint string         `json:"fingerprint"`
	Source      Source         `json:"source"`
	System      *SystemState   `json:"system,omitempty"`
}

// errorType names the Go type of err, looking through fmt.Errorf wrapping so
// that wrapped errors keep the type of their cause.
func errorType(err error) string {
	var pe *hook.PanicError
	if errors.As(err, &pe) {
		return "panic"
	}
	for {
		switch err.(type) {
		case interface{ Unwrap() error }:
			t := fmt.Sprintf("%T", err)
			if t != "*fmt.wrapError" {
				return t
			}
			next := errors.Unwrap(err)
			if next == nil {
				return t
			}
			err = next
		case interface{ Unwrap() []error }:
			t := fmt.Sprintf("%T", err)
			if t != "*fmt.wrapErrors" {
				return t
			}
			errs := err.(interface{ Unwrap() []error }).Unwrap()
			if len(errs) == 0 || errs[0] == nil {
				return t
			}
			err = errs[0]
		default:
			return fmt.Sprintf("%T", err)
		}
	}
}

// stackStrings renders frames for the wire payload.
func stackStrings(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}
	return out
}

// mergeTags concatenates tag lists, dropping empties and duplicates while
// keeping first-seen order.
func mergeTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, t := range list {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
