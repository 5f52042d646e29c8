package sentinel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

type codedError struct{ code int }

func (e *codedError) Error() string { return fmt.Sprintf("code %d", e.code) }

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("x"), "*errors.errorString"},
		{"custom", &codedError{code: 1}, "*sentinel.codedError"},
		{"wrapped custom", fmt.Errorf("load: %w", &codedError{code: 2}), "*sentinel.codedError"},
		{"doubly wrapped", fmt.Errorf("a: %w", fmt.Errorf("b: %w", fs.ErrNotExist)), "*errors.errorString"},
		{"multi wrapped", fmt.Errorf("%w and %w", &codedError{}, errors.New("y")), "*sentinel.codedError"},
		{"path error", &os.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, "*fs.PathError"},
		{"panic value", hook.AsError("boom"), "panic"},
		{"wrapped panic", fmt.Errorf("recovered: %w", hook.AsError(42)), "panic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorType(tt.err); got != tt.want {
				t.Errorf("errorType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeTags(t *testing.T) {
	got := mergeTags([]string{"prod", "billing"}, []string{"billing", "", "retry"})
	if strings.Join(got, ",") != "prod,billing,retry" {
		t.Errorf("mergeTags = %v", got)
	}

	if empty := mergeTags(nil, nil); empty == nil || len(empty) != 0 {
		t.Errorf("mergeTags of nothing = %#v, want empty non-nil slice", empty)
	}
}

func TestSeverity_Valid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []Severity{"", "error", "CRITICAL"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestEnvelope_WireFormat(t *testing.T) {
	env := Envelope{
		EventID:     "e1",
		ServiceName: "svc",
		Error:       ErrorInfo{Message: "x", Type: "t", StackTrace: []string{"main.main (m.go:1)"}},
		Context:     map[string]any{"op": "a"},
		Tags:        []string{},
		Severity:    SeverityMedium,
		Timestamp:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Fingerprint: "f",
		Source:      SourceManual,
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(raw)
	for _, want := range []string{
		`"event_id":"e1"`,
		`"service_name":"svc"`,
		`"error":{"message":"x","type":"t","stack_trace":["main.main (m.go:1)"]}`,
		`"context":{"op":"a"}`,
		`"tags":[]`,
		`"severity":"medium"`,
		`"timestamp":"2025-01-02T03:04:05Z"`,
		`"source":"manual"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("payload %s missing %s", s, want)
		}
	}
	for _, absent := range []string{`"repo"`, `"system"`} {
		if strings.Contains(s, absent) {
			t.Errorf("payload %s should omit %s", s, absent)
		}
	}
}

func TestCaptureSystemState(t *testing.T) {
	state := CaptureSystemState(time.Now().Add(-time.Second))

	if state.MemoryBytes <= 0 || state.GoroutineCount <= 0 {
		t.Errorf("state = %+v", state)
	}
	if state.UptimeMs < 1000 {
		t.Errorf("UptimeMs = %d, want >= 1000", state.UptimeMs)
	}
	if state.PID != os.Getpid() || state.GoVersion == "" {
		t.Errorf("PID/GoVersion = %d/%q", state.PID, state.GoVersion)
	}

	if future := CaptureSystemState(time.Now().Add(time.Hour)); future.UptimeMs != 0 {
		t.Errorf("future start should clamp uptime to 0, got %d", future.UptimeMs)
	}
}
