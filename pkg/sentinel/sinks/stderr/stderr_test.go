package stderr

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

func TestStderrSink_ImplementsSinkInterface(t *testing.T) {
	var _ sentinel.Sink = NewStderrSink()
}

func captureStderr(fn func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	os.Stderr = old
	return buf.String()
}

func sampleEnvelope() sentinel.Envelope {
	return sentinel.Envelope{
		EventID:     "evt-123",
		ServiceName: "billing",
		Timestamp:   time.Date(2025, 1, 26, 15, 4, 5, 0, time.UTC),
		Fingerprint: "abc123def456",
		Severity:    sentinel.SeverityHigh,
		Source:      sentinel.SourceFramework,
		Error: sentinel.ErrorInfo{
			Message:    "nil pointer dereference",
			Type:       "*errors.errorString",
			StackTrace: []string{"main.handler (/app/main.go:10)", "main.main (/app/main.go:3)"},
		},
		Tags:    []string{"framework", "chi"},
		Context: map[string]any{"path": "/charge", "method": "POST"},
	}
}

func TestStderrSink_Write_FormatsOutput(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStderrSink(WithWriter(&buf))

	if err := sink.Write(context.Background(), sampleEnvelope()); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"[SENTINEL]",
		"2025-01-26T15:04:05Z",
		"HIGH",
		"*errors.errorString",
		"(framework)",
		"service=billing",
		"nil pointer dereference",
		"abc123def456",
		"framework, chi",
		"method=POST path=/charge",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got:\n%s", want, output)
		}
	}
}

func TestStderrSink_DefaultsToStderr(t *testing.T) {
	sink := NewStderrSink()
	output := captureStderr(func() {
		sink.Write(context.Background(), sampleEnvelope())
	})
	if !strings.Contains(output, "[SENTINEL]") {
		t.Errorf("expected output on stderr, got %q", output)
	}
}

func TestStderrSink_WithVerbose_IncludesStackTrace(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStderrSink(WithVerbose(), WithWriter(&buf))

	sink.Write(context.Background(), sampleEnvelope())

	if !strings.Contains(buf.String(), "main.handler (/app/main.go:10)") {
		t.Errorf("verbose output should include stack frames, got:\n%s", buf.String())
	}
}

func TestStderrSink_NonVerbose_ExcludesStackTrace(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStderrSink(WithWriter(&buf))

	sink.Write(context.Background(), sampleEnvelope())

	if strings.Contains(buf.String(), "Stack trace") {
		t.Errorf("non-verbose output should not include the stack trace")
	}
}

func TestStderrSink_FlushAndClose_ReturnNil(t *testing.T) {
	sink := NewStderrSink()
	if err := sink.Flush(context.Background()); err != nil {
		t.Errorf("Flush returned error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestStderrSink_SeverityFormatting(t *testing.T) {
	tests := []struct {
		severity sentinel.Severity
		want     string
	}{
		{sentinel.SeverityLow, "LOW"},
		{sentinel.SeverityMedium, "MEDIUM"},
		{sentinel.SeverityHigh, "HIGH"},
		{sentinel.SeverityCritical, "CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			var buf bytes.Buffer
			sink := NewStderrSink(WithWriter(&buf))
			sink.Write(context.Background(), sentinel.Envelope{
				Severity: tt.severity,
				Error:    sentinel.ErrorInfo{Type: "test"},
			})
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output should contain %q for severity %q", tt.want, tt.severity)
			}
		})
	}
}
