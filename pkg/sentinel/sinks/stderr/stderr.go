// Package stderr provides a sink that echoes reports to stderr in a
// human-readable format. Useful for development and debugging.
package stderr

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// StderrSinkOption configures the stderr sink.
type StderrSinkOption func(*stderrSinkConfig)

type stderrSinkConfig struct {
	verbose bool
	out     io.Writer
}

// WithVerbose enables full report details including stack traces.
func WithVerbose() StderrSinkOption {
	return func(c *stderrSinkConfig) {
		c.verbose = true
	}
}

// WithWriter redirects output away from os.Stderr.
func WithWriter(w io.Writer) StderrSinkOption {
	return func(c *stderrSinkConfig) {
		if w != nil {
			c.out = w
		}
	}
}

// stderrSink writes reports to stderr in human-readable format.
type stderrSink struct {
	verbose bool
	mu      sync.Mutex
	out     io.Writer
}

// NewStderrSink creates a sink that writes to stderr.
func NewStderrSink(opts ...StderrSinkOption) sentinel.Sink {
	cfg := &stderrSinkConfig{out: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}
	return &stderrSink{
		verbose: cfg.verbose,
		out:     cfg.out,
	}
}

// Write formats and outputs the envelope.
//
// Format: [SENTINEL] <timestamp> <SEVERITY> <error_type> (<source>) service=<name>
func (s *stderrSink) Write(ctx context.Context, env sentinel.Envelope) error {
	var b strings.Builder

	timestamp := env.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	severity := strings.ToUpper(string(env.Severity))
	fmt.Fprintf(&b, "[SENTINEL] %s %s %s", timestamp, severity, env.Error.Type)
	if env.Source != "" {
		fmt.Fprintf(&b, " (%s)", env.Source)
	}
	if env.ServiceName != "" {
		fmt.Fprintf(&b, " service=%s", env.ServiceName)
	}
	b.WriteByte('\n')

	if env.Error.Message != "" {
		fmt.Fprintf(&b, "        Message: %s\n", env.Error.Message)
	}
	if env.Fingerprint != "" {
		fmt.Fprintf(&b, "        Fingerprint: %s\n", env.Fingerprint)
	}
	if len(env.Tags) > 0 {
		fmt.Fprintf(&b, "        Tags: %s\n", strings.Join(env.Tags, ", "))
	}
	if len(env.Context) > 0 {
		keys := make([]string, 0, len(env.Context))
		for k := range env.Context {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, env.Context[k])
		}
		fmt.Fprintf(&b, "        Context: %s\n", strings.Join(pairs, " "))
	}

	// Stack trace only in verbose mode
	if s.verbose && len(env.Error.StackTrace) > 0 {
		b.WriteString("        Stack trace:\n")
		for _, frame := range env.Error.StackTrace {
			fmt.Fprintf(&b, "          %s\n", frame)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, b.String())
	return err
}

// Flush is a no-op for stderr sink.
func (s *stderrSink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op for stderr sink.
func (s *stderrSink) Close() error {
	return nil
}
