package adapters

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// chanDeliverer hands every envelope to the test over a channel.
type chanDeliverer struct {
	envs chan sentinel.Envelope
}

func (d *chanDeliverer) Send(ctx context.Context, env sentinel.Envelope) sentinel.Outcome {
	d.envs <- env
	return sentinel.Outcome{Status: sentinel.StatusDelivered, Attempts: 1}
}

func (d *chanDeliverer) Ping(context.Context) error { return nil }

func (d *chanDeliverer) next(t *testing.T) sentinel.Envelope {
	t.Helper()
	select {
	case env := <-d.envs:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no report delivered")
		return sentinel.Envelope{}
	}
}

func (d *chanDeliverer) none(t *testing.T) {
	t.Helper()
	select {
	case env := <-d.envs:
		t.Fatalf("unexpected report: %+v", env.Error)
	case <-time.After(50 * time.Millisecond):
	}
}

// countingReporter counts asynchronous reports before forwarding them.
type countingReporter struct {
	sentinel.Reporter
	async atomic.Int32
}

func (r *countingReporter) ReportAsync(ctx context.Context, err error, opts ...sentinel.ReportOption) <-chan sentinel.Outcome {
	r.async.Add(1)
	return r.Reporter.ReportAsync(ctx, err, opts...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCatcher(t *testing.T, mutate ...func(*sentinel.Config)) (*sentinel.Catcher, *chanDeliverer) {
	t.Helper()
	cfg := sentinel.Config{
		SentinelURL:        "https://s.test",
		ServiceName:        "svc",
		DisableSystemState: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	d := &chanDeliverer{envs: make(chan sentinel.Envelope, 16)}
	c, err := sentinel.New(cfg, sentinel.WithDeliverer(d), sentinel.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Initialize()
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c, d
}

func testFramework() Framework {
	return Framework{
		Name:  "test",
		Route: func(*http.Request) string { return "/users/{id}" },
	}
}

// failingDeliverer rejects every envelope.
type failingDeliverer struct{}

func (failingDeliverer) Send(ctx context.Context, env sentinel.Envelope) sentinel.Outcome {
	return sentinel.Outcome{
		Status:   sentinel.StatusFailed,
		EventID:  env.EventID,
		Attempts: 3,
		Err:      errors.New("connection refused"),
	}
}

func (failingDeliverer) Ping(context.Context) error { return nil }

// logBuffer collects log output written from background goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger() (*slog.Logger, *logBuffer) {
	b := &logBuffer{}
	return slog.New(slog.NewTextHandler(b, nil)), b
}
