package sentinel

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testSink captures envelopes for verification in tests.
type testSink struct {
	mu       sync.Mutex
	envs     []Envelope
	writeErr error
	flushes  int
	closes   int
}

func (s *testSink) Write(ctx context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, env)
	return s.writeErr
}

func (s *testSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *testSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *testSink) getEnvelopes() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Envelope, len(s.envs))
	copy(result, s.envs)
	return result
}

// testDeliverer records every envelope it is asked to send.
type testDeliverer struct {
	mu       sync.Mutex
	envs     []Envelope
	outcome  Outcome
	sent     chan Envelope
	release  chan struct{}
	pingErr  error
	pings    atomic.Int32
	pingGate chan struct{}
}

func newTestDeliverer() *testDeliverer {
	return &testDeliverer{
		outcome: Outcome{Status: StatusDelivered, Attempts: 1, StatusCode: 202},
		sent:    make(chan Envelope, 64),
	}
}

func (d *testDeliverer) Send(ctx context.Context, env Envelope) Outcome {
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	d.envs = append(d.envs, env)
	out := d.outcome
	d.mu.Unlock()

	out.EventID = env.EventID
	d.sent <- env
	return out
}

func (d *testDeliverer) Ping(ctx context.Context) error {
	d.pings.Add(1)
	if d.pingGate != nil {
		select {
		case <-d.pingGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return d.pingErr
}

func (d *testDeliverer) getEnvelopes() []Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]Envelope, len(d.envs))
	copy(result, d.envs)
	return result
}

// waitSent waits for the next envelope handed to Send.
func (d *testDeliverer) waitSent(timeout time.Duration) (Envelope, bool) {
	select {
	case env := <-d.sent:
		return env, true
	case <-time.After(timeout):
		return Envelope{}, false
	}
}

func testConfig() Config {
	return Config{
		SentinelURL: "https://s.test",
		ServiceName: "svc",
		MaxRetries:  2,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCatcher builds an initialized Catcher over d. The caller shuts it down.
func newTestCatcher(t *testing.T, d Deliverer, opts ...Option) *Catcher {
	t.Helper()
	all := append([]Option{WithDeliverer(d), WithLogger(quietLogger())}, opts...)
	c, err := New(testConfig(), all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Initialize()
	return c
}
