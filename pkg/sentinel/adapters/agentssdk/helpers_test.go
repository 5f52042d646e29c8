package agentssdk

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strongdm/ai-agents-sdk/pkg/agents"

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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

// waitFor polls the buffer until it contains substr.
func (b *logBuffer) waitFor(t *testing.T, substr string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if out := b.String(); strings.Contains(out, substr) {
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("log never contained %q; got:\n%s", substr, b.String())
	return ""
}

func newCatcher(t *testing.T) (*sentinel.Catcher, *chanDeliverer) {
	t.Helper()
	d := &chanDeliverer{envs: make(chan sentinel.Envelope, 16)}
	c, err := sentinel.New(sentinel.Config{
		SentinelURL: "https://s.test",
		ServiceName: "agents",
	}, sentinel.WithDeliverer(d), sentinel.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Initialize()
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c, d
}

// fakeRunner plays hook events against the wrapped config, then fails.
type fakeRunner struct {
	mu       sync.Mutex
	steps    func(ctx context.Context, hooks agents.RunHooks)
	err      error
	panicVal any
	lastCtx  context.Context
}

func (f *fakeRunner) Run(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (agents.RunResult, error) {
	return f.do(ctx, cfg)
}

func (f *fakeRunner) RunOnce(ctx context.Context, agent *agents.Agent, input string, cfg *agents.RunConfig) (agents.RunResult, error) {
	return f.do(ctx, cfg)
}

func (f *fakeRunner) RunStream(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (*agents.StreamingRun, error) {
	if _, err := f.do(ctx, cfg); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeRunner) do(ctx context.Context, cfg *agents.RunConfig) (agents.RunResult, error) {
	f.mu.Lock()
	f.lastCtx = ctx
	f.mu.Unlock()

	if f.steps != nil {
		f.steps(ctx, cfg.Hooks)
	}
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	var zero agents.RunResult
	return zero, f.err
}

func (f *fakeRunner) runID(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := sentinel.RunIDFromContext(f.lastCtx)
	if !ok {
		t.Fatal("inner runner did not receive a run ID")
	}
	return id
}

func testAgent(name string) *agents.Agent {
	return agents.NewAgent(agents.AgentConfig{
		Name:         name,
		Instructions: "be helpful",
		Model:        "test-model",
	})
}
