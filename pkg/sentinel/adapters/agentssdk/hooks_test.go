package agentssdk

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/strongdm/ai-agents-sdk/pkg/agents"
	llmsdk "github.com/strongdm/ai-llm-sdk/pkg/llm"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

type spyHooks struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newSpyHooks() *spyHooks {
	return &spyHooks{calls: map[string]int{}}
}

func (h *spyHooks) record(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[name]++
	return h.err
}

func (h *spyHooks) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func (h *spyHooks) OnAgentStart(ctx context.Context, runCtx *agents.AgentHookContext, agent *agents.Agent) error {
	return h.record("agent_start")
}

func (h *spyHooks) OnAgentEnd(ctx context.Context, runCtx *agents.AgentHookContext, agent *agents.Agent, result agents.RunResult) error {
	return h.record("agent_end")
}

func (h *spyHooks) OnHandoff(ctx context.Context, runCtx *agents.RunContext, from *agents.Agent, to *agents.Agent) error {
	return h.record("handoff")
}

func (h *spyHooks) OnToolStart(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, tool agents.Tool, call llmsdk.ToolCall) error {
	return h.record("tool_start")
}

func (h *spyHooks) OnToolEnd(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, tool agents.Tool, output string) error {
	return h.record("tool_end")
}

func (h *spyHooks) OnLLMStart(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, req llmsdk.Request) error {
	return h.record("llm_start")
}

func (h *spyHooks) OnLLMEnd(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, resp llmsdk.Response) error {
	return h.record("llm_end")
}

func TestHookAdapter_RecordsEnrichment(t *testing.T) {
	store := NewEnrichmentStore()
	h := NewHookAdapter(store, nil, quietLogger())
	ctx := sentinel.WithRunID(context.Background(), "run-1")
	agent := testAgent("planner")

	h.OnAgentStart(ctx, nil, agent)
	e, _ := store.Get("run-1")
	if e.AgentName != "planner" || e.Operation != "" {
		t.Errorf("after agent start: %+v", e)
	}

	h.OnToolStart(ctx, nil, agent, agents.Tool{Name: "Search"}, llmsdk.ToolCall{ID: "call-7"})
	e, _ = store.Get("run-1")
	if e.Operation != "tool" || e.ToolName != "Search" || e.OperationID != "call-7" {
		t.Errorf("after tool start: %+v", e)
	}

	h.OnLLMStart(ctx, nil, agent, llmsdk.Request{Model: "gpt-test"})
	e, _ = store.Get("run-1")
	if e.Operation != "llm" || e.Model != "gpt-test" || e.OperationID != "" {
		t.Errorf("after llm start: %+v", e)
	}

	h.OnHandoff(ctx, nil, agent, testAgent("writer"))
	e, _ = store.Get("run-1")
	if e.Operation != "handoff" || e.AgentName != "planner" || e.HandoffTarget != "writer" {
		t.Errorf("after handoff: %+v", e)
	}
	if e.Steps != 4 {
		t.Errorf("Steps = %d, want 4", e.Steps)
	}
}

func TestHookAdapter_IgnoresHooksOutsideRuns(t *testing.T) {
	store := NewEnrichmentStore()
	h := NewHookAdapter(store, nil, quietLogger())

	h.OnAgentStart(context.Background(), nil, testAgent("a"))

	if _, ok := store.Get(""); ok {
		t.Error("hooks without a run ID must not create enrichment")
	}
}

func TestHookAdapter_DelegatesToInner(t *testing.T) {
	spy := newSpyHooks()
	spy.err = errors.New("inner hook failed")
	h := NewHookAdapter(NewEnrichmentStore(), spy, quietLogger())
	ctx := sentinel.WithRunID(context.Background(), "run-1")
	agent := testAgent("a")
	var result agents.RunResult

	errs := []error{
		h.OnAgentStart(ctx, nil, agent),
		h.OnAgentEnd(ctx, nil, agent, result),
		h.OnHandoff(ctx, nil, agent, agent),
		h.OnToolStart(ctx, nil, agent, agents.Tool{Name: "T"}, llmsdk.ToolCall{}),
		h.OnToolEnd(ctx, nil, agent, agents.Tool{Name: "T"}, "out"),
		h.OnLLMStart(ctx, nil, agent, llmsdk.Request{}),
		h.OnLLMEnd(ctx, nil, agent, llmsdk.Response{}),
	}

	for i, err := range errs {
		if !errors.Is(err, spy.err) {
			t.Errorf("hook %d returned %v, want the inner error", i, err)
		}
	}
	for _, name := range []string{"agent_start", "agent_end", "handoff", "tool_start", "tool_end", "llm_start", "llm_end"} {
		if spy.count(name) != 1 {
			t.Errorf("%s called %d times, want 1", name, spy.count(name))
		}
	}
}

func TestHookAdapter_NilInner(t *testing.T) {
	h := NewHookAdapter(NewEnrichmentStore(), nil, nil)
	ctx := sentinel.WithRunID(context.Background(), "run-1")

	if err := h.OnLLMEnd(ctx, nil, nil, llmsdk.Response{}); err != nil {
		t.Errorf("OnLLMEnd = %v", err)
	}
	if err := h.OnToolStart(ctx, nil, nil, agents.Tool{Name: "T"}, llmsdk.ToolCall{}); err != nil {
		t.Errorf("OnToolStart = %v", err)
	}
}
