// hooks.go records run progress into the enrichment store. It never reports;
// the runner wrapper does.

package agentssdk

import (
	"context"
	"log/slog"

	"github.com/strongdm/ai-agents-sdk/pkg/agents"
	llmsdk "github.com/strongdm/ai-llm-sdk/pkg/llm"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// HookAdapter implements agents.RunHooks. It records enrichment for the run
// in ctx and then calls the inner hooks, whose errors it returns unchanged.
type HookAdapter struct {
	store EnrichmentStore
	inner agents.RunHooks
	log   *slog.Logger
}

var _ agents.RunHooks = (*HookAdapter)(nil)

// NewHookAdapter wraps inner, which may be nil.
func NewHookAdapter(store EnrichmentStore, inner agents.RunHooks, log *slog.Logger) *HookAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &HookAdapter{store: store, inner: inner, log: log}
}

func (h *HookAdapter) OnAgentStart(ctx context.Context, runCtx *agents.AgentHookContext, agent *agents.Agent) error {
	h.record(ctx, func(e *Enrichment) {
		if agent != nil {
			e.AgentName = agent.Name()
		}
	})
	if h.inner != nil {
		return h.inner.OnAgentStart(ctx, runCtx, agent)
	}
	return nil
}

func (h *HookAdapter) OnAgentEnd(ctx context.Context, runCtx *agents.AgentHookContext, agent *agents.Agent, result agents.RunResult) error {
	if h.inner != nil {
		return h.inner.OnAgentEnd(ctx, runCtx, agent, result)
	}
	return nil
}

func (h *HookAdapter) OnHandoff(ctx context.Context, runCtx *agents.RunContext, from *agents.Agent, to *agents.Agent) error {
	h.record(ctx, func(e *Enrichment) {
		if from != nil {
			e.AgentName = from.Name()
		}
		if to != nil {
			e.HandoffTarget = to.Name()
		}
		e.Operation = "handoff"
		e.OperationID = ""
	})
	if h.inner != nil {
		return h.inner.OnHandoff(ctx, runCtx, from, to)
	}
	return nil
}

func (h *HookAdapter) OnToolStart(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, tool agents.Tool, call llmsdk.ToolCall) error {
	h.record(ctx, func(e *Enrichment) {
		if agent != nil {
			e.AgentName = agent.Name()
		}
		e.Operation = "tool"
		e.ToolName = tool.Name
		e.ToolCallID = call.ID
		e.OperationID = call.ID
	})
	if h.inner != nil {
		return h.inner.OnToolStart(ctx, runCtx, agent, tool, call)
	}
	return nil
}

func (h *HookAdapter) OnToolEnd(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, tool agents.Tool, output string) error {
	if h.inner != nil {
		return h.inner.OnToolEnd(ctx, runCtx, agent, tool, output)
	}
	return nil
}

func (h *HookAdapter) OnLLMStart(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, req llmsdk.Request) error {
	h.record(ctx, func(e *Enrichment) {
		if agent != nil {
			e.AgentName = agent.Name()
		}
		e.Operation = "llm"
		e.OperationID = ""
		e.Model = req.Model
	})
	if h.inner != nil {
		return h.inner.OnLLMStart(ctx, runCtx, agent, req)
	}
	return nil
}

func (h *HookAdapter) OnLLMEnd(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, resp llmsdk.Response) error {
	if h.inner != nil {
		return h.inner.OnLLMEnd(ctx, runCtx, agent, resp)
	}
	return nil
}

// record updates the run's enrichment. Hooks outside a wrapped run are
// ignored.
func (h *HookAdapter) record(ctx context.Context, fn func(e *Enrichment)) {
	runID, ok := sentinel.RunIDFromContext(ctx)
	if !ok {
		h.log.Debug("sentinel: run hook outside an instrumented run")
		return
	}
	h.store.Update(runID, fn)
}
