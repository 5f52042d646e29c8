// wrapper.go wraps an agents runner so that run errors and panics are
// reported. It is the only place the adapter reports; hooks only enrich.

package agentssdk

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/strongdm/ai-agents-sdk/pkg/agents"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
	"github.com/strongdm/sentinel-catcher/pkg/sentinel/hook"
)

// Runner is the part of *agents.Runner the wrapper drives.
type Runner interface {
	Run(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (agents.RunResult, error)
	RunOnce(ctx context.Context, agent *agents.Agent, input string, cfg *agents.RunConfig) (agents.RunResult, error)
	RunStream(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (*agents.StreamingRun, error)
}

var _ Runner = (*agents.Runner)(nil)

// ContextIDProvider is implemented by sessions backed by a cxdb conversation.
type ContextIDProvider interface {
	ContextID(ctx context.Context) (uint64, error)
}

// WrappedRunner runs agents through an inner Runner and reports failures.
type WrappedRunner struct {
	inner       Runner
	reporter    sentinel.Reporter
	enrichments EnrichmentStore
	log         *slog.Logger
	newRunID    func() string
}

// Run executes agent, reporting a returned error asynchronously and a panic
// synchronously before re-panicking.
func (w *WrappedRunner) Run(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (agents.RunResult, error) {
	runID := w.newRunID()
	ctx = sentinel.WithRunID(ctx, runID)
	defer w.enrichments.Delete(runID)

	contextID := w.contextID(ctx, session)
	defer w.capturePanic(ctx, runID, contextID)

	result, err := w.inner.Run(ctx, agent, input, session, w.wrapRunConfig(cfg))
	if err != nil {
		w.captureError(ctx, runID, contextID, err)
	}
	return result, err
}

// RunOnce executes a single turn of agent.
func (w *WrappedRunner) RunOnce(ctx context.Context, agent *agents.Agent, input string, cfg *agents.RunConfig) (agents.RunResult, error) {
	runID := w.newRunID()
	ctx = sentinel.WithRunID(ctx, runID)
	defer w.enrichments.Delete(runID)

	contextID := w.contextID(ctx, nil)
	defer w.capturePanic(ctx, runID, contextID)

	result, err := w.inner.RunOnce(ctx, agent, input, w.wrapRunConfig(cfg))
	if err != nil {
		w.captureError(ctx, runID, contextID, err)
	}
	return result, err
}

// RunStream starts a streaming run. Only failures to start are reported;
// errors surfacing while the stream is consumed are not.
func (w *WrappedRunner) RunStream(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (*agents.StreamingRun, error) {
	runID := w.newRunID()
	ctx = sentinel.WithRunID(ctx, runID)

	contextID := w.contextID(ctx, session)
	defer w.capturePanic(ctx, runID, contextID)

	stream, err := w.inner.RunStream(ctx, agent, input, session, w.wrapRunConfig(cfg))
	if err != nil {
		w.captureError(ctx, runID, contextID, err)
		w.enrichments.Delete(runID)
		return stream, err
	}

	// The stream outlives this call; drop its enrichment with the run context.
	context.AfterFunc(ctx, func() { w.enrichments.Delete(runID) })
	return stream, nil
}

// Inner returns the wrapped Runner.
func (w *WrappedRunner) Inner() Runner {
	return w.inner
}

// contextID links the run to a cxdb conversation: the session's own ID when
// it has one, else an ID attached with sentinel.WithContextID.
func (w *WrappedRunner) contextID(ctx context.Context, session any) uint64 {
	if provider, ok := session.(ContextIDProvider); ok {
		if id, err := provider.ContextID(ctx); err == nil && id != 0 {
			return id
		}
	}
	if id, ok := sentinel.FieldsFromContext(ctx)[sentinel.FieldCXDBContextID].(uint64); ok {
		return id
	}
	return 0
}

// wrapRunConfig copies cfg with its hooks wrapped for enrichment.
func (w *WrappedRunner) wrapRunConfig(cfg *agents.RunConfig) *agents.RunConfig {
	var cloned agents.RunConfig
	if cfg != nil {
		cloned = *cfg
	}
	cloned.Hooks = NewHookAdapter(w.enrichments, cloned.Hooks, w.log)
	return &cloned
}

func (w *WrappedRunner) captureError(ctx context.Context, runID string, contextID uint64, err error) {
	enrichment, _ := w.enrichments.Get(runID)
	opts := append(errorOptions(runID, contextID, err, enrichment), sentinel.WithSkipFrames(2))
	sentinel.WarnOnFailure(w.log, w.reporter.ReportAsync(ctx, err, opts...), "run_id", runID)
}

// capturePanic reports a panic escaping the run and re-panics with the
// original value. The report completes first since the panic may end the
// process.
func (w *WrappedRunner) capturePanic(ctx context.Context, runID string, contextID uint64) {
	r := recover()
	if r == nil {
		return
	}

	enrichment, _ := w.enrichments.Get(runID)
	opts := panicOptions(runID, contextID, hook.Callers(1), enrichment)
	out, err := w.reporter.Report(context.WithoutCancel(ctx), hook.AsError(r), opts...)
	if err != nil || !out.OK() {
		w.log.Warn("sentinel: failed to report run panic",
			"run_id", runID,
			"status", out.Status,
			"error", firstErr(err, out.Err))
	}
	panic(r)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func defaultRunID() string { return uuid.NewString() }
