package agentssdk

import (
	"log/slog"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// WrapOption configures a WrappedRunner.
type WrapOption func(*WrappedRunner)

// WithLogger sets the logger for report failures and hook diagnostics.
func WithLogger(log *slog.Logger) WrapOption {
	return func(w *WrappedRunner) {
		w.log = log
	}
}

// WithEnrichmentStore replaces the in-memory enrichment store.
func WithEnrichmentStore(store EnrichmentStore) WrapOption {
	return func(w *WrappedRunner) {
		w.enrichments = store
	}
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(next func() string) WrapOption {
	return func(w *WrappedRunner) {
		w.newRunID = next
	}
}

// Instrument wraps runner so that run errors and panics reach reporter,
// usually a *sentinel.Catcher, with agent, tool and model context.
//
//	runner := agents.NewRunner(client)
//	wrapped := agentssdk.Instrument(runner, catcher)
//	result, err := wrapped.Run(ctx, agent, input, session, nil)
func Instrument(runner Runner, reporter sentinel.Reporter, opts ...WrapOption) *WrappedRunner {
	w := &WrappedRunner{
		inner:       runner,
		reporter:    reporter,
		enrichments: NewEnrichmentStore(),
		log:         slog.Default(),
		newRunID:    defaultRunID,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.enrichments == nil {
		w.enrichments = NewEnrichmentStore()
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}
