// hooks.go holds the user-replaceable error filter and context enricher and
// the failure boundary they run inside.

package sentinel

import (
	"fmt"
	"log/slog"
	"maps"
)

// ErrorFilter decides whether an error is reported at all.
type ErrorFilter func(err error) bool

// ContextEnricher returns extra context for an error. It receives a copy of
// the caller-supplied context; keys it returns override colliding keys only.
type ContextEnricher func(err error, ctx map[string]any) map[string]any

// AcceptAll is the default filter.
func AcceptAll(error) bool { return true }

// NoEnrichment is the default enricher.
func NoEnrichment(error, map[string]any) map[string]any { return nil }

// runFilter applies f, treating a panic as accept. faulted reports whether f
// panicked.
func runFilter(log *slog.Logger, f ErrorFilter, err error) (accept, faulted bool) {
	if f == nil {
		return true, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("sentinel: error filter panicked, accepting error",
				"panic", fmt.Sprint(r))
			accept, faulted = true, true
		}
	}()
	return f(err), false
}

// runEnricher applies e, treating a panic as no enrichment.
func runEnricher(log *slog.Logger, e ContextEnricher, err error, ctx map[string]any) (extra map[string]any, faulted bool) {
	if e == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("sentinel: context enricher panicked, continuing without enrichment",
				"panic", fmt.Sprint(r))
			extra, faulted = nil, true
		}
	}()
	return e(err, maps.Clone(ctx)), false
}

// mergeContext builds the envelope context: caller keys are kept and enricher
// keys win on collision. Neither input is modified.
func mergeContext(caller, enriched map[string]any) map[string]any {
	out := make(map[string]any, len(caller)+len(enriched))
	maps.Copy(out, caller)
	maps.Copy(out, enriched)
	return out
}
