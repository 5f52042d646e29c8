// report.go turns run failures into report options.

package agentssdk

import (
	"context"
	"errors"
	"strings"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// FrameworkName tags reports captured by this adapter.
const FrameworkName = "agents-sdk"

// Error kinds derived from run errors.
const (
	KindError     = "error"
	KindTimeout   = "timeout"
	KindCanceled  = "canceled"
	KindGuardrail = "guardrail"
	KindPanic     = "panic"
)

var guardrailPatterns = []string{
	"guardrail",
	"content policy",
	"safety filter",
	"blocked by policy",
}

// classifyError names the kind of run failure.
func classifyError(err error) string {
	switch {
	case err == nil:
		return KindError
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	msg := strings.ToLower(err.Error())
	for _, p := range guardrailPatterns {
		if strings.Contains(msg, p) {
			return KindGuardrail
		}
	}
	return KindError
}

// runContext builds the report context for a failed run.
func runContext(runID string, contextID uint64, kind string, enrichment Enrichment) map[string]any {
	out := enrichment.Fields()
	out["run_id"] = runID
	out["error_kind"] = kind
	if contextID != 0 {
		out[sentinel.FieldCXDBContextID] = contextID
	}
	return out
}

// errorOptions are the report options for an error returned by a run.
func errorOptions(runID string, contextID uint64, err error, enrichment Enrichment) []sentinel.ReportOption {
	kind := classifyError(err)
	opts := []sentinel.ReportOption{
		sentinel.WithContext(runContext(runID, contextID, kind, enrichment)),
		sentinel.WithSource(sentinel.SourceAgent),
		sentinel.WithTags("agent", kind),
	}
	if kind == KindCanceled {
		opts = append(opts, sentinel.WithSeverity(sentinel.SeverityLow))
	}
	return opts
}

// panicOptions are the report options for a panic inside a run.
func panicOptions(runID string, contextID uint64, stack []sentinel.Frame, enrichment Enrichment) []sentinel.ReportOption {
	return []sentinel.ReportOption{
		sentinel.WithContext(runContext(runID, contextID, KindPanic, enrichment)),
		sentinel.WithSource(sentinel.SourceAgent),
		sentinel.WithTags("agent", KindPanic),
		sentinel.WithSeverity(sentinel.SeverityCritical),
		sentinel.WithStack(stack),
	}
}
