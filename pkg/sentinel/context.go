// context.go provides utilities for carrying the active Catcher, ambient report
// fields and run IDs through context.Context.

package sentinel

import (
	"context"
	"maps"
)

// Context key types (unexported to avoid collisions)
type catcherKey struct{}
type fieldsKey struct{}
type runIDKey struct{}

// NewContext returns a context carrying c. Framework adapters attach the
// Catcher this way so handlers can report manually.
func NewContext(ctx context.Context, c *Catcher) context.Context {
	return context.WithValue(ctx, catcherKey{}, c)
}

// FromContext returns the Catcher attached by NewContext, or nil.
func FromContext(ctx context.Context) *Catcher {
	c, _ := ctx.Value(catcherKey{}).(*Catcher)
	return c
}

// WithFields returns a context whose reports include fields in their context.
// Fields accumulate across calls; later calls win on key collision. Context
// passed explicitly to a report wins over ambient fields.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	merged := maps.Clone(FieldsFromContext(ctx))
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	maps.Copy(merged, fields)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFromContext returns the ambient fields attached by WithFields. The
// returned map must not be modified.
func FieldsFromContext(ctx context.Context) map[string]any {
	f, _ := ctx.Value(fieldsKey{}).(map[string]any)
	return f
}

// WithRunID returns a context with the run ID attached. The agent adapter uses
// it to correlate hook enrichment with runner-boundary errors.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext extracts the run ID from context.
// Returns empty string and false if not set or if the run ID is empty.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// FieldCXDBContextID is the context key linking a report to a cxdb
// conversation. The cxdb mirror sink appends to that conversation when set.
const FieldCXDBContextID = "cxdb_context_id"

// WithContextID returns a context whose reports are linked to the given cxdb
// conversation.
func WithContextID(ctx context.Context, contextID uint64) context.Context {
	return WithFields(ctx, map[string]any{FieldCXDBContextID: contextID})
}
