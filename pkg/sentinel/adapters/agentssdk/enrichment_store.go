// enrichment_store.go keeps what the run hooks observed about each run so that
// an error surfacing at the runner boundary can be reported with it.

package agentssdk

import "sync"

// Enrichment is what the hooks saw last in one run.
type Enrichment struct {
	AgentName string
	Model     string

	ToolName   string
	ToolCallID string

	// Operation is the kind of step in progress: "llm", "tool" or "handoff".
	Operation string

	// OperationID identifies the step, e.g. the tool call ID.
	OperationID string

	// HandoffTarget is the agent being handed to during a handoff.
	HandoffTarget string

	// Steps counts the hook events seen for the run.
	Steps int
}

// Fields renders e as report context. Empty values are omitted.
func (e Enrichment) Fields() map[string]any {
	out := make(map[string]any, 8)
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("agent_name", e.AgentName)
	set("model", e.Model)
	set("tool_name", e.ToolName)
	set("tool_call_id", e.ToolCallID)
	set("operation", e.Operation)
	set("operation_id", e.OperationID)
	set("handoff_target", e.HandoffTarget)
	if e.Steps > 0 {
		out["steps"] = e.Steps
	}
	return out
}

// EnrichmentStore holds per-run enrichment. Implementations must be safe for
// concurrent use.
type EnrichmentStore interface {
	// Update applies fn to the enrichment for runID, creating it if needed.
	// fn runs under the store lock and must not call back into the store.
	Update(runID string, fn func(e *Enrichment))

	// Get returns a copy of the enrichment for runID.
	Get(runID string) (Enrichment, bool)

	Delete(runID string)
}

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]*Enrichment
}

// NewEnrichmentStore creates an in-memory store.
func NewEnrichmentStore() EnrichmentStore {
	return &memoryStore{data: make(map[string]*Enrichment)}
}

func (s *memoryStore) Update(runID string, fn func(e *Enrichment)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[runID]
	if !ok {
		e = &Enrichment{}
		s.data[runID] = e
	}
	fn(e)
	e.Steps++
}

func (s *memoryStore) Get(runID string) (Enrichment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[runID]
	if !ok {
		return Enrichment{}, false
	}
	return *e, true
}

func (s *memoryStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
}
