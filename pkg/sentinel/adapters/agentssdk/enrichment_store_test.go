package agentssdk

import (
	"fmt"
	"sync"
	"testing"
)

func TestEnrichmentStore_UpdateGetDelete(t *testing.T) {
	store := NewEnrichmentStore()

	if _, ok := store.Get("missing"); ok {
		t.Error("Get on empty store returned ok")
	}

	store.Update("run-1", func(e *Enrichment) { e.AgentName = "a" })
	store.Update("run-1", func(e *Enrichment) { e.ToolName = "T" })

	e, ok := store.Get("run-1")
	if !ok || e.AgentName != "a" || e.ToolName != "T" || e.Steps != 2 {
		t.Errorf("Get = %+v, %v", e, ok)
	}

	e.AgentName = "mutated"
	if again, _ := store.Get("run-1"); again.AgentName != "a" {
		t.Error("Get must return a copy")
	}

	store.Delete("run-1")
	if _, ok := store.Get("run-1"); ok {
		t.Error("Delete did not remove the run")
	}
}

func TestEnrichmentStore_Concurrent(t *testing.T) {
	store := NewEnrichmentStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runID := fmt.Sprintf("run-%d", i%2)
			for j := 0; j < 100; j++ {
				store.Update(runID, func(e *Enrichment) { e.Operation = "tool" })
				store.Get(runID)
			}
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"run-0", "run-1"} {
		if e, _ := store.Get(id); e.Steps != 400 {
			t.Errorf("%s Steps = %d, want 400", id, e.Steps)
		}
	}
}

func TestEnrichment_Fields(t *testing.T) {
	if got := (Enrichment{}).Fields(); len(got) != 0 {
		t.Errorf("empty enrichment fields = %v", got)
	}

	got := Enrichment{AgentName: "a", Operation: "llm", Model: "m", Steps: 2}.Fields()
	if len(got) != 4 || got["agent_name"] != "a" || got["model"] != "m" || got["steps"] != 2 {
		t.Errorf("Fields = %v", got)
	}
}
