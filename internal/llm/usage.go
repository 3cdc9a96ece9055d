package llm

import (
	"sync"

	"github.com/goadesign/docgen-engine/internal/model"
)

// UsageRegistry is the process-wide, mutex-guarded ring of LLMCall records.
// Snapshot/Reset exist so
// tests can assert on exactly the calls a run produced without racing other
// concurrent executions writing into the same ring.
type UsageRegistry struct {
	mu       sync.Mutex
	capacity int
	calls    []model.LLMCall
	models   map[string]bool
}

// NewUsageRegistry constructs a registry that retains at most capacity
// records, evicting the oldest first. capacity <= 0 means unbounded.
func NewUsageRegistry(capacity int) *UsageRegistry {
	return &UsageRegistry{capacity: capacity, models: map[string]bool{}}
}

// Record appends call to the ring and tracks its model in the models-used set.
func (r *UsageRegistry) Record(call model.LLMCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if r.capacity > 0 && len(r.calls) > r.capacity {
		r.calls = r.calls[len(r.calls)-r.capacity:]
	}
	r.models[call.Model] = true
}

// Snapshot returns a copy of the currently recorded calls.
func (r *UsageRegistry) Snapshot() []model.LLMCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LLMCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// ModelsUsed returns the distinct set of models recorded so far.
func (r *UsageRegistry) ModelsUsed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.models))
	for m := range r.models {
		out = append(out, m)
	}
	return out
}

// Reset clears the ring and the models-used set. Intended for test isolation.
func (r *UsageRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.models = map[string]bool{}
}
