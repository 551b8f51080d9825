package pipeline

import (
	"sync"

	"github.com/teranos/threatbrief/stages"
)

// Result maps stage IDs to generated text for one run.
// Entries are written once and never changed.
type Result struct {
	mu      sync.RWMutex
	outputs map[stages.ID]string
	order   []stages.ID
	final   stages.ID
}

func newResult(final stages.ID, size int) *Result {
	return &Result{
		outputs: make(map[stages.ID]string, size),
		final:   final,
	}
}

// set records a stage output; a second write for the same stage is ignored
func (r *Result) set(id stages.ID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[id]; ok {
		return
	}
	r.outputs[id] = text
	r.order = append(r.order, id)
}

// Get returns one stage's output
func (r *Result) Get(id stages.ID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.outputs[id]
	return text, ok
}

// IDs returns the completed stages in completion order
func (r *Result) IDs() []stages.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]stages.ID(nil), r.order...)
}

// Map returns a copy of all outputs
func (r *Result) Map() map[stages.ID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[stages.ID]string, len(r.outputs))
	for k, v := range r.outputs {
		out[k] = v
	}
	return out
}

// Len returns the number of completed stages
func (r *Result) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outputs)
}

// Report returns the final stage's output, the headline result
func (r *Result) Report() (string, bool) {
	return r.Get(r.final)
}

// FinalStage is the ID whose output Report returns
func (r *Result) FinalStage() stages.ID {
	return r.final
}
