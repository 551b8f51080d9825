package wslogs

import (
	"sync"
)

// Hub tracks which runs have a client waiting for their logs
type Hub struct {
	runs map[string]*Batcher
	mu   sync.RWMutex
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		runs: make(map[string]*Batcher),
	}
}

// Watch starts collecting logs for runID
func (h *Hub) Watch(runID string) *Batcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := NewBatcher(runID)
	h.runs[runID] = b
	return b
}

// Release stops collecting logs for runID and returns whatever was not flushed
func (h *Hub) Release(runID string) *Batch {
	h.mu.Lock()
	b, ok := h.runs[runID]
	delete(h.runs, runID)
	h.mu.Unlock()

	if !ok {
		return nil
	}
	return b.Flush()
}

// batcher returns the batcher for runID, or nil when nobody is watching
func (h *Hub) batcher(runID string) *Batcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.runs[runID]
}

// Watching returns the number of runs being collected
func (h *Hub) Watching() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}
