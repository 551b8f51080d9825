package wslogs

import (
	"sync"
	"time"
)

// Batcher collects the log messages of one run
type Batcher struct {
	messages []Message
	runID    string
	mu       sync.Mutex
}

// NewBatcher creates a new log batcher for a run
func NewBatcher(runID string) *Batcher {
	return &Batcher{
		messages: make([]Message, 0, 32),
		runID:    runID,
	}
}

// Append adds a log message to the batch
func (b *Batcher) Append(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

// Flush returns the collected messages and clears the buffer.
// Returns nil when nothing was logged since the last flush.
func (b *Batcher) Flush() *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.messages) == 0 {
		return nil
	}
	batch := &Batch{
		Messages:  b.messages,
		RunID:     b.runID,
		Timestamp: time.Now(),
	}
	b.messages = make([]Message, 0, cap(b.messages))
	return batch
}

// Count returns the number of messages currently in the batch
func (b *Batcher) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}
