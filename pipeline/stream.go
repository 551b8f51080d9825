package pipeline

import (
	"context"

	"github.com/teranos/threatbrief/stages"
)

// Event is one completed stage
type Event struct {
	Stage  stages.Stage
	Output string
}

// Stream is a single run whose stage outputs are delivered as they complete.
// It cannot be restarted. Events are buffered for every stage, so a consumer
// that stops reading never blocks the run.
type Stream struct {
	events chan Event
	done   chan struct{}
	result *Result
	err    error
}

// Stream starts a run in the background. Events arrive in completion order,
// which is the declared order unless independent stages run in parallel.
func (e *Executor) Stream(ctx context.Context, list []stages.Stage) *Stream {
	s := &Stream{
		events: make(chan Event, len(list)),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		s.result, s.err = e.run(ctx, list, func(ev Event) {
			s.events <- ev
		})
	}()
	return s
}

// Events yields each completed stage; closed when the run ends
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Wait blocks until the run ends and returns its outcome
func (s *Stream) Wait() (*Result, error) {
	<-s.done
	return s.result, s.err
}
