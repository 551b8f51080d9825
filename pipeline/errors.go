package pipeline

import (
	"fmt"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/stages"
)

// PipelineError reports the stage that aborted a run.
// Partial holds every output completed before the failure.
type PipelineError struct {
	Stage   stages.ID
	Role    string
	Cause   error
	Partial *Result
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stage %s (%s) failed: %v", e.Stage, e.Role, e.Cause)
}

// Unwrap exposes the cause so taxonomy checks see through the stage context
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// AsPipelineError extracts a *PipelineError from err's chain
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
