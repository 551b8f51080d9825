package pipeline

import (
	"time"

	"github.com/teranos/threatbrief/stages"
)

// Observer receives stage lifecycle events. Calls may come from several
// goroutines when parallelism is above one.
type Observer interface {
	StageStarted(id stages.ID, role string)
	StageFinished(id stages.ID, role string, d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) StageStarted(stages.ID, string)                        {}
func (noopObserver) StageFinished(stages.ID, string, time.Duration, error) {}
