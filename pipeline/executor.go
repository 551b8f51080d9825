package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/stages"
)

// Executor runs stage lists. It holds no per-run state and may be shared by
// concurrent runs.
type Executor struct {
	gen          Generator
	parallelism  int
	stageTimeout time.Duration
	observer     Observer
	logger       *zap.SugaredLogger
}

// Option configures an Executor
type Option func(*Executor)

// WithParallelism bounds how many independent stages run at once.
// Values below one mean one (sequential).
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.parallelism = n
	}
}

// WithStageTimeout limits each generation call. Zero disables the limit.
func WithStageTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.stageTimeout = d
	}
}

// WithObserver receives stage start and finish events
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the executor's logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor that calls gen for every stage
func NewExecutor(gen Generator, opts ...Option) *Executor {
	e := &Executor{
		gen:         gen,
		parallelism: 1,
		observer:    noopObserver{},
		logger:      logger.ComponentLogger("pipeline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parallelism returns the configured bound
func (e *Executor) Parallelism() int {
	return e.parallelism
}

// Execute runs every stage and returns the collected outputs.
// On failure the error is a *PipelineError carrying the partial result.
func (e *Executor) Execute(ctx context.Context, list []stages.Stage) (*Result, error) {
	s := e.Stream(ctx, list)
	for range s.Events() {
	}
	return s.Wait()
}

// run drives one execution, emitting each completed stage on emit
func (e *Executor) run(ctx context.Context, list []stages.Stage, emit func(Event)) (*Result, error) {
	if err := stages.ValidateOrder(list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.NewInputErrorf("no stages to execute")
	}

	final, _ := stages.Final(list)
	res := newResult(final.ID, len(list))
	roleNames := make(map[stages.ID]string, len(list))
	for _, st := range list {
		roleNames[st.ID] = st.Role.DisplayName()
	}

	log := logger.LoggerFromContext(ctx, e.logger)
	log.Infow("Pipeline started",
		logger.FieldCount, len(list),
		"parallelism", e.parallelism)
	start := time.Now()

	var err error
	if e.parallelism <= 1 {
		err = e.runSequential(ctx, list, roleNames, res, emit)
	} else {
		err = e.runParallel(ctx, list, roleNames, res, emit)
	}
	if err != nil {
		log.Warnw("Pipeline aborted",
			logger.FieldError, err,
			logger.FieldCount, res.Len(),
			logger.FieldDurationMS, time.Since(start).Milliseconds())
		return nil, err
	}

	log.Infow("Pipeline completed",
		logger.FieldCount, res.Len(),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return res, nil
}

func (e *Executor) runSequential(ctx context.Context, list []stages.Stage, roleNames map[stages.ID]string, res *Result, emit func(Event)) error {
	for _, st := range list {
		if err := ctx.Err(); err != nil {
			return e.fail(st, err, res)
		}
		out, err := e.runStage(ctx, st, roleNames, res)
		if err != nil {
			return e.fail(st, err, res)
		}
		res.set(st.ID, out)
		emit(Event{Stage: st, Output: out})
	}
	return nil
}

type completion struct {
	idx int
	out string
	err error
}

// runParallel issues each stage as soon as its dependencies are done, in
// declared order among the ready ones, with at most e.parallelism in flight.
func (e *Executor) runParallel(ctx context.Context, list []stages.Stage, roleNames map[stages.ID]string, res *Result, emit func(Event)) error {
	index := make(map[stages.ID]int, len(list))
	pending := make([]int, len(list))
	dependents := make([][]int, len(list))
	for i, st := range list {
		index[st.ID] = i
		pending[i] = len(st.DependsOn)
		for _, dep := range st.DependsOn {
			d := index[dep]
			dependents[d] = append(dependents[d], i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	done := make(chan completion, len(list))

	launch := func(i int) {
		st := list[i]
		g.Go(func() error {
			out, err := e.runStage(gctx, st, roleNames, res)
			done <- completion{idx: i, out: out, err: err}
			return err
		})
	}

	for i := range list {
		if pending[i] == 0 {
			launch(i)
		}
	}

	var failure error
	for completed := 0; completed < len(list); completed++ {
		c := <-done
		if c.err != nil {
			failure = e.fail(list[c.idx], c.err, res)
			break
		}
		res.set(list[c.idx].ID, c.out)
		emit(Event{Stage: list[c.idx], Output: c.out})

		// dependents are appended in declared order, so ready stages launch in order
		for _, d := range dependents[c.idx] {
			pending[d]--
			if pending[d] == 0 {
				launch(d)
			}
		}
	}

	_ = g.Wait()
	if failure == nil {
		return nil
	}

	// Keep siblings that finished while the failure was being handled
	close(done)
	for c := range done {
		if c.err == nil {
			res.set(list[c.idx].ID, c.out)
		}
	}
	return failure
}

// runStage performs one generation call with the per-stage timeout
func (e *Executor) runStage(ctx context.Context, st stages.Stage, roleNames map[stages.ID]string, res *Result) (string, error) {
	prompt := assemblePrompt(st, roleNames, res)

	log := logger.LoggerFromContext(ctx, e.logger).With(
		logger.FieldStage, string(st.ID),
		logger.FieldRole, st.Role.Name)
	log.Debugw("Stage started", logger.FieldLength, len(prompt))

	sctx := ctx
	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}

	e.observer.StageStarted(st.ID, st.Role.Name)
	start := time.Now()
	out, err := e.gen.Generate(sctx, st.Role.Description(), prompt)
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded):
		err = errors.Mark(errors.MarkGeneration(errors.Wrapf(err, "stage timed out after %s", e.stageTimeout)), errors.ErrTimeout)
	case err != nil && ctx.Err() != nil:
		// cancelled by the caller or by a failing sibling; not a generation failure
		err = errors.Wrap(ctx.Err(), "stage cancelled")
	case err != nil && !errors.IsGenerationError(err):
		err = errors.MarkGeneration(err)
	case err == nil && strings.TrimSpace(out) == "":
		err = errors.NewGenerationErrorf("stage %s returned an empty response", st.ID)
	}

	e.observer.StageFinished(st.ID, st.Role.Name, elapsed, err)
	if err != nil {
		log.Debugw("Stage failed", logger.FieldError, err, logger.FieldDurationMS, elapsed.Milliseconds())
		return "", err
	}
	log.Debugw("Stage completed",
		logger.FieldLength, len(out),
		logger.FieldDurationMS, elapsed.Milliseconds())
	return out, nil
}

func (e *Executor) fail(st stages.Stage, cause error, res *Result) error {
	return &PipelineError{
		Stage:   st.ID,
		Role:    st.Role.Name,
		Cause:   cause,
		Partial: res,
	}
}
