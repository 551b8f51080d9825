package generator

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/threatbrief/ai/provider"
	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/metrics"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/report"
	"github.com/teranos/threatbrief/roles"
	"github.com/teranos/threatbrief/stages"
)

// NewFromConfig wires the configured generation backend, blueprint, role
// registry and renderer into a Service. collector may be nil.
func NewFromConfig(cfg *am.Config, collector *metrics.Collector, log *zap.SugaredLogger) (*Service, error) {
	if log == nil {
		log = logger.ComponentLogger("generator")
	}
	gen, err := provider.NewGeneratorFromConfig(cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create generation backend")
	}
	log.Infow("Generation backend ready", logger.FieldProvider, string(gen.Provider()))
	return NewFromConfigWithGenerator(cfg, gen, collector, log)
}

// NewFromConfigWithGenerator is NewFromConfig with an explicit generation backend
func NewFromConfigWithGenerator(cfg *am.Config, gen pipeline.Generator, collector *metrics.Collector, log *zap.SugaredLogger) (*Service, error) {
	if log == nil {
		log = logger.ComponentLogger("generator")
	}

	reg, err := roles.LoadOrDefault(cfg.Pipeline.RolesFile)
	if err != nil {
		return nil, err
	}
	bp, err := stages.Resolve(cfg.Pipeline.Blueprint)
	if err != nil {
		return nil, err
	}
	// fail at startup, not on the first request
	if _, err := bp.SelectRoles(reg); err != nil {
		return nil, err
	}

	execOpts := []pipeline.Option{
		pipeline.WithParallelism(cfg.Pipeline.Parallelism),
		pipeline.WithStageTimeout(time.Duration(cfg.Pipeline.StageTimeoutSeconds) * time.Second),
		pipeline.WithLogger(log.Named("pipeline")),
	}
	if collector != nil {
		execOpts = append(execOpts, pipeline.WithObserver(collector))
	}
	exec := pipeline.NewExecutor(gen, execOpts...)

	renderer, err := report.NewFromConfig(cfg.Render, gen, log.Named("report"))
	if err != nil {
		return nil, err
	}

	opts := []Option{WithRenderer(renderer), WithLogger(log)}
	if collector != nil {
		opts = append(opts, WithRunObserver(collector))
	}

	log.Infow("Report service configured",
		logger.FieldBlueprint, bp.Name,
		"roles", reg.Version(),
		"parallelism", exec.Parallelism(),
		"format", cfg.Render.Format)
	return NewService(bp, reg, exec, opts...), nil
}
