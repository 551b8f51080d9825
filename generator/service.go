// Package generator is the report service: it parses evidence, plans the
// stages, runs the pipeline and renders the final document.
package generator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/evidence"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/report"
	"github.com/teranos/threatbrief/roles"
	"github.com/teranos/threatbrief/stages"
)

// Request is one report run
type Request struct {
	Threat   string
	Evidence []byte
	Format   evidence.Format
	// RunID, when set, is used instead of a generated one
	RunID string
	// OnStage, when set, receives each completed stage as it finishes
	OnStage func(pipeline.Event)
}

// Outcome is everything one run produced
type Outcome struct {
	RunID     string
	Threat    string
	Blueprint string
	Stages    []stages.Stage
	Result    *pipeline.Result
	Document  *report.Document
	Artifact  *report.Artifact
	Duration  time.Duration
}

// Report returns the headline text
func (o *Outcome) Report() string {
	if o.Result == nil {
		return ""
	}
	text, _ := o.Result.Report()
	return text
}

// RunObserver records finished runs
type RunObserver interface {
	ObserveRun(d time.Duration, err error)
}

// Service runs reports. Safe for concurrent use; runs share nothing but the
// generation backend.
type Service struct {
	blueprint *stages.Blueprint
	registry  *roles.Registry
	executor  *pipeline.Executor
	renderer  report.Renderer
	runs      RunObserver
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithRenderer sets the document renderer; without one GenerateReport fails
func WithRenderer(r report.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithRunObserver records run durations and outcomes
func WithRunObserver(o RunObserver) Option {
	return func(s *Service) { s.runs = o }
}

// WithLogger sets the service logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for document timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a report service
func NewService(bp *stages.Blueprint, reg *roles.Registry, exec *pipeline.Executor, opts ...Option) *Service {
	s := &Service{
		blueprint: bp,
		registry:  reg,
		executor:  exec,
		logger:    logger.ComponentLogger("generator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Blueprint returns the stage blueprint in use
func (s *Service) Blueprint() *stages.Blueprint {
	return s.blueprint
}

// Registry returns the role registry in use
func (s *Service) Registry() *roles.Registry {
	return s.registry
}

// Plan parses the evidence and builds the stage list without running it
func (s *Service) Plan(threat string, raw []byte, format evidence.Format) ([]stages.Stage, error) {
	canonical, err := evidence.Parse(raw, format)
	if err != nil {
		return nil, err
	}
	return s.blueprint.Plan(threat, canonical, s.registry)
}

// Run executes the pipeline for req. The outcome has no document.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	out, err := s.run(ctx, req)
	if err != nil {
		s.observe(start, err)
		return nil, err
	}
	out.Duration = time.Since(start)
	s.observe(start, nil)
	return out, nil
}

// GenerateReport executes the pipeline and renders the final stage output
func (s *Service) GenerateReport(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	out, err := s.generateReport(ctx, req)
	s.observe(start, err)
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

func (s *Service) generateReport(ctx context.Context, req Request) (*Outcome, error) {
	if s.renderer == nil {
		return nil, errors.MarkRender(errors.New("no renderer configured"))
	}
	out, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithRunID(ctx, out.RunID)
	log := logger.LoggerFromContext(ctx, s.logger)

	doc, err := report.Project(out.Report(), out.RunID, s.now())
	if err != nil {
		return nil, err
	}
	// an abandoned request gets no document
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "run abandoned before rendering")
	}
	art, err := s.renderer.Render(ctx, doc)
	if err != nil {
		log.Errorw("Render failed", logger.FieldError, err)
		return nil, err
	}
	out.Document = doc
	out.Artifact = art
	log.Infow("Report rendered", logger.FieldFile, art.Path, logger.FieldSize, art.Size)
	return out, nil
}

func (s *Service) run(ctx context.Context, req Request) (*Outcome, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.WithRunID(ctx, runID)
	log := logger.LoggerFromContext(ctx, s.logger)

	threat := strings.TrimSpace(req.Threat)
	if threat == "" {
		threat = stages.DefaultThreat
	}

	list, err := s.Plan(threat, req.Evidence, req.Format)
	if err != nil {
		log.Infow("Request rejected", logger.FieldError, err)
		return nil, err
	}

	log.Infow("Run started",
		logger.FieldThreat, threat,
		logger.FieldBlueprint, s.blueprint.Name,
		logger.FieldCount, len(list))

	stream := s.executor.Stream(ctx, list)
	for ev := range stream.Events() {
		if req.OnStage != nil {
			req.OnStage(ev)
		}
	}
	res, err := stream.Wait()
	if err != nil {
		if pe, ok := pipeline.AsPipelineError(err); ok {
			log.Warnw("Run failed",
				logger.FieldStage, string(pe.Stage),
				logger.FieldRole, pe.Role,
				logger.FieldError, pe.Cause)
		}
		return nil, err
	}

	return &Outcome{
		RunID:     runID,
		Threat:    threat,
		Blueprint: s.blueprint.Name,
		Stages:    list,
		Result:    res,
	}, nil
}

func (s *Service) observe(start time.Time, err error) {
	if s.runs != nil {
		s.runs.ObserveRun(time.Since(start), err)
	}
}
