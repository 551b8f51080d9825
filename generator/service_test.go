package generator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/evidence"
	tbtest "github.com/teranos/threatbrief/internal/testing"
	"github.com/teranos/threatbrief/metrics"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/report"
	"github.com/teranos/threatbrief/roles"
	"github.com/teranos/threatbrief/stages"
)

const threatData = `{"source_ip":"10.1.2.3","score":0.91}`

func newService(t *testing.T, gen pipeline.Generator, blueprint string, opts ...Option) *Service {
	t.Helper()
	bp, ok := stages.Builtin(blueprint)
	require.True(t, ok)
	base := []Option{
		WithRenderer(report.NewHTMLRenderer(report.NewMarkdownStyler(), t.TempDir())),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	}
	return NewService(bp, roles.Default(), pipeline.NewExecutor(gen), append(base, opts...)...)
}

func TestGenerateReport(t *testing.T) {
	gen := tbtest.NewScriptedGenerator().On(roles.ReportGenerator, "## Executive Summary\nAll clear.")
	svc := newService(t, gen, stages.CompactName)

	var streamed []stages.ID
	out, err := svc.GenerateReport(context.Background(), Request{
		Threat:   "Credential stuffing",
		Evidence: []byte(threatData),
		OnStage:  func(ev pipeline.Event) { streamed = append(streamed, ev.Stage.ID) },
	})
	require.NoError(t, err)

	assert.Equal(t, "Credential stuffing", out.Threat)
	assert.Equal(t, stages.CompactName, out.Blueprint)
	assert.Equal(t, "## Executive Summary\nAll clear.", out.Report())
	assert.Equal(t, []stages.ID{"analyze", "mitigate", "report"}, streamed)
	require.NotNil(t, out.Artifact)
	assert.Equal(t, "cybersecurity_report"+out.RunID+".html", out.Artifact.Name())
	assert.Equal(t, "Generated on: 2026-01-02 03:04:05", out.Document.GeneratedLine())

	analyze, _ := gen.PromptFor(roles.ThreatAnalyzer)
	assert.Contains(t, analyze, `{"score":0.91,"source_ip":"10.1.2.3"}`)
}

func TestRun_EmptyThreatIsSafe(t *testing.T) {
	gen := tbtest.NewScriptedGenerator()
	out, err := newService(t, gen, stages.CompactName).Run(context.Background(), Request{Evidence: []byte(threatData)})
	require.NoError(t, err)
	assert.Equal(t, stages.DefaultThreat, out.Threat)
	assert.Equal(t, 3, out.Result.Len())
	assert.Nil(t, out.Artifact)

	analyze, _ := gen.PromptFor(roles.ThreatAnalyzer)
	assert.Contains(t, analyze, "Analyze the detected threat: Safe")
}

func TestRun_MalformedEvidence(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		format evidence.Format
	}{
		{"json", `{"source_ip":`, evidence.JSON},
		{"csv", "a,b\n1\n", evidence.CSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := tbtest.NewScriptedGenerator()
			_, err := newService(t, gen, stages.FullName).GenerateReport(context.Background(), Request{
				Threat: "x", Evidence: []byte(tt.raw), Format: tt.format,
			})
			require.Error(t, err)
			assert.True(t, errors.IsParseError(err))
			assert.Equal(t, 0, gen.CallCount())
		})
	}
}

func TestGenerateReport_StageFailure(t *testing.T) {
	gen := tbtest.NewScriptedGenerator().Fail(roles.MitigationStrategist, errors.NewGenerationErrorf("429"))
	collector := metrics.New()
	svc := newService(t, gen, stages.CompactName, WithRunObserver(collector))

	_, err := svc.GenerateReport(context.Background(), Request{Threat: "x", Evidence: []byte(threatData)})
	require.Error(t, err)
	pe, ok := pipeline.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, stages.ID("mitigate"), pe.Stage)
	assert.False(t, gen.Called(roles.ReportGenerator))
}

func TestGenerateReport_NoRenderer(t *testing.T) {
	bp, _ := stages.Builtin(stages.CompactName)
	gen := tbtest.NewScriptedGenerator()
	svc := NewService(bp, roles.Default(), pipeline.NewExecutor(gen))

	_, err := svc.GenerateReport(context.Background(), Request{Threat: "x"})
	assert.True(t, errors.IsRenderError(err))
	assert.Equal(t, 0, gen.CallCount())
}

type cancellingRenderer struct {
	cancel context.CancelFunc
	called bool
}

func (r *cancellingRenderer) Render(context.Context, *report.Document) (*report.Artifact, error) {
	r.called = true
	return &report.Artifact{}, nil
}

func TestGenerateReport_AbandonedBeforeRender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	renderer := &cancellingRenderer{cancel: cancel}
	gen := pipeline.GeneratorFunc(func(_ context.Context, desc, _ string) (string, error) {
		if tbtest.RoleFromDescription(desc) == roles.ReportGenerator {
			cancel()
		}
		return "text", nil
	})
	svc := newService(t, gen, stages.CompactName, WithRenderer(renderer))

	_, err := svc.GenerateReport(ctx, Request{Threat: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, renderer.called)
}

func TestGenerateReport_ConcurrentRuns(t *testing.T) {
	echo := pipeline.GeneratorFunc(func(_ context.Context, _ string, prompt string) (string, error) {
		line, _, _ := strings.Cut(prompt, "\n")
		return line, nil
	})
	svc := newService(t, echo, stages.CompactName)

	threats := []string{"Threat-One", "Threat-Two", "Threat-Three"}
	outs := make([]*Outcome, len(threats))
	var wg sync.WaitGroup
	for i, threat := range threats {
		wg.Add(1)
		go func(i int, threat string) {
			defer wg.Done()
			out, err := svc.GenerateReport(context.Background(), Request{Threat: threat})
			assert.NoError(t, err)
			outs[i] = out
		}(i, threat)
	}
	wg.Wait()

	runIDs := map[string]bool{}
	for i, out := range outs {
		require.NotNil(t, out)
		assert.Contains(t, out.Report(), threats[i])
		runIDs[out.RunID] = true
	}
	assert.Len(t, runIDs, len(threats))
}

func TestNewFromConfigWithGenerator(t *testing.T) {
	cfg := &am.Config{
		Pipeline: am.PipelineConfig{Blueprint: "compact", Parallelism: 2, StageTimeoutSeconds: 5},
		Render:   am.RenderConfig{Format: "html", OutputDir: t.TempDir()},
	}
	svc, err := NewFromConfigWithGenerator(cfg, tbtest.NewScriptedGenerator(), metrics.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, stages.CompactName, svc.Blueprint().Name)
	assert.Equal(t, roles.DefaultVersion, svc.Registry().Version())

	out, err := svc.GenerateReport(context.Background(), Request{Threat: "x"})
	require.NoError(t, err)
	assert.Equal(t, report.ContentTypeHTML, out.Artifact.ContentType)

	cfg.Pipeline.Blueprint = "nope"
	_, err = NewFromConfigWithGenerator(cfg, tbtest.NewScriptedGenerator(), nil, nil)
	assert.True(t, errors.IsInputError(err))
}
