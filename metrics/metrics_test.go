package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{errors.Mark(errors.NewGenerationErrorf("slow"), errors.ErrTimeout), OutcomeTimeout},
		{errors.Wrap(context.Canceled, "stage cancelled"), OutcomeCancelled},
		{errors.NewGenerationErrorf("bad"), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err))
	}
}

func TestCollector_Stages(t *testing.T) {
	c := New()

	c.StageStarted("analysis", "Threat_Analyzer_Agent")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inFlight))
	c.StageFinished("analysis", "Threat_Analyzer_Agent", 2*time.Second, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))

	c.StageStarted("mitigation", "Mitigation_Strategist_Agent")
	c.StageFinished("mitigation", "Mitigation_Strategist_Agent", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageTotal.WithLabelValues("Threat_Analyzer_Agent", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageTotal.WithLabelValues("Mitigation_Strategist_Agent", OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.stageDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveRun(3*time.Second, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `threatbrief_runs_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
