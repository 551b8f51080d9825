package mcpserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/generator"
	tbtest "github.com/teranos/threatbrief/internal/testing"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/report"
	"github.com/teranos/threatbrief/roles"
	"github.com/teranos/threatbrief/stages"
)

func newTestServer(t *testing.T) (*MCPServer, *tbtest.ScriptedGenerator) {
	t.Helper()
	gen := tbtest.NewScriptedGenerator().On(roles.ReportGenerator, "# Incident\nAll clear.")
	bp, _ := stages.Builtin(stages.CompactName)
	svc := generator.NewService(bp, roles.Default(), pipeline.NewExecutor(gen),
		generator.WithRenderer(report.NewHTMLRenderer(report.NewMarkdownStyler(), t.TempDir())))
	return NewMCPServer(svc, nil), gen
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestGenerateIncidentReport(t *testing.T) {
	s, gen := newTestServer(t)

	res, err := s.handleGenerate(context.Background(), callRequest("generate_incident_report", map[string]interface{}{
		"threat":      "Phishing",
		"threat_data": `{"sender":"billing@examp1e.com"}`,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "# Incident\nAll clear.", resultText(t, res))
	assert.Equal(t, 3, gen.CallCount())

	analyze, _ := gen.PromptFor(roles.ThreatAnalyzer)
	assert.Contains(t, analyze, "Phishing")
}

func TestGenerateIncidentReport_Render(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGenerate(context.Background(), callRequest("generate_incident_report", map[string]interface{}{
		"threat_data": "host: srv-01\n",
		"format":      "yaml",
		"render":      true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Rendered text/html")
}

func TestGenerateIncidentReport_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		fail bool
		want string
	}{
		{"missing data", map[string]interface{}{"threat": "x"}, false, "threat_data"},
		{"bad format", map[string]interface{}{"threat_data": "{}", "format": "xml"}, false, "xml"},
		{"bad evidence", map[string]interface{}{"threat_data": "[oops"}, false, "Failed to generate report"},
		{"stage failure", map[string]interface{}{"threat_data": "{}"}, true, "Failed to generate report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, gen := newTestServer(t)
			if tt.fail {
				gen.Fail(roles.MitigationStrategist, errors.New("rate limited"))
			}
			res, err := s.handleGenerate(context.Background(), callRequest("generate_incident_report", tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestListRoles(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleListRoles(context.Background(), callRequest("list_roles", nil))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, roles.DefaultVersion)
	assert.Contains(t, text, "Threat Analyzer")
	assert.Contains(t, text, "Report Generator")
}

func TestDescribePipeline(t *testing.T) {
	s, gen := newTestServer(t)

	res, err := s.handleDescribe(context.Background(), callRequest("describe_pipeline", nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Blueprint compact, 3 stage(s)")
	assert.Contains(t, text, "3. report (Report Generator) after analyze, mitigate")

	res, err = s.handleDescribe(context.Background(), callRequest("describe_pipeline", map[string]interface{}{"dot": true}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"analyze"->"report"`)

	assert.Equal(t, 0, gen.CallCount())
}
