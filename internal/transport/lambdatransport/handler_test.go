package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/report"
)

type svcStub struct {
	generateFn func(ctx context.Context, req generator.Request) (*generator.Outcome, error)
	calls      int
}

func (s *svcStub) GenerateReport(ctx context.Context, req generator.Request) (*generator.Outcome, error) {
	s.calls++
	return s.generateFn(ctx, req)
}

func artifactStub(t *testing.T, content string) func(context.Context, generator.Request) (*generator.Outcome, error) {
	return func(_ context.Context, req generator.Request) (*generator.Outcome, error) {
		path := filepath.Join(t.TempDir(), "cybersecurity_report-run.pdf")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return &generator.Outcome{
			RunID:    "run-1",
			Threat:   req.Threat,
			Artifact: &report.Artifact{Path: path, ContentType: report.ContentTypePDF, Size: int64(len(content))},
		}, nil
	}
}

func TestHandler_GenerateReport(t *testing.T) {
	var got generator.Request
	stub := &svcStub{}
	inner := artifactStub(t, "%PDF-1.7")
	stub.generateFn = func(ctx context.Context, req generator.Request) (*generator.Outcome, error) {
		got = req
		return inner(ctx, req)
	}
	h := NewHandler(stub, false, nil)

	resp, err := h.GenerateReport(context.Background(), events.APIGatewayV2HTTPRequest{
		Body: `{"threat":"Botnet","threat_data":{"beacons":42}}`,
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode, resp.Body)
	assert.True(t, resp.IsBase64Encoded)
	assert.Equal(t, "attachment; filename=report.pdf", resp.Headers["content-disposition"])
	assert.Equal(t, "run-1", resp.Headers["x-run-id"])

	pdf, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, "Botnet", got.Threat)
	assert.JSONEq(t, `{"beacons":42}`, string(got.Evidence))
}

func TestHandler_GenerateReport_Base64Body(t *testing.T) {
	stub := &svcStub{generateFn: artifactStub(t, "%PDF")}
	h := NewHandler(stub, false, nil)

	body := base64.StdEncoding.EncodeToString([]byte(`{"threat_data":{}}`))
	resp, err := h.GenerateReport(context.Background(), events.APIGatewayV2HTTPRequest{Body: body, IsBase64Encoded: true})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandler_GenerateReport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        events.APIGatewayV2HTTPRequest
		svcErr     error
		wantStatus int
		wantDetail string
		wantCalls  int
	}{
		{
			name:       "invalid json",
			req:        events.APIGatewayV2HTTPRequest{Body: "{"},
			wantStatus: 400,
			wantDetail: "invalid request body",
		},
		{
			name:       "missing threat_data",
			req:        events.APIGatewayV2HTTPRequest{Body: `{"threat":"x"}`},
			wantStatus: 400,
			wantDetail: "threat_data is required",
		},
		{
			name:       "bad base64",
			req:        events.APIGatewayV2HTTPRequest{Body: "%%%", IsBase64Encoded: true},
			wantStatus: 400,
			wantDetail: "invalid body",
		},
		{
			name:       "generation failure",
			req:        events.APIGatewayV2HTTPRequest{Body: `{"threat_data":{}}`},
			svcErr:     errors.NewGenerationErrorf("upstream down"),
			wantStatus: 500,
			wantDetail: "Failed to generate report",
			wantCalls:  1,
		},
		{
			name:       "unexpected failure",
			req:        events.APIGatewayV2HTTPRequest{Body: `{"threat_data":{}}`},
			svcErr:     errors.New("disk full"),
			wantStatus: 500,
			wantDetail: "An error occurred while generating the report",
			wantCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &svcStub{generateFn: func(context.Context, generator.Request) (*generator.Outcome, error) {
				return nil, tt.svcErr
			}}
			h := NewHandler(stub, false, nil)

			resp, err := h.GenerateReport(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.Contains(t, body["detail"], tt.wantDetail)
			assert.Equal(t, tt.wantCalls, stub.calls)
		})
	}
}

func TestHandler_RemovesArtifact(t *testing.T) {
	var path string
	inner := artifactStub(t, "%PDF")
	stub := &svcStub{generateFn: func(ctx context.Context, req generator.Request) (*generator.Outcome, error) {
		out, err := inner(ctx, req)
		path = out.Artifact.Path
		return out, err
	}}

	_, err := NewHandler(stub, false, nil).GenerateReport(context.Background(), events.APIGatewayV2HTTPRequest{Body: `{"threat_data":{}}`})
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	_, err = NewHandler(stub, true, nil).GenerateReport(context.Background(), events.APIGatewayV2HTTPRequest{Body: `{"threat_data":{}}`})
	require.NoError(t, err)
	assert.FileExists(t, path)
}
