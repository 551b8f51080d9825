// Package reportdto holds the wire shapes and error mapping shared by the
// HTTP server and the Lambda handler.
package reportdto

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/evidence"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/report"
)

// Client-facing messages for report failures
const (
	MsgGenerationFailed = "Failed to generate report"
	MsgReportNotFound   = "Report not found"
	MsgUnexpected       = "An error occurred while generating the report"
)

// StatusClientClosedRequest is the de facto status for a request the client abandoned
const StatusClientClosedRequest = 499

// GenerateReportRequest is the JSON body of a report request
type GenerateReportRequest struct {
	Threat     string          `json:"threat"`
	ThreatData json.RawMessage `json:"threat_data"`
}

// Validate checks threat_data is present and is a JSON object
func (r *GenerateReportRequest) Validate() error {
	data := bytes.TrimSpace(r.ThreatData)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.NewInputErrorf("threat_data is required")
	}
	if data[0] != '{' {
		return errors.NewInputErrorf("threat_data must be an object")
	}
	return nil
}

// Request converts the body into a service request
func (r *GenerateReportRequest) Request() generator.Request {
	return generator.Request{
		Threat:   r.Threat,
		Evidence: r.ThreatData,
		Format:   evidence.JSON,
	}
}

// Decode reads a GenerateReportRequest, rejecting trailing data
func Decode(body []byte) (*GenerateReportRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var req GenerateReportRequest
	if err := dec.Decode(&req); err != nil {
		return nil, errors.MarkInput(errors.Wrap(err, "invalid request body"))
	}
	if dec.More() {
		return nil, errors.NewInputErrorf("invalid request body: trailing data")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// ErrorBody is the JSON error response
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Status maps a run error to an HTTP status and client message.
// Input and parse errors echo their message; everything else stays generic.
func Status(err error) (int, string) {
	switch {
	case errors.IsInputError(err), errors.IsParseError(err):
		return http.StatusBadRequest, err.Error()
	case errors.IsNotFoundError(err):
		return http.StatusNotFound, MsgReportNotFound
	case errors.IsGenerationError(err), errors.IsRenderError(err), errors.IsEmptyResultError(err):
		return http.StatusInternalServerError, MsgGenerationFailed
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, MsgUnexpected
	default:
		return http.StatusInternalServerError, MsgUnexpected
	}
}

// AttachmentName is the download filename for a rendered artifact
func AttachmentName(a *report.Artifact) string {
	if a.ContentType == report.ContentTypeHTML {
		return "report.html"
	}
	return "report.pdf"
}

// ContentDisposition is the Content-Disposition header value for an artifact
func ContentDisposition(a *report.Artifact) string {
	return "attachment; filename=" + AttachmentName(a)
}
