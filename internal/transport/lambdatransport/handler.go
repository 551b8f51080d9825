// Package lambdatransport serves report generation behind API Gateway HTTP APIs.
package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/internal/transport/reportdto"
	"github.com/teranos/threatbrief/logger"
)

// ReportService generates a rendered report
type ReportService interface {
	GenerateReport(ctx context.Context, req generator.Request) (*generator.Outcome, error)
}

type Handler struct {
	svc    ReportService
	keep   bool
	logger *zap.SugaredLogger
}

// NewHandler wraps svc. Artifacts are deleted after encoding unless keepArtifacts.
func NewHandler(svc ReportService, keepArtifacts bool, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, keep: keepArtifacts, logger: log}
}

// GenerateReport takes the same JSON body as POST /generator/generate-report
// and returns the document base64-encoded
func (h *Handler) GenerateReport(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	ctx = logger.WithRequestID(ctx, req.RequestContext.RequestID)
	log := logger.LoggerFromContext(ctx, h.logger)

	if req.RequestContext.HTTP.Method != "" && req.RequestContext.HTTP.Method != http.MethodPost {
		return jsonResp(http.StatusMethodNotAllowed, reportdto.ErrorBody{Detail: "Method not allowed"}), nil
	}

	body, err := readBody(req)
	if err != nil {
		return jsonResp(http.StatusBadRequest, reportdto.ErrorBody{Detail: "invalid body: " + err.Error()}), nil
	}
	in, err := reportdto.Decode(body)
	if err != nil {
		return errorResp(log, err), nil
	}

	out, err := h.svc.GenerateReport(ctx, in.Request())
	if err != nil {
		return errorResp(log, err), nil
	}
	if !h.keep {
		defer func() {
			if err := out.Artifact.Remove(); err != nil {
				log.Warnw("Failed to remove artifact", logger.FieldFile, out.Artifact.Path, logger.FieldError, err)
			}
		}()
	}

	data, err := out.Artifact.Read()
	if err != nil {
		return errorResp(log, err), nil
	}

	log.Infow("Report generated", logger.FieldRunID, out.RunID, logger.FieldSize, len(data))
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"content-type":        out.Artifact.ContentType,
			"content-disposition": reportdto.ContentDisposition(out.Artifact),
			"x-run-id":            out.RunID,
		},
		Body:            base64.StdEncoding.EncodeToString(data),
		IsBase64Encoded: true,
	}, nil
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func errorResp(log *zap.SugaredLogger, err error) events.APIGatewayV2HTTPResponse {
	status, message := reportdto.Status(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("Report request failed", logger.FieldStatus, status, logger.FieldError, err)
	} else {
		log.Infow("Report request rejected", logger.FieldStatus, status, logger.FieldError, err)
	}
	return jsonResp(status, reportdto.ErrorBody{Detail: message})
}

func jsonResp(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}
