package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/evidence"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/internal/transport/reportdto"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/stages"
	"github.com/teranos/threatbrief/version"
)

// HandleGenerateReport runs the pipeline for a JSON body and returns the
// rendered document as an attachment
func (s *ReportServer) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeReportError(w, r, errors.MarkInput(errors.Wrap(err, "failed to read request body")))
		return
	}
	req, err := reportdto.Decode(body)
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}

	s.generateAndSend(w, r, req.Request())
}

// HandleUpload accepts a multipart form with a "file" part (JSON, CSV or YAML)
// and an optional "threat" field
func (s *ReportServer) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())

	if err := r.ParseMultipartForm(s.maxBodyBytes()); err != nil {
		s.writeReportError(w, r, errors.MarkInput(errors.Wrap(err, "invalid multipart form")))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeReportError(w, r, errors.MarkInput(errors.Wrap(err, "file is required")))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		s.writeReportError(w, r, errors.MarkInput(errors.Wrap(err, "failed to read upload")))
		return
	}

	format := evidence.FormatFromFilename(header.Filename)
	if f := r.FormValue("format"); f != "" {
		if format, err = evidence.ParseFormat(f); err != nil {
			s.writeReportError(w, r, err)
			return
		}
	}

	s.generateAndSend(w, r, generator.Request{
		Threat:   r.FormValue("threat"),
		Evidence: raw,
		Format:   format,
	})
}

func (s *ReportServer) generateAndSend(w http.ResponseWriter, r *http.Request, req generator.Request) {
	out, err := s.service.GenerateReport(r.Context(), req)
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}
	if !s.cfg.Render.KeepArtifacts {
		defer func() {
			if err := out.Artifact.Remove(); err != nil {
				s.logger.Warnw("Failed to remove artifact", logger.FieldFile, out.Artifact.Path, logger.FieldError, err)
			}
		}()
	}

	data, err := out.Artifact.Read()
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", out.Artifact.ContentType)
	w.Header().Set("Content-Disposition", reportdto.ContentDisposition(out.Artifact))
	w.Header().Set("X-Run-ID", out.RunID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warnw("Failed to write report", logger.FieldRunID, out.RunID, logger.FieldError, err)
	}
}

// stageView is the JSON shape of a planned stage
type stageView struct {
	ID             stages.ID   `json:"id"`
	Role           string      `json:"role"`
	DependsOn      []stages.ID `json:"depends_on"`
	ExpectedOutput string      `json:"expected_output"`
	Instruction    string      `json:"instruction,omitempty"`
}

// HandleStages returns the stage plan for ?threat=, without running it.
// ?instructions=true includes the rendered instructions.
func (s *ReportServer) HandleStages(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	list, err := s.service.Plan(r.URL.Query().Get("threat"), nil, evidence.JSON)
	if err != nil {
		s.writeReportError(w, r, err)
		return
	}
	withInstructions := strings.EqualFold(r.URL.Query().Get("instructions"), "true")

	views := make([]stageView, 0, len(list))
	for _, st := range list {
		v := stageView{
			ID:             st.ID,
			Role:           st.Role.Name,
			DependsOn:      st.DependsOn,
			ExpectedOutput: st.ExpectedOutput,
		}
		if v.DependsOn == nil {
			v.DependsOn = []stages.ID{}
		}
		if withInstructions {
			v.Instruction = st.Instruction
		}
		views = append(views, v)
	}
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{
		"blueprint": s.service.Blueprint().Name,
		"stages":    views,
	})
}

// HandleRoles lists the role registry
func (s *ReportServer) HandleRoles(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	reg := s.service.Registry()
	_ = writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": reg.Version(),
		"roles":   reg.List(),
	})
}

// HandleHealth reports liveness and build information
func (s *ReportServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	status := http.StatusOK
	state := stateString(s.getState())
	if s.getState() != ServerStateRunning {
		status = http.StatusServiceUnavailable
	}
	_ = writeJSON(w, status, map[string]interface{}{
		"status":     state,
		"version":    info.Version,
		"commit":     info.CommitHash,
		"build_time": info.BuildTime,
		"blueprint":  s.service.Blueprint().Name,
		"roles":      s.service.Registry().Version(),
	})
}

func (s *ReportServer) maxBodyBytes() int64 {
	if s.cfg.Server.MaxBodyBytes > 0 {
		return s.cfg.Server.MaxBodyBytes
	}
	return 10 << 20
}
