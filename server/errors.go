package server

import (
	"net/http"

	"github.com/teranos/threatbrief/internal/transport/reportdto"
	"github.com/teranos/threatbrief/logger"
)

// writeReportError logs err and writes the mapped response
func (s *ReportServer) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := reportdto.Status(err)
	log := s.logger.With(logger.FieldPath, r.URL.Path, logger.FieldStatus, status)
	if status >= http.StatusInternalServerError {
		log.Errorw("Report request failed", logger.FieldError, err)
	} else {
		log.Infow("Report request rejected", logger.FieldError, err)
	}
	writeError(w, status, message)
}
