package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/teranos/threatbrief/logger"
)

// setupHTTPRoutes configures all HTTP handlers
func (s *ReportServer) setupHTTPRoutes() {
	s.mux.HandleFunc("/generator/generate-report", s.corsMiddleware(s.HandleGenerateReport)) // Report from a JSON body (POST)
	s.mux.HandleFunc("/generator/upload", s.corsMiddleware(s.HandleUpload))                  // Report from an uploaded file (POST multipart)
	s.mux.HandleFunc("/generator/stream", s.corsMiddleware(s.HandleStream))                  // Stage outputs as they complete (WebSocket)
	s.mux.HandleFunc("/generator/stages", s.corsMiddleware(s.HandleStages))                  // Stage plan for a threat (GET)
	s.mux.HandleFunc("/generator/roles", s.corsMiddleware(s.HandleRoles))                    // Role registry (GET)
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.mux.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}
}

// corsMiddleware adds CORS headers for configured origins and logs each request
func (s *ReportServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Run-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		next(w, r)
		s.logger.Debugw("Request handled",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
}

// checkOrigin validates browser origins against server.allowed_origins.
// Prefix matching allows any port on an allowed host.
func (s *ReportServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.GetAllowedOrigins() {
		if allowed == "*" || strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
