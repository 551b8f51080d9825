package server

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/internal/transport/reportdto"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response in the {"detail": ...} shape report clients expect
func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, reportdto.ErrorBody{Detail: message})
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
