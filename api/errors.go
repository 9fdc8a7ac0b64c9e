package api

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes in the Code field of ErrorResponse.
const (
	codeInvalidSession  = "invalid_session"
	codeInvalidSelector = "invalid_selector"
	codeInvalidRequest  = "invalid_request"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Error: msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "malformed JSON body")
		return false
	}
	return true
}
