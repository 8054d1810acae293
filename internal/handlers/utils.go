package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pulsecrm/apiserver/internal/auth"
)

// ErrorResponse is the failure payload shared by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message, Error: code})
}

func writeAuthError(w http.ResponseWriter, err error) {
	auth.WriteError(w, auth.AsError(err))
}

const (
	codeBadRequest         = "BAD_REQUEST"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeConflict           = "CONFLICT"
	codeNotFound           = "NOT_FOUND"
	codeInternal           = "INTERNAL_ERROR"
)
