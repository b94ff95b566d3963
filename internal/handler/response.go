package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes caps request bodies; order and admin payloads are small.
const maxBodyBytes = 64 << 10

var errInvalidBody = errors.New("Request body must be valid JSON with Content-Type: application/json")

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes {"error": code, "message": message}.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorResponse{Error: code, Message: message})
}

// ParseJSON decodes a single JSON object from the request body into v.
// Unknown fields, trailing data and bodies over maxBodyBytes are rejected.
func ParseJSON(r *http.Request, v any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errInvalidBody
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	if dec.InputOffset() > maxBodyBytes {
		return errInvalidBody
	}
	if _, err := dec.Token(); err != io.EOF {
		return errInvalidBody
	}
	return nil
}
