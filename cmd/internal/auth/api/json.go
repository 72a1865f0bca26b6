package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// Auth responses carry tokens; no intermediary may cache them.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

var (
	errBodyTooLarge = errors.New("request body too large")
	errBodyTrailing = errors.New("trailing data after json value")
	errBodyEmpty    = errors.New("empty body")
)

// decodeJSON reads a single strict JSON value from the request body:
// unknown fields, trailing data, and bodies over maxBytes are all errors.
// Strictness keeps client bugs loud instead of silently dropping
// misspelled credential fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errBodyEmpty
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errBodyTrailing
	}
	return nil
}

// writeDecodeError maps a decodeJSON failure to its HTTP shape:
// oversized bodies are 413, everything else a generic 400.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
}
