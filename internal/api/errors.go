package api

import (
	"encoding/json"
	"net/http"
)

// Error is the REST boundary's error taxonomy (§7 EndpointError),
// collapsed to an HTTP status plus a message rather than a Rust-style
// enum — Go callers just wrap or construct one of these directly.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func missingHeader(name string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "missing required header: " + name}
}

func missingQuery(name string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "missing required query parameter: " + name}
}

func unauthorized() *Error {
	return &Error{Status: http.StatusUnauthorized, Message: "unauthorized"}
}

func notFound(what string) *Error {
	return &Error{Status: http.StatusNotFound, Message: what + " not found"}
}

func badTrackBlob(err error) *Error {
	return &Error{Status: http.StatusUnsupportedMediaType, Message: "bad track blob: " + err.Error()}
}

func malformed(reason string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: reason}
}

func internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: err.Error()}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = internal(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
