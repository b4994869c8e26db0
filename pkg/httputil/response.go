// Package httputil provides JSON responses, error-kind to status mapping,
// request parsing and the request-scoped HTTP middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind authz.Kind) int {
	switch kind {
	case authz.KindUnauthorized:
		return http.StatusUnauthorized
	case authz.KindForbidden:
		return http.StatusForbidden
	case authz.KindBadRequest:
		return http.StatusBadRequest
	case authz.KindConflict:
		return http.StatusConflict
	case authz.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err using the error taxonomy. Internal errors are
// logged with the request logger and their cause is never echoed to the client.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return
	}

	kind := authz.KindOf(err)
	if kind == authz.KindInternal && r != nil {
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
	}

	WriteErrorMessage(w, StatusFor(kind), kind.String(), authz.MessageOf(err))
}

// WriteErrorMessage writes a JSON error body with an explicit status
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, "rate_limited", message)
}
