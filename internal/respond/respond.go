// Package respond writes JSON responses and maps service errors onto HTTP.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ErrorBody is what clients read on failure; the frontend expects "detail".
type ErrorBody struct {
	Detail string `json:"detail"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error logs err on the request logger and renders its public message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	logger := middleware.GetLogger(r.Context())
	status := apperr.HTTPStatus(err)

	if status >= http.StatusInternalServerError {
		logger.Error().Stack().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("request rejected")
	}

	JSON(w, status, ErrorBody{Detail: apperr.PublicMessage(err)})
}

// Decode reads a JSON body into dst, rejecting malformed payloads as validation errors.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request payload")
	}
	return nil
}

// UUIDParam reads a path parameter that names a UUID-keyed row. A value that
// cannot be such a key is reported as a missing resource.
func UUIDParam(r *http.Request, name, resource string) (string, error) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.NotFound("%s %s not found", resource, id)
	}
	return id, nil
}
