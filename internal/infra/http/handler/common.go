// Package handler implements the HTTP handlers of the scan API and the
// proxy boundary.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kaliumosint/api/internal/infra/http/middleware"
	"github.com/kaliumosint/api/pkg/apierror"
	"github.com/kaliumosint/api/pkg/logger"
	"github.com/kaliumosint/api/pkg/validator"
)

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to an API error body. Internal errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	apiErr := apierror.FromError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		log.WithContext(r.Context()).Error("request failed", "error", err)
	}
	apiErr.WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
}

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if err == nil && dec.More() {
		err = errors.New("trailing data after JSON object")
	}
	if err == nil {
		return true
	}

	requestID := middleware.GetRequestID(r.Context())
	switch {
	case middleware.IsBodyTooLarge(err):
		apierror.PayloadTooLarge().WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, io.EOF):
		apierror.BadRequest("Request body is required").WriteJSONWithRequestID(w, requestID)
	default:
		apierror.BadRequest("Invalid request body").WriteJSONWithRequestID(w, requestID)
	}
	return false
}

// writeValidationError converts validator output to an INVALID_REQUEST body
// carrying one entry per failed field.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		apierror.BadRequest("Validation error").WriteJSONWithRequestID(w, requestID)
		return
	}

	details := make(apierror.ValidationErrors, 0, len(validationErrors))
	for _, ve := range validationErrors {
		details.Add(ve.Field, ve.Message)
	}
	apierror.New(http.StatusBadRequest, apierror.CodeInvalidRequest, "Invalid scan request").
		WithDetails(details).
		WriteJSONWithRequestID(w, requestID)
}

// configFromQuery collects the recognised scan config keys present in the
// query string.
func configFromQuery(r *http.Request, keys ...string) map[string]string {
	q := r.URL.Query()
	config := make(map[string]string, len(keys))
	for _, key := range keys {
		if q.Has(key) {
			config[key] = strings.TrimSpace(q.Get(key))
		}
	}
	return config
}
