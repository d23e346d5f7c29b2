package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, models.ErrorResponse{Message: message, Code: code})
}

// statusForKind maps a domain error kind to its HTTP status
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation, models.KindLocked, models.KindLimitExceeded, models.KindEmptySelection:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindUpstream:
		return http.StatusBadGateway
	case models.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the client-facing form of a service error.
// Unclassified errors are logged and reported as 500 without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.WithContext(r.Context())

	if de, ok := models.AsDomainError(err); ok {
		status := statusForKind(de.Kind)
		if status >= http.StatusInternalServerError {
			logger.Error("asset store failure", "path", r.URL.Path, "error", err)
		}
		respondError(w, status, de.Message, de.Code)
		return
	}

	if errors.Is(err, context.Canceled) {
		logger.Debug("request cancelled", "path", r.URL.Path)
		return
	}

	logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "Internal server error.", "internal")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}

func messageResponse(message string) models.MessageResponse {
	return models.MessageResponse{Message: message}
}
