package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

// ErrorResponse represents a standard error response. Kind and Field carry
// the domain error classification when there is one.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	writeErrorResponse(w, ErrorResponse{Code: statusCode, Message: message})
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	resp.Error = http.StatusText(resp.Code)
	WriteJSON(w, resp.Code, resp)
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error response
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// WriteDomainError maps the model error taxonomy onto HTTP statuses:
// validation 400, conflict 409, auth 401, anything else 500. Internal
// details are logged, never returned.
func WriteDomainError(w http.ResponseWriter, err error) {
	var (
		ve model.ValidationError
		ce model.ConflictError
		ae model.AuthError
	)
	switch {
	case errors.As(err, &ve):
		writeErrorResponse(w, ErrorResponse{Code: http.StatusBadRequest, Message: ve.Message, Kind: ve.Kind, Field: ve.Field})
	case errors.As(err, &ce):
		writeErrorResponse(w, ErrorResponse{Code: http.StatusConflict, Message: ce.Message, Kind: "conflict", Field: ce.Field})
	case errors.As(err, &ae):
		writeErrorResponse(w, ErrorResponse{Code: http.StatusUnauthorized, Message: ae.Error(), Kind: "invalid_credentials"})
	default:
		log.Error().Stack().Err(err).Msg("request failed")
		kind := ""
		if model.IsStorageError(err) {
			kind = "storage"
		}
		writeErrorResponse(w, ErrorResponse{Code: http.StatusInternalServerError, Message: "internal server error", Kind: kind})
	}
}
