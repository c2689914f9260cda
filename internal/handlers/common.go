package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatterbox-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Response is the envelope of every HTTP response
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Token   string `json:"token,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// respondJSON writes a success envelope
func respondJSON(w http.ResponseWriter, statusCode int, resp Response) {
	resp.Status = "success"
	writeJSON(w, statusCode, resp)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, Response{Status: "error", Message: message})
}

// respondServiceError maps a service error to its status code. Untagged
// errors are logged and reported as internal errors.
func respondServiceError(w http.ResponseWriter, err error) {
	statusCode := statusFor(err)
	if statusCode == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	respondError(w, models.PublicMessage(err), statusCode)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUnimplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.Errorf(models.ErrValidation, "Invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
