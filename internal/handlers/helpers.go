package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ticketmarket/internal/models"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps domain errors onto HTTP status codes. Gateway
// declines surface as 402 with the processor's reason code.
func writeError(w http.ResponseWriter, err error) {
	if decline, ok := models.IsDeclined(err); ok {
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:  "payment declined",
			Reason: string(decline.Reason),
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Printf("Error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeJSON parses the request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ErrInvalidInput
	}
	return nil
}
