package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
)

// Message is the generic {"message": ...} body devices expect.
type Message struct {
	Message string `json:"message"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, load.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, load.ErrInvalidInput), errors.Is(err, journal.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, load.ErrConsistencyViolation):
		return http.StatusConflict
	case errors.Is(err, load.ErrImportFailure):
		return http.StatusBadGateway
	case errors.Is(err, load.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
