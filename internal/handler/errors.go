package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkordes/ridepost/internal/domain"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error":{...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// classify maps a service or wizard error onto a status and error code.
// The zero status means the error is not one the API knows about.
func classify(err error) (int, string, error) {
	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		return http.StatusUnprocessableEntity, "location_not_found", domain.ErrLocationNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error", domain.ErrValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", domain.ErrNotFound
	case errors.Is(err, domain.ErrWizardClosed):
		return http.StatusGone, "wizard_closed", domain.ErrWizardClosed
	case errors.Is(err, domain.ErrReturnTripFailed):
		return http.StatusMultiStatus, "return_trip_failed", domain.ErrReturnTripFailed
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusBadGateway, "persistence_error", domain.ErrPersistence
	}
	return 0, "", nil
}

// writeError writes the mapped error response, or a 500 for anything
// unexpected. notFound replaces the message of a 404.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status, code, sentinel := classify(err)
	if status == 0 {
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
		return
	}
	if status == http.StatusBadGateway {
		s.log.ErrorContext(r.Context(), "store rejected write", "path", r.URL.Path, "error", err)
	}
	msg := unwrapMessage(err, sentinel)
	if status == http.StatusNotFound && notFound != "" {
		msg = notFound
	}
	writeJSON(w, status, errorBody(code, msg))
}

// requestError rejects a request before it reaches the service layer.
func requestError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request_too_large", "request body too large"))
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody("validation_error", err.Error()))
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// unwrapMessage extracts the human-readable part that follows the sentinel
// in a wrapped error chain.
// e.g. "wizard.Controller.SetSeats: validation error: seats must be between 1 and 8"
// → "seats must be between 1 and 8"
func unwrapMessage(err, sentinel error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if sentinel == nil {
		return msg
	}
	marker := sentinel.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return sentinel.Error()
}
