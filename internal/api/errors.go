package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gridlink-core/internal/directory"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// statusFor maps a directory or store error onto an HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, directory.ErrNotWritable):
		return http.StatusMethodNotAllowed, ErrCodeMethodNotAllow
	case errors.Is(err, store.ErrInvalidHref),
		errors.Is(err, store.ErrInvalidSortKey),
		errors.Is(err, store.ErrNilResource):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, store.ErrTypeMismatch),
		errors.Is(err, directory.ErrInvalidControl),
		errors.Is(err, directory.ErrInvalidStatus),
		errors.Is(err, directory.ErrInvalidMirror),
		errors.Is(err, directory.ErrUnknownReference):
		return http.StatusBadRequest, ErrCodeValidation
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeDirectoryError writes the response for an error returned by the
// directory. Unexpected errors are logged and hidden from the client.
func (s *Server) writeDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("directory operation failed",
			"method", r.Method,
			"href", r.URL.Path,
			"error", err,
			"request_id", requestID(r),
		)
		writeInternalError(w, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}
