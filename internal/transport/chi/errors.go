package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest      ErrorCode = "bad_request"
	ErrorCodeInvalidUID      ErrorCode = "invalid_uid"
	ErrorCodeUnauthorized    ErrorCode = "unauthorized"
	ErrorCodeNotFound        ErrorCode = "not_found"
	ErrorCodeNoRecords       ErrorCode = "no_records"
	ErrorCodeFindFailed      ErrorCode = "find_failed"
	ErrorCodeRetrievalFailed ErrorCode = "retrieval_failed"
	ErrorCodeParseFailure    ErrorCode = "parse_failure"
	ErrorCodeInternalError   ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errBadParameter marks a path or query parameter that failed to bind.
var errBadParameter = errors.New("invalid parameter")

// errorHandler classifies a domain error. ok is false when the error is not recognised.
type errorHandler func(err error) (status int, code ErrorCode, ok bool)

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(err error) (int, ErrorCode, bool) {
		if !errors.Is(err, sentinel) {
			return 0, "", false
		}
		return status, code, true
	}
}

// defaultErrorHandlers is checked in order; the first match wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(errBadParameter, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrInvalidUID, http.StatusBadRequest, ErrorCodeInvalidUID),
		sentinelHandler(domain.ErrObjectNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrNoRecords, http.StatusInternalServerError, ErrorCodeNoRecords),
		sentinelHandler(domain.ErrRetrievalFailed, http.StatusInternalServerError, ErrorCodeRetrievalFailed),
		sentinelHandler(domain.ErrFindFailed, http.StatusInternalServerError, ErrorCodeFindFailed),
		sentinelHandler(domain.ErrParseFailure, http.StatusInternalServerError, ErrorCodeParseFailure),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		errBadParameter,
		domain.ErrInvalidUID,
		domain.ErrObjectNotFound,
		domain.ErrNoRecords,
		domain.ErrRetrievalFailed,
		domain.ErrFindFailed,
		domain.ErrParseFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
