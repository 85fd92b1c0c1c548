// Package httpserver contains HTTP handlers and middleware.
//
// It provides the REST API for interview orchestration: question retrieval
// and regeneration, answer submission, and evaluation reports. The package
// keeps HTTP concerns separate from the use case layer and maps the domain
// error taxonomy onto status codes in one place.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hiredeck/hiredeck/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels to status codes. Upstream failures get
// fixed messages rather than err.Error(): raw gateway errors can carry
// model output or credential fragments and never belong on the wire.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrUnknownQuestion):
		code = http.StatusNotFound
		codeStr = "UNKNOWN_QUESTION"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateAnswer):
		code = http.StatusConflict
		codeStr = "DUPLICATE_ANSWER"
	case errors.Is(err, domain.ErrAlreadyCompleted):
		code = http.StatusConflict
		codeStr = "INTERVIEW_COMPLETED"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrNoResponses):
		code = http.StatusUnprocessableEntity
		codeStr = "NO_RESPONSES"
	case errors.Is(err, domain.ErrUpstreamConfig):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_NOT_CONFIGURED"
		msg = "AI provider is not configured; an administrator must set the API key"
	case errors.Is(err, domain.ErrUpstreamAuth):
		code = http.StatusBadGateway
		codeStr = "UPSTREAM_AUTH"
		msg = "AI provider rejected the configured credentials"
	case errors.Is(err, domain.ErrUpstreamRequest):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_UNAVAILABLE"
		msg = "AI provider is unavailable; retry later"
	case errors.Is(err, domain.ErrCoercion):
		code = http.StatusBadGateway
		codeStr = "BAD_UPSTREAM_RESPONSE"
		msg = "AI provider returned an unusable response; retry later"
	default:
		msg = http.StatusText(http.StatusInternalServerError)
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
