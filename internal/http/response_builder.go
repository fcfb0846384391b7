// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses.
// Every handler answers through it so status codes, headers and error bodies
// stay consistent.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response body", wlog.FieldError, err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
}

// TooManyRequestsError creates a 429 response. Retry-After is set by the
// rate limiter.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// FromError maps a service error to a response. Unknown errors are logged
// and answered with fallback so internals never leak.
func FromError(r *http.Request, err error, fallback string) *JSONResponseBuilder {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		return UnprocessableEntityError(validation.Error())
	case errors.Is(err, core.ErrUserNotFound):
		return NotFoundError("user not found")
	case errors.Is(err, core.ErrEntryNotFound):
		return NotFoundError("transaction not found")
	case errors.Is(err, core.ErrCategoryNotFound):
		return NotFoundError("category not found")
	case errors.Is(err, cycle.ErrInvalidKey):
		return BadRequestError(err.Error())
	}

	wlog.FromContext(r.Context()).WithComponent(wlog.ComponentHTTP).ErrorContext(r.Context(), fallback,
		wlog.FieldErrorType, wlog.ErrorTypeInternal,
		wlog.FieldError, err,
		wlog.FieldMethod, r.Method,
		wlog.FieldPath, r.URL.Path)
	return InternalServerError(fallback)
}
