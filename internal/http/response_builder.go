// Package http exposes the ledger as a JSON API.
//
// This file implements the Builder Pattern for constructing JSON responses.
// It keeps status codes, headers and error bodies consistent across
// handlers.

package http

import (
	"encoding/json"
	"net/http"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	hasPayload bool
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Location sets the Location header of a created resource.
func (b *ResponseBuilder) Location(path string) *ResponseBuilder {
	return b.Header("Location", path)
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.hasPayload = true
	return b
}

// StatusCode returns the status that Write will send.
func (b *ResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response. The body is encoded before any header is
// written so an encoding failure can still become a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	var body []byte
	if b.hasPayload {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			http.Error(w, `{"error":"failed to encode response","status":500}`, http.StatusInternalServerError)
			return
		}
		body = append(encoded, '\n')
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(ErrorBody{Error: message, Status: statusCode})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// TooManyRequestsError creates a 429 response asking the client to wait.
func TooManyRequestsError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message).Header("Retry-After", "60")
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
