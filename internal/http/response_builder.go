// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing responses. JSON
// is the default body encoding; HTML fragments are used for page errors.

package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"ledgerdesk/internal/core"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
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

// JSON encodes v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.headers["Content-Type"] = contentTypeJSON
	b.body = append(body, '\n')
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = contentTypeHTML
	b.body = []byte(html)
	return b
}

// Write sends the built response. An encoding failure turns into a plain 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type validationBody struct {
	Errors map[string]string `json:"errors"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// ValidationErrorResponse creates a 422 response listing one message per field.
func ValidationErrorResponse(fields map[string]string) *ResponseBuilder {
	return NewResponse().Status(http.StatusUnprocessableEntity).JSON(validationBody{Errors: fields})
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// HTMLErrorResponse creates an escaped HTML error fragment for page handlers.
func HTMLErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// FromError maps facade errors onto HTTP responses: validation failures are
// 422, missing entities 404 and everything else 500.
func FromError(err error) *ResponseBuilder {
	if ve, ok := core.AsValidationError(err); ok {
		return ValidationErrorResponse(ve.Fields)
	}
	if errors.Is(err, core.ErrNotFound) {
		return NotFoundError("not found")
	}
	return InternalServerError(err.Error())
}
