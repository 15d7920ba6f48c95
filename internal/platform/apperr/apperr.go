// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for leadcrm.

It provides a rich error type shared by both sides of the HTTP boundary:
the development backend turns an [AppError] into a JSON envelope, and the
client turns a non-2xx response back into the same [AppError].

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.
  - Transport: [Network] marks failures where no response was received at all.

Every error that leaves a service or client layer should be wrapped as an
[AppError] to ensure consistent handling by the consumers.
*/
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError is the canonical error type for leadcrm.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for logging only and is never serialized.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Message is a human-readable description safe to show to an operator.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code (0 when no response was received).
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Lead") // Returns "Lead not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Transport Errors

// NetworkMessage is the operator-facing text of every [Network] error.
const NetworkMessage = "Unable to reach the server. Check your connection and try again."

// Network creates an [AppError] for a request that never produced a response
// (DNS failure, refused connection, timeout).
//
// The message is fixed; the transport error is kept in Cause for logs.
func Network(cause error) *AppError {
	return &AppError{
		Code:    "NETWORK_ERROR",
		Message: NetworkMessage,
		Cause:   cause,
	}
}

// responseEnvelope accepts both the {"error": "..."} envelope written by
// [respond.Error] and the bare {"message": "..."} shape other servers use.
type responseEnvelope struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Code    string       `json:"code"`
	Details []FieldError `json:"details"`
}

// FromResponse rebuilds an [AppError] from a non-2xx HTTP response body.
//
// The server-provided message wins when present; otherwise the status text is used.
func FromResponse(status int, body []byte) *AppError {
	appError := &AppError{
		Code:       codeForStatus(status),
		HTTPStatus: status,
	}

	var envelope responseEnvelope
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil {
		if envelope.Code != "" {
			appError.Code = envelope.Code
		}
		appError.Details = envelope.Details
		switch {
		case strings.TrimSpace(envelope.Message) != "":
			appError.Message = envelope.Message
		case strings.TrimSpace(envelope.Error) != "":
			appError.Message = envelope.Error
		}
	}

	if appError.Message == "" {
		appError.Message = http.StatusText(status)
	}
	return appError
}

// codeForStatus maps an HTTP status to the machine-readable code used by the constructors above.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if status >= 500 {
		return "INTERNAL_ERROR"
	}
	return "HTTP_ERROR"
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// IsNetwork reports whether err is a transport failure created by [Network].
func IsNetwork(err error) bool {
	ae := As(err)
	return ae != nil && ae.Code == "NETWORK_ERROR"
}

// IsUnauthorized reports whether err carries a 401 status.
func IsUnauthorized(err error) bool {
	ae := As(err)
	return ae != nil && ae.HTTPStatus == http.StatusUnauthorized
}
