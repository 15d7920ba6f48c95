// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package respond provides HTTP response helpers used by the development backend.
//
// # Architecture
//
// Resource responses (success or error) follow one JSON envelope. The auth
// endpoints are the exception: login and verify answer with bare objects.
//
//	{"data": ...}                      // single resource
//	{"data": [...], "meta": {...}}     // paginated list
//	{"error": "...", "code": "..."}    // failure
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/ctxutil"
	"github.com/taibuivan/leadcrm/pkg/pagination"
)

// SuccessEnvelope is the JSON envelope for successful single-resource responses.
type SuccessEnvelope[T any] struct {
	Data T `json:"data"`
}

// PaginatedEnvelope is the JSON envelope for paginated list responses.
type PaginatedEnvelope[T any] struct {
	Data []T             `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// ErrorEnvelope is the JSON envelope for error responses.
type ErrorEnvelope struct {
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// OK writes a 200 OK response with data wrapped in the success envelope.
func OK[T any](writer http.ResponseWriter, data T) {
	JSON(writer, http.StatusOK, SuccessEnvelope[T]{Data: data})
}

// Created writes a 201 Created response with data wrapped in the success envelope.
func Created[T any](writer http.ResponseWriter, data T) {
	JSON(writer, http.StatusCreated, SuccessEnvelope[T]{Data: data})
}

// Paginated writes a 200 OK response with a page of items and its metadata.
func Paginated[T any](writer http.ResponseWriter, data []T, metadata pagination.Meta) {
	if data == nil {
		data = []T{}
	}
	JSON(writer, http.StatusOK, PaginatedEnvelope[T]{Data: data, Meta: metadata})
}

// NoContent writes a 204 No Content response.
func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// Error converts any Go error into a standardized JSON API error response.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	ctx := request.Context()
	logger := ctxutil.GetLogger(ctx)

	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		// Unexpected internal error: log it, hide the details from the client.
		logger.ErrorContext(ctx, "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", ctxutil.GetRequestID(ctx)),
		)
		appError = apperr.Internal(err)
	}

	status := appError.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		logger.ErrorContext(ctx, "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", ctxutil.GetRequestID(ctx)),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, status, ErrorEnvelope{
		Error:   appError.Message,
		Code:    appError.Code,
		Details: appError.Details,
	})
}
