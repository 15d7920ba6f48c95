// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey defines typed context keys shared by the client and the
// development backend.
//
// Using a private, unexported type for keys prevents collisions with third-party
// packages that might also use context for storage.
package ctxkey

// key is an unexported type used for context keys to ensure type safety.
type key string

const (
	// KeyRequestID is the context key for the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyUser is the context key for verified token claims ([sec.AuthClaims]).
	KeyUser key = "user"

	// KeyLogger is the context key for a scoped [*log/slog.Logger].
	KeyLogger key = "logger"
)
