// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire module.

It defines default timeouts, reconnection policy, wire identifiers and keys
that are shared between the client core and the development backend.

Categories:

  - Client Timing: HTTP and realtime handshake timeouts.
  - Reconnection: Default backoff policy for the realtime channel.
  - Realtime Events: Feed names agreed with the CRM server.
  - Storage: Token file and Redis key taxonomy.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "leadcrm"
	AppVersion = "0.1.0-dev"
)

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"

	// BearerPrefix precedes the token in the Authorization header.
	BearerPrefix = "Bearer "
)

// # Client Timing

const (
	// DefaultHTTPTimeout bounds a single REST call.
	DefaultHTTPTimeout = 15 * time.Second

	// DefaultConnectTimeout bounds a realtime dial plus handshake.
	DefaultConnectTimeout = 20 * time.Second

	// RealtimeWriteTimeout bounds a single frame write.
	RealtimeWriteTimeout = 5 * time.Second

	// DefaultRefreshInterval is the dashboard feed re-request period used by crmctl.
	DefaultRefreshInterval = 30 * time.Second
)

// # Reconnection

const (
	// DefaultMaxReconnectAttempts is the number of failed attempts before the channel gives up.
	DefaultMaxReconnectAttempts = 5

	// DefaultReconnectDelay is the delay before the first retry.
	DefaultReconnectDelay = 1 * time.Second

	// DefaultReconnectDelayMax caps the growing retry delay.
	DefaultReconnectDelayMax = 5 * time.Second

	// DefaultReconnectMultiplier grows the delay between consecutive attempts.
	DefaultReconnectMultiplier = 2.0
)

// # Realtime Protocol

const (
	// RealtimeSubprotocol is negotiated on the websocket handshake.
	RealtimeSubprotocol = "leadcrm.realtime.v1"

	// RealtimeMaxFrameBytes caps a single inbound frame.
	RealtimeMaxFrameBytes = 1 << 20

	// ErrorEventSuffix forms the error companion of a feed event ("dashboard_stats_error").
	ErrorEventSuffix = "_error"
)

// # Realtime Events

const (
	EventDashboardStats        = "dashboard_stats"
	EventRequestDashboardStats = "request_dashboard_stats"
	EventRecentLeads           = "recent_leads"
	EventRequestRecentLeads    = "request_recent_leads"
	EventLeadCreated           = "lead_created"
	EventLeadUpdated           = "lead_updated"
	EventLeadDeleted           = "lead_deleted"
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in tokens minted by the development backend.
	AuthIssuer = "leadcrm.dev"

	// DefaultTokenTTL is the lifetime of tokens minted by the development backend.
	DefaultTokenTTL = 12 * time.Hour

	// LoginFallbackMessage is shown when a failed login carries no usable message.
	LoginFallbackMessage = "Login failed"
)

// # Server Timing (development backend)

const (
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 2 * time.Second
	ShutdownTimeout          = 10 * time.Second

	// GlobalRequestTimeout bounds a single REST request, including its SQL statements.
	GlobalRequestTimeout = 15 * time.Second

	// ProductionOriginSuffix is the only browser origin accepted outside development.
	ProductionOriginSuffix = ".leadcrm.app"

	// HandshakeTimeout bounds the realtime connect exchange on the server side.
	HandshakeTimeout = 10 * time.Second
)

// # Rate Limiting (development backend)

const (
	DefaultRateLimitRPS      = 20.0
	DefaultRateLimitBurst    = 40
	RateLimitCleanupInterval = 1 * time.Minute
	RateLimitClientTTL       = 3 * time.Minute
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Storage

const (
	// TokenFileName is the file under the user config dir holding the bearer token.
	TokenFileName = "token"

	// RedisPrefixToken namespaces persisted tokens per operator profile.
	RedisPrefixToken = "leadcrm:token:"
)
