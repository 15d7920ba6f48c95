// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apiclient is a typed HTTP client for the lead CRM REST API.

It speaks the envelope written by the server ({"data": ...} on success,
{"error", "code"} on failure; login and verify answer with bare objects) and
maps every failure onto [apperr.AppError]:

  - Non-2xx responses become the server's error, message included.
  - Requests that never got a response become [apperr.Network] errors.

The client also implements [session.Authenticator], so the session machine
can log in and verify tokens through it.
*/
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/platform/ctxutil"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token attached to authenticated calls.
// An empty token sends the request without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a [TokenSource] that always returns the same token.
type StaticToken string

// Token implements [TokenSource].
func (token StaticToken) Token(context.Context) (string, error) {
	return string(token), nil
}

// Client is a typed HTTP client for the CRM REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) { client.httpClient = httpClient }
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) { client.httpClient.Timeout = timeout }
}

// WithTokenSource attaches bearer tokens to authenticated calls.
func WithTokenSource(tokens TokenSource) Option {
	return func(client *Client) { client.tokens = tokens }
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// New creates a Client rooted at baseURL (e.g. "http://localhost:5000/api").
func New(baseURL string, options ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url %q must be http or https", baseURL)
	}

	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: constants.DefaultHTTPTimeout},
		tokens:     StaticToken(""),
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// BaseURL returns the API root this client targets.
func (client *Client) BaseURL() string {
	return client.baseURL.String()
}

// # Transport

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// token overrides the TokenSource when non-empty (verify of a specific token).
	token string

	// anonymous skips the Authorization header entirely (login).
	anonymous bool
}

/*
do executes call and decodes the "data" member of the envelope into out.

Flow:
 1. Build the URL and encode the JSON body.
 2. Stamp X-Request-ID and the bearer token.
 3. Send; a missing response maps to [apperr.Network].
 4. Non-2xx maps to [apperr.FromResponse]; 2xx decodes into out (nil skips).
*/
func (client *Client) do(ctx context.Context, call request, out any) error {
	// ── 1. Build ──────────────────────────────────────────────────────────

	target := client.baseURL.JoinPath(call.path)
	if len(call.query) > 0 {
		target.RawQuery = call.query.Encode()
	}

	var body io.Reader
	if call.body != nil {
		encoded, err := json.Marshal(call.body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", call.method, call.path, err)
		}
		body = bytes.NewReader(encoded)
	}

	ctx, requestID := ctxutil.EnsureRequestID(ctx)
	httpRequest, err := http.NewRequestWithContext(ctx, call.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("apiclient: build %s %s: %w", call.method, call.path, err)
	}

	// ── 2. Headers ────────────────────────────────────────────────────────

	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set(constants.HeaderXRequestID, requestID)
	if body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	if !call.anonymous {
		token := call.token
		if token == "" {
			token, err = client.tokens.Token(ctx)
			if err != nil {
				return fmt.Errorf("apiclient: read token: %w", err)
			}
		}
		if token != "" {
			httpRequest.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
		}
	}

	// ── 3. Send ───────────────────────────────────────────────────────────

	start := time.Now()
	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		client.logger.Debug("api_request_failed",
			slog.String("method", call.method),
			slog.String("path", call.path),
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
		return apperr.Network(err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return apperr.Network(err)
	}

	client.logger.Debug("api_request",
		slog.String("method", call.method),
		slog.String("path", call.path),
		slog.Int("status", response.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("latency", time.Since(start)),
	)

	// ── 4. Decode ─────────────────────────────────────────────────────────

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return apperr.FromResponse(response.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", call.method, call.path, err)
	}
	return nil
}

// envelope is the success shape: {"data": ...}.
type envelope[T any] struct {
	Data T `json:"data"`
}
