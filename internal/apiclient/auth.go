// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/session"
)

var _ session.Authenticator = (*Client)(nil)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyResponse is the body of GET /auth/verify.
type VerifyResponse struct {
	User      crm.User  `json:"user"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// authBody decodes login and verify responses. The API answers with the bare
// {token, user} and {user} objects; a {"data": ...} wrapper is accepted too.
type authBody struct {
	Token string    `json:"token"`
	User  *crm.User `json:"user"`
	Data  *authBody `json:"data"`
}

func (body authBody) unwrap() authBody {
	if body.Token == "" && body.User == nil && body.Data != nil {
		return *body.Data
	}
	return body
}

// Login exchanges credentials for a token. The call is sent without an
// Authorization header even when a token is stored.
func (client *Client) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	var response authBody
	err := client.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      LoginRequest{Email: email, Password: password},
		anonymous: true,
	}, &response)
	if err != nil {
		return nil, err
	}

	body := response.unwrap()
	result := &session.LoginResult{Token: body.Token}
	if body.User != nil {
		result.User = *body.User
	}
	return result, nil
}

// Verify asks the server whether token is still honoured and returns the
// identity behind it.
func (client *Client) Verify(ctx context.Context, token string) (*crm.User, error) {
	if token == "" {
		return nil, errors.New("apiclient: verify: empty token")
	}

	var response authBody
	err := client.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/verify",
		token:  token,
	}, &response)
	if err != nil {
		return nil, err
	}

	body := response.unwrap()
	if body.User == nil || body.User.ID == "" {
		return nil, errors.New("apiclient: verify: response carried no user")
	}
	return body.User, nil
}
