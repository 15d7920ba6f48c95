// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/sec"
)

// TokenProvider defines the contract for generating access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given operator.
	GenerateAccessToken(userID, name, email, role string, timeToLive time.Duration) (string, error)
}

// Service implements operator authentication use cases.
type Service struct {
	operators     Repository
	tokenProvider TokenProvider
	tokenTTL      time.Duration
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(operators Repository, tokenProvider TokenProvider, tokenTTL time.Duration) *Service {
	return &Service{
		operators:     operators,
		tokenProvider: tokenProvider,
		tokenTTL:      tokenTTL,
	}
}

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string   `json:"token"`
	User  crm.User `json:"user"`
}

// VerifyResult is the body of a successful verify.
type VerifyResult struct {
	User      crm.User  `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login validates operator credentials and issues an access token.
//
// # Flow
//  1. Lookup operator by email.
//  2. Verify password hash using bcrypt.
//  3. Sign an access token carrying the identity.
//
// Returns [apperr.Unauthorized] with the same message whether the email or
// the password was wrong.
func (service *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	// ── 1. Fetch Operator ─────────────────────────────────────────────────

	operator, err := service.operators.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// ── 2. Security Verification ──────────────────────────────────────────

	if !sec.CheckPasswordHash(input.Password, operator.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	// ── 3. Token Issuance ─────────────────────────────────────────────────

	token, err := service.tokenProvider.GenerateAccessToken(
		operator.ID, operator.Name, operator.Email, string(operator.Role), service.tokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	return &LoginResult{Token: token, User: operator.User}, nil
}

// Verify confirms that the operator behind claims still exists and returns
// the current identity.
func (service *Service) Verify(ctx context.Context, claims *sec.AuthClaims) (*VerifyResult, error) {
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	operator, err := service.operators.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Operator no longer exists")
	}

	result := &VerifyResult{User: operator.User}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
