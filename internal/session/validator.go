// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Validator decides locally whether a persisted token is worth sending to
// the server.
//
// # Security
//
// The signature is NOT verified; that is the server's job. This check only
// avoids a verify round trip for a token that is malformed or already expired.
type Validator struct {
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewValidator returns a Validator reading time from clock (real clock if nil).
func NewValidator(clock clockwork.Clock) *Validator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Validator{
		clock:  clock,
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}
}

// IsValid reports whether token is a well-formed JWT whose exp claim lies
// strictly in the future. It never panics; every failure maps to false.
func (validator *Validator) IsValid(token string) bool {
	expiresAt, ok := validator.ExpiresAt(token)
	if !ok {
		return false
	}
	return validator.clock.Now().Before(expiresAt)
}

// ExpiresAt decodes the exp claim of token without verifying it.
// ok is false for empty, malformed or exp-less tokens.
func (validator *Validator) ExpiresAt(token string) (expiresAt time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			expiresAt, ok = time.Time{}, false
		}
	}()

	if strings.TrimSpace(token) == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := validator.parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
