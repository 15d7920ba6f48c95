// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/leadcrm/internal/session"
)

/*
TestValidator_IsValid covers garbage, shape errors and expiry boundaries.
*/
func TestValidator_IsValid(t *testing.T) {
	validator := session.NewValidator(clockwork.NewFakeClockAt(testNow))

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	segment := func(payload string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(payload))
	}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"garbage", "definitely-not-a-token", false},
		{"three_garbage_segments", "a.b.c", false},
		{"payload_not_json", header + "." + segment("not json") + ".sig", false},
		{"missing_exp", header + "." + segment(`{"sub":"u-1"}`) + ".sig", false},
		{"exp_as_string", header + "." + segment(`{"exp":"tomorrow"}`) + ".sig", false},
		{"expired_one_second_ago", signedToken(t, testNow, -time.Second), false},
		{"expires_exactly_now", signedToken(t, testNow, 0), false},
		{"valid_for_an_hour", signedToken(t, testNow, time.Hour), true},
		{"unsigned_but_fresh", header + "." + segment(`{"exp":`+strconv.FormatInt(testNow.Add(time.Hour).Unix(), 10)+`}`) + ".forged", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, validator.IsValid(tt.token))
			})
		})
	}
}

/*
TestValidator_ExpiryMovesWithClock verifies the check follows the injected clock.
*/
func TestValidator_ExpiryMovesWithClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	validator := session.NewValidator(clock)
	token := signedToken(t, testNow, time.Minute)

	assert.True(t, validator.IsValid(token))

	expiresAt, ok := validator.ExpiresAt(token)
	assert.True(t, ok)
	assert.Equal(t, testNow.Add(time.Minute).Unix(), expiresAt.Unix())

	clock.Advance(time.Minute)
	assert.False(t, validator.IsValid(token))
}
