// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/session"
)

// testNow is the fixed instant every fake clock in this package starts at.
var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// signedToken mints an HS256 token whose exp is now+ttl.
func signedToken(t *testing.T, now time.Time, ttl time.Duration) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

var operator = crm.User{ID: "u-1", Name: "Ana Lima", Email: "ana@crm.test", Role: crm.RoleAdmin}

// stubAuthenticator records calls and answers with configurable results.
type stubAuthenticator struct {
	mu sync.Mutex

	loginResult *session.LoginResult
	loginErr    error
	loginGate   chan struct{}
	loginCalls  int

	verifyUser  *crm.User
	verifyErr   error
	verifyCalls int
}

func (stub *stubAuthenticator) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	stub.mu.Lock()
	stub.loginCalls++
	gate := stub.loginGate
	result, err := stub.loginResult, stub.loginErr
	stub.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return result, err
}

func (stub *stubAuthenticator) Verify(_ context.Context, _ string) (*crm.User, error) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.verifyCalls++
	return stub.verifyUser, stub.verifyErr
}

func (stub *stubAuthenticator) verifyCount() int {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return stub.verifyCalls
}

// failingStore fails every operation.
type failingStore struct{ err error }

func (store failingStore) Get(context.Context) (string, error) { return "", store.err }
func (store failingStore) Set(context.Context, string) error { return store.err }
func (store failingStore) Clear(context.Context) error { return store.err }
