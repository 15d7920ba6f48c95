// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import "errors"

var (
	// ErrNotAuthenticated is returned by [Machine.UpdateUser] outside the authenticated state.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrLoginSuperseded is returned by a login whose response arrived after a
	// newer login or a logout. The response is discarded.
	ErrLoginSuperseded = errors.New("session: login superseded by a newer request")

	// ErrEmptyToken is returned when the server accepted a login but sent no token.
	ErrEmptyToken = errors.New("session: login response carried no token")
)
