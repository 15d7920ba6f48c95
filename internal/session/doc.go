// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session owns the client's belief about who is logged in.

It is built leaf-first:

  - [TokenStore]: persisted bearer token (memory, file or Redis).
  - [Validator]: local structural and expiry check of a token, no network.
  - [Reduce]: pure transition function over [State] and [Event].
  - [Machine]: composes the three with an [Authenticator] to implement
    startup reconciliation, login, logout and local profile updates.

# Invariants

  - Status authenticated if and only if User is non-nil.
  - Startup never surfaces an error; a token that fails verification is purged.
  - A failed login leaves any previously persisted token untouched.
*/
package session
