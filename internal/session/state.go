// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import "github.com/taibuivan/leadcrm/internal/crm"

// Status is the coarse authentication state.
type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusVerifying     Status = "verifying"
	StatusAuthenticated Status = "authenticated"
	StatusFailed        Status = "failed"
)

// State is an immutable snapshot of the session.
//
// User is non-nil exactly when Status is [StatusAuthenticated]. The token is
// deliberately absent; it lives only in the [TokenStore].
type State struct {
	Status Status    `json:"status"`
	User   *crm.User `json:"user,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// IsAuthenticated reports whether the session carries a verified operator.
func (state State) IsAuthenticated() bool {
	return state.Status == StatusAuthenticated && state.User != nil
}

// Anonymous is the state of a process with no session.
func Anonymous() State {
	return State{Status: StatusAnonymous}
}

// # Events

// Event is one input of [Reduce]. The set is closed: only the types below
// implement it.
type Event interface {
	sessionEvent()
}

// StartupVerifying is dispatched when a locally valid token was found at startup.
type StartupVerifying struct{}

// VerifySucceeded carries the identity confirmed by the verify endpoint.
type VerifySucceeded struct{ User crm.User }

// VerifyFailed is dispatched when startup verification was rejected or did not complete.
type VerifyFailed struct{}

// LoginStarted is dispatched before the login request is sent.
type LoginStarted struct{}

// LoginSucceeded carries the identity returned by the login endpoint.
type LoginSucceeded struct{ User crm.User }

// LoginFailed carries the operator-facing message of a failed login.
type LoginFailed struct{ Message string }

// LoggedOut is dispatched by an explicit logout.
type LoggedOut struct{}

// UserUpdated carries a local merge-only profile change.
type UserUpdated struct{ Patch crm.UserPatch }

// ErrorCleared drops the current error message.
type ErrorCleared struct{}

func (StartupVerifying) sessionEvent() {}
func (VerifySucceeded) sessionEvent()  {}
func (VerifyFailed) sessionEvent()     {}
func (LoginStarted) sessionEvent()     {}
func (LoginSucceeded) sessionEvent()   {}
func (LoginFailed) sessionEvent()      {}
func (LoggedOut) sessionEvent()        {}
func (UserUpdated) sessionEvent()      {}
func (ErrorCleared) sessionEvent()     {}

// # Transitions

// Reduce returns the state that follows current after event.
//
// It is pure: no I/O and no token handling. Events that make no sense in the
// current status (a verify result after a logout, a profile update while
// anonymous) leave the state unchanged.
func Reduce(current State, event Event) State {
	switch e := event.(type) {

	case StartupVerifying:
		if current.Status != StatusAnonymous {
			return current
		}
		return State{Status: StatusVerifying}

	case VerifySucceeded:
		if current.Status != StatusVerifying {
			return current
		}
		user := e.User
		return State{Status: StatusAuthenticated, User: &user}

	case VerifyFailed:
		if current.Status != StatusVerifying {
			return current
		}
		return Anonymous()

	case LoginStarted:
		// The previous identity is not trusted while a new login is in flight.
		return State{Status: StatusVerifying}

	case LoginSucceeded:
		user := e.User
		return State{Status: StatusAuthenticated, User: &user}

	case LoginFailed:
		return State{Status: StatusFailed, Error: e.Message}

	case LoggedOut:
		return Anonymous()

	case UserUpdated:
		if !current.IsAuthenticated() {
			return current
		}
		merged := e.Patch.Apply(*current.User)
		return State{Status: StatusAuthenticated, User: &merged, Error: current.Error}

	case ErrorCleared:
		next := current
		next.Error = ""
		return next
	}

	return current
}
