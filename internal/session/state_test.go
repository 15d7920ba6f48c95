// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/session"
	"github.com/taibuivan/leadcrm/pkg/pointer"
)

func authenticated() session.State {
	user := operator
	return session.State{Status: session.StatusAuthenticated, User: &user}
}

/*
TestReduce walks every transition in the session table.
*/
func TestReduce(t *testing.T) {
	tests := []struct {
		name       string
		from       session.State
		event      session.Event
		wantStatus session.Status
		wantUser   bool
		wantError  string
	}{
		{"startup_from_anonymous", session.Anonymous(), session.StartupVerifying{}, session.StatusVerifying, false, ""},
		{"startup_ignored_when_authenticated", authenticated(), session.StartupVerifying{}, session.StatusAuthenticated, true, ""},
		{"verify_ok", session.State{Status: session.StatusVerifying}, session.VerifySucceeded{User: operator}, session.StatusAuthenticated, true, ""},
		{"verify_ok_after_logout_ignored", session.Anonymous(), session.VerifySucceeded{User: operator}, session.StatusAnonymous, false, ""},
		{"verify_failed", session.State{Status: session.StatusVerifying}, session.VerifyFailed{}, session.StatusAnonymous, false, ""},
		{"login_started_from_failed", session.State{Status: session.StatusFailed, Error: "bad"}, session.LoginStarted{}, session.StatusVerifying, false, ""},
		{"login_started_from_authenticated", authenticated(), session.LoginStarted{}, session.StatusVerifying, false, ""},
		{"login_ok", session.State{Status: session.StatusVerifying}, session.LoginSucceeded{User: operator}, session.StatusAuthenticated, true, ""},
		{"login_failed", session.State{Status: session.StatusVerifying}, session.LoginFailed{Message: "Invalid login credentials"}, session.StatusFailed, false, "Invalid login credentials"},
		{"logout_from_authenticated", authenticated(), session.LoggedOut{}, session.StatusAnonymous, false, ""},
		{"logout_from_failed", session.State{Status: session.StatusFailed, Error: "x"}, session.LoggedOut{}, session.StatusAnonymous, false, ""},
		{"update_ignored_when_anonymous", session.Anonymous(), session.UserUpdated{Patch: crm.UserPatch{Name: pointer.To("x")}}, session.StatusAnonymous, false, ""},
		{"clear_error_keeps_status", session.State{Status: session.StatusFailed, Error: "x"}, session.ErrorCleared{}, session.StatusFailed, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := session.Reduce(tt.from, tt.event)

			assert.Equal(t, tt.wantStatus, next.Status)
			assert.Equal(t, tt.wantUser, next.User != nil)
			assert.Equal(t, tt.wantError, next.Error)

			// authenticated <=> user != nil
			assert.Equal(t, next.Status == session.StatusAuthenticated, next.User != nil)
		})
	}
}

/*
TestReduce_UserUpdatedMerges keeps status and merges only the patched fields.
*/
func TestReduce_UserUpdatedMerges(t *testing.T) {
	next := session.Reduce(authenticated(), session.UserUpdated{Patch: crm.UserPatch{Name: pointer.To("Ana L.")}})

	assert.Equal(t, session.StatusAuthenticated, next.Status)
	assert.Equal(t, "Ana L.", next.User.Name)
	assert.Equal(t, operator.Email, next.User.Email)
}

/*
TestReduce_DoesNotMutateInput guards purity.
*/
func TestReduce_DoesNotMutateInput(t *testing.T) {
	from := authenticated()
	_ = session.Reduce(from, session.UserUpdated{Patch: crm.UserPatch{Name: pointer.To("Changed")}})
	assert.Equal(t, operator.Name, from.User.Name)
}
