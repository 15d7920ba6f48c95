// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mockapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/apiclient"
	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/live"
	"github.com/taibuivan/leadcrm/internal/mockapi"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/config"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/realtime"
	"github.com/taibuivan/leadcrm/internal/session"
	"github.com/taibuivan/leadcrm/pkg/pagination"
	"github.com/taibuivan/leadcrm/pkg/pointer"
)

const (
	superEmail    = "super@leadcrm.dev"
	superPassword = "super-secret"
	adminEmail    = "lan@leadcrm.dev"
	adminPassword = "admin-secret"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type backend struct {
	app *mockapi.App
	url string
}

func startBackend(t *testing.T) *backend {
	t.Helper()

	cfg := &config.MockAPIConfig{
		ServerPort:  "0",
		Environment: "development",
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
	}
	app, err := mockapi.Build(context.Background(), cfg, discard, mockapi.Options{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	server := httptest.NewServer(app.Server.Handler())
	t.Cleanup(server.Close)

	return &backend{app: app, url: server.URL}
}

// operator is a logged-in client stack: session, REST client and realtime channel.
type operator struct {
	machine *session.Machine
	client  *apiclient.Client
	channel *realtime.Manager
}

// machineTokens lets the REST client read the token of a machine built on it.
type machineTokens struct{ machine *session.Machine }

func (tokens *machineTokens) Token(ctx context.Context) (string, error) {
	return tokens.machine.Token(ctx)
}

func (b *backend) login(t *testing.T, email, password string) *operator {
	t.Helper()

	tokens := &machineTokens{}
	client, err := apiclient.New(b.url+"/api", apiclient.WithTokenSource(tokens), apiclient.WithLogger(discard))
	require.NoError(t, err)

	machine := session.NewMachine(session.NewMemoryStore(""), nil, client, discard)
	tokens.machine = machine

	_, err = machine.Login(context.Background(), email, password)
	require.NoError(t, err)

	channel, err := realtime.NewManager(realtime.Options{
		URL:    b.url + "/realtime",
		Tokens: machine,
		Logger: discard,
	})
	require.NoError(t, err)
	t.Cleanup(channel.Disconnect)

	return &operator{machine: machine, client: client, channel: channel}
}

func newLead(email string) crm.LeadInput {
	return crm.LeadInput{FullName: "Hoang Van B", Email: email, Phone: "0912 345 678", CardType: crm.CardPlatinum}
}

/*
TestHealth checks the health endpoints answer without authentication.
*/
func TestHealth(t *testing.T) {
	b := startBackend(t)

	for _, path := range []string{"/health", "/ready"} {
		response, err := http.Get(b.url + path)
		require.NoError(t, err)
		_ = response.Body.Close()
		assert.Equal(t, http.StatusOK, response.StatusCode, path)
	}
}

/*
TestSessionLifecycle covers login, token reuse on restart, and a bad password.
*/
func TestSessionLifecycle(t *testing.T) {
	b := startBackend(t)
	ctx := context.Background()

	client, err := apiclient.New(b.url+"/api", apiclient.WithLogger(discard))
	require.NoError(t, err)

	// ── Failed login keeps the machine usable ──
	store := session.NewMemoryStore("")
	machine := session.NewMachine(store, nil, client, discard)

	_, err = machine.Login(ctx, superEmail, "wrong")
	require.Error(t, err)
	assert.Equal(t, session.StatusFailed, machine.State().Status)
	assert.Equal(t, "Invalid email or password", machine.State().Error)

	// ── Successful login persists the token ──
	user, err := machine.Login(ctx, superEmail, superPassword)
	require.NoError(t, err)
	assert.Equal(t, crm.RoleSuperAdmin, user.Role)

	token, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// ── A new process restores the session through verify ──
	restarted := session.NewMachine(session.NewMemoryStore(token), nil, client, discard)
	state := restarted.Initialize(ctx)
	require.True(t, state.IsAuthenticated())
	assert.Equal(t, superEmail, state.User.Email)

	// ── A forged token is purged at startup ──
	forgedStore := session.NewMemoryStore(token + "x")
	forged := session.NewMachine(forgedStore, nil, client, discard)
	assert.Equal(t, session.StatusAnonymous, forged.Initialize(ctx).Status)
	remaining, err := forgedStore.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

/*
TestLeadsREST drives the lead endpoints through the client.
*/
func TestLeadsREST(t *testing.T) {
	b := startBackend(t)
	ctx := context.Background()

	super := b.login(t, superEmail, superPassword)
	admin := b.login(t, adminEmail, adminPassword)

	own, err := admin.client.CreateLead(ctx, newLead("own@example.com"))
	require.NoError(t, err)
	assert.Equal(t, admin.machine.State().User.ID, own.AssignedTo)

	_, err = super.client.CreateLead(ctx, newLead("super@example.com"))
	require.NoError(t, err)

	// ── Visibility ──
	page, err := admin.client.ListLeads(ctx, apiclient.LeadQuery{Params: pagination.Params{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Meta.Total)

	page, err = super.client.ListLeads(ctx, apiclient.LeadQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Meta.Total)

	// ── Update ──
	updated, err := admin.client.UpdateLead(ctx, own.ID, crm.LeadPatch{Status: pointer.To(crm.LeadStatusQualified)})
	require.NoError(t, err)
	assert.Equal(t, crm.LeadStatusQualified, updated.Status)

	// ── Duplicate email ──
	_, err = admin.client.CreateLead(ctx, newLead("OWN@example.com"))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperr.As(err).HTTPStatus)

	// ── Delete is super admin only ──
	err = admin.client.DeleteLead(ctx, own.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperr.As(err).HTTPStatus)

	require.NoError(t, super.client.DeleteLead(ctx, own.ID))
	_, err = super.client.GetLead(ctx, own.ID)
	assert.Equal(t, http.StatusNotFound, apperr.As(err).HTTPStatus)

	// ── Dashboard ──
	stats, err := super.client.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalLeads)
}

/*
TestRealtimeFeeds connects a channel, subscribes to the dashboard feed and
sees a lead created over REST reflected in a pushed payload.
*/
func TestRealtimeFeeds(t *testing.T) {
	b := startBackend(t)
	ctx := context.Background()

	super := b.login(t, superEmail, superPassword)

	stats := live.Subscribe(super.channel, constants.EventDashboardStats, crm.DashboardStats{}, live.Options{
		AutoRequest:  true,
		RequestEvent: constants.EventRequestDashboardStats,
		Logger:       discard,
	})
	t.Cleanup(stats.Close)

	recent := live.Subscribe(super.channel, constants.EventRecentLeads, []crm.Lead{}, live.Options{
		AutoRequest:  true,
		RequestEvent: constants.EventRequestRecentLeads,
		Logger:       discard,
	})
	t.Cleanup(recent.Close)

	handle, err := super.channel.Connect(ctx)
	require.NoError(t, err)
	assert.Len(t, handle.ID(), 26, "connection ids are ULIDs")

	require.Eventually(t, func() bool {
		snapshot := stats.Snapshot()
		return !snapshot.Loading && snapshot.Connected
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, stats.Snapshot().Data.TotalLeads)

	// ── A REST mutation is pushed to the feeds ──
	created, err := super.client.CreateLead(ctx, newLead("push@example.com"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stats.Snapshot().Data.TotalLeads == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		data := recent.Snapshot().Data
		return len(data) == 1 && data[0].ID == created.ID
	}, 5*time.Second, 10*time.Millisecond)

	// ── Acked requests carry the answer ──
	answered := make(chan json.RawMessage, 1)
	super.channel.Emit(constants.EventRequestDashboardStats, nil, func(data json.RawMessage, err error) {
		if err == nil {
			answered <- data
		}
	})
	select {
	case data := <-answered:
		var figures crm.DashboardStats
		require.NoError(t, json.Unmarshal(data, &figures))
		assert.Equal(t, 1, figures.TotalLeads)
	case <-time.After(5 * time.Second):
		t.Fatal("ack never arrived")
	}

	// ── Shutdown disconnects without retry ──
	require.NoError(t, b.app.Hub.Shutdown(ctx))
	require.Eventually(t, func() bool {
		return super.channel.Status().State == realtime.StateDisconnected
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, stats.Snapshot().Connected)
	assert.Equal(t, 1, stats.Snapshot().Data.TotalLeads, "data survives the disconnect")
}

/*
TestRealtimeRejectsBadToken checks the handshake answers connect_error.
*/
func TestRealtimeRejectsBadToken(t *testing.T) {
	b := startBackend(t)

	channel, err := realtime.NewManager(realtime.Options{
		URL:    b.url + "/realtime",
		Tokens: apiclient.StaticToken("not-a-token"),
		Logger: discard,
	})
	require.NoError(t, err)
	t.Cleanup(channel.Disconnect)

	_, err = channel.Connect(context.Background())
	require.Error(t, err)

	var handshakeErr *realtime.HandshakeError
	require.True(t, errors.As(err, &handshakeErr))
	assert.Equal(t, realtime.StateFailed, channel.Status().State)
	assert.Equal(t, 0, b.app.Hub.Clients())
}
