// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/live"
	"github.com/taibuivan/leadcrm/internal/mockapi"
	"github.com/taibuivan/leadcrm/internal/platform/config"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of watch.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setup starts a backend with demo data and points LEADCRM_* at it.
func setup(t *testing.T) {
	t.Helper()

	cfg := &config.MockAPIConfig{
		Environment: "development",
		JWTSecret:   "crmctl-test",
		TokenTTL:    time.Hour,
		SeedDemo:    true,
	}
	app, err := mockapi.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), mockapi.Options{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	server := httptest.NewServer(app.Server.Handler())
	t.Cleanup(server.Close)

	t.Setenv("LEADCRM_API_URL", server.URL+"/api")
	t.Setenv("LEADCRM_REALTIME_URL", server.URL+"/realtime")
	t.Setenv("LEADCRM_TOKEN_BACKEND", "file")
	t.Setenv("LEADCRM_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))
	t.Setenv("LEADCRM_PASSWORD", "")
}

func crmctl(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

/*
TestSessionCommands persists a login across runs and forgets it on logout.
*/
func TestSessionCommands(t *testing.T) {
	setup(t)

	_, err := crmctl(t, "", "whoami")
	assert.Equal(t, 3, exitCode(err))

	out, err := crmctl(t, "super-secret\n", "login", "--email", "super@leadcrm.dev")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Super Admin")

	out, err = crmctl(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "super@leadcrm.dev")
	assert.Contains(t, out, "super_admin")

	_, err = crmctl(t, "", "logout")
	require.NoError(t, err)

	_, err = crmctl(t, "", "whoami")
	assert.Equal(t, 3, exitCode(err))
}

func TestLoginFailure(t *testing.T) {
	setup(t)

	_, err := crmctl(t, "", "login", "-e", "super@leadcrm.dev", "-p", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email or password")

	_, err = crmctl(t, "", "login")
	assert.Equal(t, 2, exitCode(err))
}

/*
TestLeadCommands covers listing, creation, status changes and stats output.
*/
func TestLeadCommands(t *testing.T) {
	setup(t)

	_, err := crmctl(t, "", "login", "-e", "super@leadcrm.dev", "-p", "super-secret")
	require.NoError(t, err)

	out, err := crmctl(t, "", "leads")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1/1, 6 leads")

	out, err = crmctl(t, "", "leads", "create", "--name", "Ngo Thi Lan", "--email", "lan.ngo@example.com", "--phone", "0911222333", "--card", "gold")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Created lead "))
	id := strings.TrimSpace(strings.TrimPrefix(out, "Created lead "))

	out, err = crmctl(t, "", "leads", "status", id, "converted")
	require.NoError(t, err)
	assert.Contains(t, out, "is now converted")

	out, err = crmctl(t, "", "leads", "list", "--status", "converted")
	require.NoError(t, err)
	assert.Contains(t, out, "lan.ngo@example.com")
	assert.Contains(t, out, "1 leads")

	out, err = crmctl(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total leads:     7")

	_, err = crmctl(t, "", "leads", "status", id)
	assert.Equal(t, 2, exitCode(err))

	_, err = crmctl(t, "", "nonsense")
	assert.Equal(t, 2, exitCode(err))
}

/*
TestWatch prints the pushed dashboard, keeps following new leads after another
process logs in again and stops when the session file is removed.
*/
func TestWatch(t *testing.T) {
	setup(t)

	_, err := crmctl(t, "", "login", "-e", "lan@leadcrm.dev", "-p", "admin-secret")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"watch", "--refresh", "0"}, strings.NewReader(""), &stdout, io.Discard)
	}()

	require.Eventually(t, func() bool {
		out := stdout.String()
		return strings.Contains(out, "Total leads:") && strings.Contains(out, "Recent leads")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, stdout.String(), "[connected]")

	// The token watcher starts alongside the connection.
	time.Sleep(200 * time.Millisecond)

	// Another process logging in again makes the watch reconnect.
	_, err = crmctl(t, "", "login", "-e", "lan@leadcrm.dev", "-p", "admin-secret")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Count(stdout.String(), "[connected]") >= 2
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	_, err = crmctl(t, "", "leads", "create", "--name", "Tran Van Minh", "--email", "minh.tran@example.com", "--phone", "0933444555", "--card", "platinum")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "+ new lead Tran Van Minh (minh.tran@example.com, platinum)")
	}, 5*time.Second, 20*time.Millisecond)

	// Another process logging out ends the watch.
	_, err = crmctl(t, "", "logout")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.Equal(t, 3, exitCode(err))
	case <-ctx.Done():
		t.Fatal("watch did not stop after logout")
	}
}

/*
TestDashboardView reports a feed error that arrives before any figures, and
reports each distinct error only once.
*/
func TestDashboardView(t *testing.T) {
	var stdout bytes.Buffer
	view := &dashboardView{env: &environment{stdout: &stdout, printer: message.NewPrinter(language.English)}}

	view.render(live.Snapshot[crm.DashboardStats]{Loading: false, Error: "stats unavailable"})
	view.render(live.Snapshot[crm.DashboardStats]{Loading: false, Error: "stats unavailable", Connected: true})
	assert.Equal(t, 1, strings.Count(stdout.String(), "dashboard error: stats unavailable"))
	assert.NotContains(t, stdout.String(), "Total leads:")

	view.render(live.Snapshot[crm.DashboardStats]{
		Data:      crm.DashboardStats{TotalLeads: 1234},
		UpdatedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	})
	assert.Contains(t, stdout.String(), "Total leads:     1,234")
}
