// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/live"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/realtime"
	"github.com/taibuivan/leadcrm/internal/session"
)

/*
runWatch follows the live dashboard until interrupted or logged out.

# Flow
 1. Restore the session.
 2. Subscribe the dashboard and recent-lead feeds, then connect.
 3. With the file backend, follow logins and logouts made by other crmctl runs.
*/
func runWatch(ctx context.Context, env *environment, args []string) error {
	refresh := env.cfg.DashboardRefreshRate

	flagSet := newFlagSet(env, "watch")
	flagSet.DurationVar(&refresh, "refresh", refresh, "dashboard re-request period (0 disables)")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	// ── 1. Session ────────────────────────────────────────────────────────

	if _, err := env.requireSession(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	channel, err := env.channel()
	if err != nil {
		return err
	}
	defer channel.Disconnect()

	// ── 2. Feeds ──────────────────────────────────────────────────────────

	var outputMu sync.Mutex
	locked := func(fn func()) {
		outputMu.Lock()
		defer outputMu.Unlock()
		fn()
	}

	stats := live.Subscribe(channel, constants.EventDashboardStats, crm.DashboardStats{}, live.Options{
		AutoRequest:     true,
		RequestEvent:    constants.EventRequestDashboardStats,
		RefreshInterval: refresh,
		Logger:          env.logger,
	})
	defer stats.Close()

	recent := live.Subscribe(channel, constants.EventRecentLeads, []crm.Lead{}, live.Options{
		AutoRequest:  true,
		RequestEvent: constants.EventRequestRecentLeads,
		Logger:       env.logger,
	})
	defer recent.Close()

	dashboard := &dashboardView{env: env}
	stats.OnChange(func(snapshot live.Snapshot[crm.DashboardStats]) {
		locked(func() { dashboard.render(snapshot) })
	})
	recent.OnChange(func(snapshot live.Snapshot[[]crm.Lead]) {
		if snapshot.Loading || snapshot.UpdatedAt.IsZero() {
			return
		}
		locked(func() {
			env.printer.Fprintln(env.stdout, "\n── Recent leads ──")
			printLeads(env, snapshot.Data)
		})
	})

	// Reconnect clears event handlers, so the handler is registered per connection.
	onLeadCreated := func(data json.RawMessage) {
		var lead crm.Lead
		if json.Unmarshal(data, &lead) == nil {
			locked(func() {
				env.printer.Fprintf(env.stdout, "+ new lead %s (%s, %s)\n", lead.FullName, lead.Email, lead.CardType)
			})
		}
	}
	stopLeadEvents := channel.OnConnection(func() {
		channel.On(constants.EventLeadCreated, onLeadCreated)
	})
	defer stopLeadEvents()

	channel.OnStateChange(func(status realtime.Status) {
		locked(func() {
			line := "[" + string(status.State) + "]"
			if status.LastError != "" && status.State != realtime.StateConnected {
				line += " " + status.LastError
			}
			env.printer.Fprintln(env.stdout, line)
		})
		if status.State == realtime.StateFailed {
			cancel(errors.New("realtime channel gave up: " + status.LastError))
		}
	})

	// ── 3. Cross-Process Session Changes ──────────────────────────────────

	if fileStore, ok := env.store.(*session.FileStore); ok {
		go func() {
			err := fileStore.Watch(ctx, env.logger, func(token string) {
				if token == "" {
					cancel(errNotLoggedIn)
					return
				}
				env.logger.Info("watch_token_changed")
				if _, err := channel.Reconnect(ctx); err != nil {
					env.logger.Warn("watch_reconnect_failed", slog.Any("error", err))
				}
			})
			if err != nil {
				env.logger.Warn("watch_token_file_unwatched", slog.Any("error", err))
			}
		}()
	}

	if _, err := channel.Connect(ctx); err != nil {
		var handshakeErr *realtime.HandshakeError
		if errors.As(err, &handshakeErr) {
			return err
		}
		// Other failures are retried by the channel.
		env.logger.Warn("watch_connect_failed", slog.Any("error", err))
	}

	<-ctx.Done()

	cause := context.Cause(ctx)
	if errors.Is(cause, context.Canceled) {
		// Interrupted by the operator.
		return nil
	}
	return cause
}

// dashboardView prints dashboard snapshots. A feed error is reported once per
// distinct message, including one that arrives before any figures.
type dashboardView struct {
	env       *environment
	lastError string
}

func (view *dashboardView) render(snapshot live.Snapshot[crm.DashboardStats]) {
	env := view.env

	if snapshot.Error != "" && snapshot.Error != view.lastError {
		env.printer.Fprintf(env.stdout, "dashboard error: %s\n", snapshot.Error)
	}
	view.lastError = snapshot.Error

	if snapshot.Loading || snapshot.UpdatedAt.IsZero() {
		return
	}
	env.printer.Fprintf(env.stdout, "\n── Dashboard %s ──\n", snapshot.UpdatedAt.Local().Format(time.TimeOnly))
	printStats(env, snapshot.Data)
}
