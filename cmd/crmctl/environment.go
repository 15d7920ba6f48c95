// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/taibuivan/leadcrm/internal/apiclient"
	"github.com/taibuivan/leadcrm/internal/platform/config"
	redisstore "github.com/taibuivan/leadcrm/internal/platform/redis"
	"github.com/taibuivan/leadcrm/internal/realtime"
	"github.com/taibuivan/leadcrm/internal/session"
)

// overrides are the global flags that take precedence over LEADCRM_* variables.
type overrides struct {
	debug   bool
	apiURL  string
	profile string
}

// environment is the client stack shared by every command.
type environment struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     session.TokenStore
	validator *session.Validator
	machine   *session.Machine
	client    *apiclient.Client

	stdin   io.Reader
	stdout  io.Writer
	printer *message.Printer

	closers []func()
}

// tokenSource defers to the machine, which is built after the client.
type tokenSource struct{ machine *session.Machine }

func (source *tokenSource) Token(ctx context.Context) (string, error) {
	return source.machine.Token(ctx)
}

/*
newEnvironment loads the configuration and wires the client core.

# Flow
 1. Configuration from LEADCRM_* plus flag overrides.
 2. Logger on stderr (warn, or debug with --debug).
 3. Token store for the configured backend.
 4. REST client and session machine sharing the store.
*/
func newEnvironment(ctx context.Context, flags overrides, stdin io.Reader, stdout, stderr io.Writer) (*environment, error) {
	// ── 1. Configuration ──────────────────────────────────────────────────

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	if flags.profile != "" {
		cfg.Profile = flags.profile
	}
	cfg.Debug = cfg.Debug || flags.debug

	// ── 2. Logger ─────────────────────────────────────────────────────────

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})).
		With(slog.String("profile", cfg.Profile))

	env := &environment{
		cfg:       cfg,
		logger:    logger,
		validator: session.NewValidator(nil),
		stdin:     stdin,
		stdout:    stdout,
		printer:   message.NewPrinter(language.English),
	}

	// ── 3. Token Store ────────────────────────────────────────────────────

	if err := env.openStore(ctx); err != nil {
		return nil, err
	}

	// ── 4. Client Core ────────────────────────────────────────────────────

	tokens := &tokenSource{}
	env.client, err = apiclient.New(cfg.APIURL,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithTokenSource(tokens),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		env.close()
		return nil, err
	}
	env.machine = session.NewMachine(env.store, env.validator, env.client, logger)
	tokens.machine = env.machine

	return env, nil
}

func (env *environment) openStore(ctx context.Context) error {
	switch env.cfg.TokenBackend {
	case config.TokenBackendMemory:
		env.store = session.NewMemoryStore("")

	case config.TokenBackendRedis:
		client, err := redisstore.NewClient(ctx, env.cfg.RedisURL, env.logger)
		if err != nil {
			return err
		}
		env.closers = append(env.closers, func() { _ = client.Close() })
		env.store = session.NewRedisStore(client, env.cfg.Profile, env.validator)

	default:
		path, err := env.cfg.TokenPath()
		if err != nil {
			return err
		}
		env.store = session.NewFileStore(path)
	}
	return nil
}

// channel builds the realtime manager from the configuration.
func (env *environment) channel() (*realtime.Manager, error) {
	manager, err := realtime.NewManager(realtime.Options{
		URL:            env.cfg.RealtimeURL,
		ConnectTimeout: env.cfg.ConnectTimeout,
		Reconnect: &realtime.ReconnectPolicy{
			Enabled:     env.cfg.Reconnect,
			MaxAttempts: env.cfg.ReconnectAttempts,
			BaseDelay:   env.cfg.ReconnectDelay,
			MaxDelay:    env.cfg.ReconnectDelayMax,
			Multiplier:  env.cfg.ReconnectMultiplier,
		},
		Tokens: env.machine,
		Logger: env.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: %w", err)
	}
	return manager, nil
}

// requireSession restores the persisted session or fails with [errNotLoggedIn].
func (env *environment) requireSession(ctx context.Context) (session.State, error) {
	state := env.machine.Initialize(ctx)
	if !state.IsAuthenticated() {
		return state, errNotLoggedIn
	}
	return state, nil
}

func (env *environment) close() {
	for _, closer := range env.closers {
		closer()
	}
}
