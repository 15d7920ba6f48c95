// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/platform/apperr"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

// LoginResult is the successful response of the login endpoint.
type LoginResult struct {
	Token string   `json:"token"`
	User  crm.User `json:"user"`
}

// Authenticator is the slice of the REST API the machine needs.
type Authenticator interface {
	// Login exchanges credentials for a token and the operator identity.
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// Verify returns the identity behind token, or an error if the server rejects it.
	Verify(ctx context.Context, token string) (*crm.User, error)
}

// Machine owns the authentication state of the process.
//
// # Concurrency
//
// All methods are safe for concurrent use. Observers registered with
// [Machine.Subscribe] are called outside the internal lock, in transition order
// per goroutine.
//
// # Request Generations
//
// Every login and logout bumps a generation counter. A network response that
// belongs to an older generation is discarded, so a slow verify cannot
// overwrite a fresh login and a slow login cannot resurrect a session the
// operator just logged out of.
type Machine struct {
	store         TokenStore
	validator     *Validator
	authenticator Authenticator
	logger        *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64

	initOnce sync.Once

	observersMu  sync.Mutex
	observers    map[int]func(State)
	nextObserver int
}

// NewMachine constructs a Machine in the anonymous state. Call
// [Machine.Initialize] once at startup to reconcile the persisted token.
func NewMachine(store TokenStore, validator *Validator, authenticator Authenticator, logger *slog.Logger) *Machine {
	if validator == nil {
		validator = NewValidator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:         store,
		validator:     validator,
		authenticator: authenticator,
		logger:        logger.With(slog.String("component", "session")),
		state:         Anonymous(),
		observers:     make(map[int]func(State)),
	}
}

// # Queries

// State returns a snapshot of the current session.
func (machine *Machine) State() State {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	return snapshot(machine.state)
}

// Token returns the persisted bearer token for request headers ("" when absent).
func (machine *Machine) Token(ctx context.Context) (string, error) {
	return machine.store.Get(ctx)
}

// Subscribe registers fn to be called after every state change.
// The returned function unregisters it.
func (machine *Machine) Subscribe(fn func(State)) (cancel func()) {
	machine.observersMu.Lock()
	id := machine.nextObserver
	machine.nextObserver++
	machine.observers[id] = fn
	machine.observersMu.Unlock()

	return func() {
		machine.observersMu.Lock()
		delete(machine.observers, id)
		machine.observersMu.Unlock()
	}
}

// # Startup

// Initialize reconciles the persisted token with the server. It runs once;
// later calls return the current state without side effects.
//
// # Flow
//  1. No token: stay anonymous, no network call.
//  2. Token rejected by the [Validator]: purge it, stay anonymous.
//  3. Otherwise: verifying, then authenticated or (on any verify failure) anonymous with the token purged.
//
// Startup failures are logged, never surfaced in [State.Error].
func (machine *Machine) Initialize(ctx context.Context) State {
	machine.initOnce.Do(func() {
		machine.initialize(ctx)
	})
	return machine.State()
}

func (machine *Machine) initialize(ctx context.Context) {
	// ── 1. Read Persisted Token ───────────────────────────────────────────

	token, err := machine.store.Get(ctx)
	if err != nil {
		machine.logger.Warn("session_token_read_failed", slog.Any("error", err))
		return
	}
	if token == "" {
		machine.logger.Debug("session_startup_anonymous")
		return
	}

	// ── 2. Local Validation ───────────────────────────────────────────────

	if !machine.validator.IsValid(token) {
		machine.logger.Info("session_startup_token_rejected")
		machine.clearToken(ctx)
		return
	}

	machine.mu.Lock()
	generation := machine.generation
	next := machine.apply(StartupVerifying{})
	machine.mu.Unlock()
	machine.notify(next)

	// ── 3. Server Verification ────────────────────────────────────────────

	user, err := machine.authenticator.Verify(ctx, token)
	if err == nil && user == nil {
		err = fmt.Errorf("session: verify returned no user")
	}

	machine.mu.Lock()
	if machine.generation != generation {
		// A login or logout happened meanwhile; its outcome wins.
		machine.mu.Unlock()
		machine.logger.Debug("session_startup_verify_discarded")
		return
	}

	if err != nil {
		if clearErr := machine.store.Clear(ctx); clearErr != nil {
			machine.logger.Warn("session_token_clear_failed", slog.Any("error", clearErr))
		}
		next = machine.apply(VerifyFailed{})
		machine.mu.Unlock()

		machine.logger.Info("session_startup_verify_failed", slog.Any("error", err))
		machine.notify(next)
		return
	}

	next = machine.apply(VerifySucceeded{User: *user})
	machine.mu.Unlock()

	machine.logger.Info("session_restored",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	machine.notify(next)
}

// # Operator Actions

// Login authenticates with credentials, persists the returned token and
// moves to authenticated.
//
// On failure the state becomes failed with an operator-facing message and
// the error is returned so the caller can keep its form open. An existing
// persisted token is left untouched by a failed login.
func (machine *Machine) Login(ctx context.Context, email, password string) (*crm.User, error) {
	// ── 1. Start Attempt ──────────────────────────────────────────────────

	machine.mu.Lock()
	machine.generation++
	generation := machine.generation
	next := machine.apply(LoginStarted{})
	machine.mu.Unlock()
	machine.notify(next)

	// ── 2. Remote Call ────────────────────────────────────────────────────

	result, err := machine.authenticator.Login(ctx, email, password)
	if err == nil && (result == nil || result.Token == "") {
		err = ErrEmptyToken
	}

	machine.mu.Lock()
	if machine.generation != generation {
		machine.mu.Unlock()
		machine.logger.Debug("session_login_discarded")
		return nil, ErrLoginSuperseded
	}

	// ── 3. Failure ────────────────────────────────────────────────────────

	if err != nil {
		next = machine.apply(LoginFailed{Message: loginErrorMessage(err)})
		machine.mu.Unlock()

		attrs := []any{slog.Any("error", err)}
		if appError := apperr.As(err); appError != nil && appError.Cause != nil {
			attrs = append(attrs, slog.Any("cause", appError.Cause))
		}
		machine.logger.Warn("session_login_failed", attrs...)
		machine.notify(next)
		return nil, fmt.Errorf("session: login: %w", err)
	}

	// ── 4. Persist & Commit ───────────────────────────────────────────────

	if err := machine.store.Set(ctx, result.Token); err != nil {
		next = machine.apply(LoginFailed{Message: "Could not save the session on this device"})
		machine.mu.Unlock()

		machine.logger.Error("session_token_persist_failed", slog.Any("error", err))
		machine.notify(next)
		return nil, fmt.Errorf("session: persist token: %w", err)
	}

	next = machine.apply(LoginSucceeded{User: result.User})
	machine.mu.Unlock()

	machine.logger.Info("session_login_succeeded",
		slog.String("user_id", result.User.ID),
		slog.String("role", string(result.User.Role)),
	)
	machine.notify(next)

	user := result.User
	return &user, nil
}

// Logout forgets the session locally. It needs no network call and is
// idempotent; a storage failure is logged, not returned.
func (machine *Machine) Logout(ctx context.Context) {
	machine.mu.Lock()
	machine.generation++
	if err := machine.store.Clear(ctx); err != nil {
		machine.logger.Warn("session_token_clear_failed", slog.Any("error", err))
	}
	previous := machine.state.Status
	next := machine.apply(LoggedOut{})
	machine.mu.Unlock()

	if previous != StatusAnonymous {
		machine.logger.Info("session_logged_out")
	}
	machine.notify(next)
}

// UpdateUser merges patch into the local operator record without a network call.
//
// Returns [ErrNotAuthenticated] unless the session is authenticated.
func (machine *Machine) UpdateUser(patch crm.UserPatch) error {
	machine.mu.Lock()
	if !machine.state.IsAuthenticated() {
		machine.mu.Unlock()
		return ErrNotAuthenticated
	}
	next := machine.apply(UserUpdated{Patch: patch})
	machine.mu.Unlock()

	machine.notify(next)
	return nil
}

// ClearError drops the current error message, keeping the status.
func (machine *Machine) ClearError() {
	machine.mu.Lock()
	next := machine.apply(ErrorCleared{})
	machine.mu.Unlock()
	machine.notify(next)
}

// # Internals

// apply runs [Reduce] and stores the result. Callers hold machine.mu.
func (machine *Machine) apply(event Event) State {
	machine.state = Reduce(machine.state, event)
	return snapshot(machine.state)
}

// clearToken purges the store and resets to anonymous.
func (machine *Machine) clearToken(ctx context.Context) {
	if err := machine.store.Clear(ctx); err != nil {
		machine.logger.Warn("session_token_clear_failed", slog.Any("error", err))
	}
}

func (machine *Machine) notify(state State) {
	machine.observersMu.Lock()
	observers := make([]func(State), 0, len(machine.observers))
	for _, fn := range machine.observers {
		observers = append(observers, fn)
	}
	machine.observersMu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

// snapshot copies the user so callers cannot mutate machine state.
func snapshot(state State) State {
	if state.User != nil {
		user := *state.User
		state.User = &user
	}
	return state
}

// loginErrorMessage picks the operator-facing message for a failed login:
// the server's message (or the fixed network message), else the error text,
// else a fixed fallback.
func loginErrorMessage(err error) string {
	if appError := apperr.As(err); appError != nil && appError.Message != "" {
		return appError.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return constants.LoginFallbackMessage
}
