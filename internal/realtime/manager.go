// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package realtime manages the single realtime channel between the CRM client
and the server.

A [Manager] owns one connection at a time. It dials through an ordered list
of transports, authenticates the handshake with the current bearer token and
reconnects with capped exponential backoff when the link drops unexpectedly.

# Events

The channel carries named events in both directions. The manager tracks at
most one handler per event name: [Manager.On] replaces, it never stacks.
The cancel function returned by On removes that registration only, so an
owner tearing down late cannot remove a newer owner's handler.
Handlers survive automatic reconnects and are cleared by [Manager.Disconnect].

Connection, disconnection and state callbacks are registered separately,
return a cancel function and live until cancelled; [Manager.Off] and
[Manager.Disconnect] leave them in place. Connection callbacks run on every
successful connect, including each reconnect.

# Concurrency

All methods are safe for concurrent use. Handlers and callbacks are invoked
without the manager's lock held, so they may call back into the manager.
*/
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

// State is the lifecycle position of the channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

var allStates = []State{StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateFailed}

// Status is a snapshot of the channel for status indicators.
type Status struct {
	State        State  `json:"state"`
	Attempts     int    `json:"attempts"`
	LastError    string `json:"last_error,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
	Transport    string `json:"transport,omitempty"`
}

// Handler receives the data of a server event.
type Handler func(data json.RawMessage)

// AckFunc receives the server's answer to an emitted event, or the reason
// none will come.
type AckFunc func(data json.RawMessage, err error)

// TokenSource supplies the bearer token for the handshake.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a [Manager].
type Options struct {
	// URL of the realtime endpoint; http(s) schemes are mapped to ws(s).
	URL string

	// Transports in preference order. Empty means WebSocket then Compat.
	Transports []Transport

	// ConnectTimeout bounds dial plus handshake of one attempt.
	ConnectTimeout time.Duration

	// Reconnect policy; nil means [DefaultReconnectPolicy].
	Reconnect *ReconnectPolicy

	Tokens  TokenSource
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Handle identifies one established connection.
type Handle struct {
	id        string
	transport string
	done      chan struct{}
}

// ID returns the server-assigned connection id.
func (handle *Handle) ID() string { return handle.id }

// Transport returns the name of the transport carrying the connection.
func (handle *Handle) Transport() string { return handle.transport }

// Done is closed when this connection ends, for any reason.
func (handle *Handle) Done() <-chan struct{} { return handle.done }

// attempt is one in-flight dial plus handshake. Concurrent Connect calls join it.
type attempt struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	handle *Handle
	err    error
}

func (current *attempt) finish(handle *Handle, err error) {
	current.handle, current.err = handle, err
	close(current.done)
}

func (current *attempt) wait(ctx context.Context) (*Handle, error) {
	select {
	case <-current.done:
		return current.handle, current.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type handlerEntry struct {
	id   uint64
	fn   Handler
	once bool
}

// Manager owns the realtime channel. Construct one per process with
// [NewManager] and share it.
type Manager struct {
	url        string
	transports []Transport
	timeout    time.Duration
	policy     ReconnectPolicy
	tokens     TokenSource
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *Metrics

	mu         sync.Mutex
	state      State
	attempts   int
	lastError  string
	conn       Conn
	connCancel context.CancelFunc
	handle     *Handle
	inflight   *attempt
	retry      clockwork.Timer
	generation uint64
	handlers   map[string]handlerEntry
	nextHandle uint64
	pending    map[string]AckFunc
	nextAckID  uint64

	onConnect    registry[func()]
	onDisconnect registry[func(reason string)]
	onState      registry[func(Status)]
}

// NewManager validates options and returns a disconnected Manager.
func NewManager(options Options) (*Manager, error) {
	endpoint, err := normalizeURL(options.URL)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		url:        endpoint,
		transports: options.Transports,
		timeout:    options.ConnectTimeout,
		policy:     DefaultReconnectPolicy(),
		tokens:     options.Tokens,
		clock:      options.Clock,
		logger:     options.Logger,
		metrics:    options.Metrics,
		state:      StateDisconnected,
		handlers:   make(map[string]handlerEntry),
		pending:    make(map[string]AckFunc),
	}

	if len(manager.transports) == 0 {
		manager.transports = []Transport{WebSocketTransport{}, CompatTransport{}}
	}
	if manager.timeout <= 0 {
		manager.timeout = constants.DefaultConnectTimeout
	}
	if options.Reconnect != nil {
		manager.policy = *options.Reconnect
	}
	if manager.clock == nil {
		manager.clock = clockwork.NewRealClock()
	}
	if manager.logger == nil {
		manager.logger = slog.Default()
	}
	manager.logger = manager.logger.With(slog.String("component", "realtime"))
	manager.metrics.setState(StateDisconnected)

	return manager, nil
}

func normalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("realtime: invalid url: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("realtime: url %q must use ws, wss, http or https", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("realtime: url %q has no host", raw)
	}
	return parsed.String(), nil
}

// # Queries

// IsConnected reports whether a connection is established.
func (manager *Manager) IsConnected() bool {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.state == StateConnected
}

// ConnectionID returns the server-assigned id of the live connection, or "".
func (manager *Manager) ConnectionID() string {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.handle == nil {
		return ""
	}
	return manager.handle.id
}

// Status returns a snapshot of the channel.
func (manager *Manager) Status() Status {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.statusLocked()
}

func (manager *Manager) statusLocked() Status {
	status := Status{
		State:     manager.state,
		Attempts:  manager.attempts,
		LastError: manager.lastError,
	}
	if manager.handle != nil {
		status.ConnectionID = manager.handle.id
		status.Transport = manager.handle.transport
	}
	return status
}

// # Lifecycle

/*
Connect establishes the channel.

It is idempotent: when connected it returns the live handle without dialing,
and while an attempt is in flight it waits for that attempt instead of
starting another. ctx bounds the wait and, for a fresh attempt, the dial.

A failed attempt is returned to the caller and, policy permitting, retried
in the background.
*/
func (manager *Manager) Connect(ctx context.Context) (*Handle, error) {
	manager.mu.Lock()

	if manager.state == StateConnected && manager.handle != nil {
		handle := manager.handle
		manager.mu.Unlock()
		return handle, nil
	}

	if current := manager.inflight; current != nil {
		manager.mu.Unlock()
		return current.wait(ctx)
	}

	// A manual connect supersedes a scheduled retry and any stale transport.
	manager.stopRetryLocked()
	stale, acks := manager.detachLocked()

	current := manager.beginLocked(ctx, StateConnecting)
	status := manager.statusLocked()
	manager.mu.Unlock()

	if stale != nil {
		_ = stale.Close("replaced")
	}
	failAcks(acks, ErrNotConnected)
	manager.emitState(status)

	manager.run(current)
	return current.handle, current.err
}

// Disconnect closes the channel, cancels any pending retry or in-flight
// attempt and clears every event handler. It is a no-op when already
// disconnected, apart from clearing handlers.
func (manager *Manager) Disconnect() {
	manager.mu.Lock()

	manager.generation++
	manager.stopRetryLocked()
	if current := manager.inflight; current != nil {
		manager.inflight = nil
		current.cancel()
	}

	conn, acks := manager.detachLocked()
	manager.handlers = make(map[string]handlerEntry)

	changed := manager.state != StateDisconnected
	manager.state = StateDisconnected
	status := manager.statusLocked()
	manager.mu.Unlock()

	if conn != nil {
		_ = conn.Close("client disconnect")
	}
	failAcks(acks, ErrNotConnected)

	if !changed {
		return
	}

	manager.logger.Info("realtime_disconnected")
	manager.emitState(status)
	if conn != nil {
		manager.fireDisconnected("client disconnect")
	}
}

// Reconnect clears the error state, then disconnects and connects again.
// Event handlers are cleared by the disconnect; feeds re-register from their
// connection callbacks.
func (manager *Manager) Reconnect(ctx context.Context) (*Handle, error) {
	manager.mu.Lock()
	manager.attempts = 0
	manager.lastError = ""
	manager.mu.Unlock()

	manager.Disconnect()
	return manager.Connect(ctx)
}

// beginLocked registers a new in-flight attempt. Callers hold manager.mu.
func (manager *Manager) beginLocked(parent context.Context, state State) *attempt {
	ctx, cancel := context.WithTimeout(parent, manager.timeout)
	current := &attempt{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	manager.inflight = current
	manager.state = state
	return current
}

// run performs current and commits its outcome unless it was superseded.
func (manager *Manager) run(current *attempt) {
	defer current.cancel()

	conn, transportName, sid, err := manager.dial(current.ctx)

	manager.mu.Lock()
	if manager.inflight != current {
		manager.mu.Unlock()
		if conn != nil {
			_ = conn.Close("superseded")
		}
		current.finish(nil, ErrConnectAborted)
		return
	}
	manager.inflight = nil

	// ── Failure ───────────────────────────────────────────────────────────

	if err != nil {
		manager.attempts++
		manager.lastError = err.Error()

		var rejected *HandshakeError
		retry := !errors.As(err, &rejected) && manager.policy.allows(manager.attempts)
		if retry {
			manager.state = StateReconnecting
			manager.scheduleLocked()
		} else {
			manager.state = StateFailed
		}
		status := manager.statusLocked()
		manager.mu.Unlock()

		manager.logger.Warn("realtime_connect_failed",
			slog.Int("attempts", status.Attempts),
			slog.Bool("will_retry", retry),
			slog.Any("error", err),
		)
		manager.emitState(status)
		current.finish(nil, err)
		return
	}

	// ── Success ───────────────────────────────────────────────────────────

	connCtx, connCancel := context.WithCancel(context.Background())
	handle := &Handle{id: sid, transport: transportName, done: make(chan struct{})}

	manager.conn = conn
	manager.connCancel = connCancel
	manager.handle = handle
	manager.state = StateConnected
	manager.attempts = 0
	manager.lastError = ""
	status := manager.statusLocked()
	manager.mu.Unlock()

	manager.logger.Info("realtime_connected",
		slog.String("connection_id", sid),
		slog.String("transport", transportName),
	)
	manager.emitState(status)
	manager.fireConnected()

	go manager.readLoop(connCtx, conn)
	current.finish(handle, nil)
}

// dial tries each transport in order and performs the handshake.
func (manager *Manager) dial(ctx context.Context) (Conn, string, string, error) {
	token := ""
	if manager.tokens != nil {
		var err error
		if token, err = manager.tokens.Token(ctx); err != nil {
			return nil, "", "", fmt.Errorf("realtime: read token: %w", err)
		}
	}

	header := http.Header{}
	if token != "" {
		header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
	}

	var failures []error
	for _, transport := range manager.transports {
		conn, err := transport.Dial(ctx, manager.url, header)
		if err != nil {
			manager.logger.Debug("realtime_transport_failed",
				slog.String("transport", transport.Name()),
				slog.Any("error", err),
			)
			failures = append(failures, fmt.Errorf("%s: %w", transport.Name(), err))
			continue
		}

		sid, err := handshake(ctx, conn, token)
		if err != nil {
			_ = conn.Close("handshake failed")

			var rejected *HandshakeError
			if errors.As(err, &rejected) {
				// The server answered; another transport would get the same answer.
				return nil, "", "", err
			}
			failures = append(failures, fmt.Errorf("%s: %w", transport.Name(), err))
			continue
		}

		return conn, transport.Name(), sid, nil
	}

	if len(failures) == 0 {
		return nil, "", "", ErrNoTransport
	}
	return nil, "", "", errors.Join(failures...)
}

// handshake sends the connect frame and waits for the server's verdict.
func handshake(ctx context.Context, conn Conn, token string) (string, error) {
	request, err := json.Marshal(ConnectRequest{Auth: ConnectAuth{Token: token}})
	if err != nil {
		return "", err
	}
	if err := conn.WriteFrame(ctx, Frame{Type: FrameConnect, Data: request}); err != nil {
		return "", fmt.Errorf("handshake write: %w", err)
	}

	for {
		frame, err := conn.ReadFrame(ctx)
		var malformed *FrameError
		if errors.As(err, &malformed) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("handshake read: %w", err)
		}

		switch frame.Type {
		case FrameConnect:
			var accepted ConnectAccepted
			if err := json.Unmarshal(frame.Data, &accepted); err != nil || accepted.SID == "" {
				return "", errors.New("handshake: connect frame without sid")
			}
			return accepted.SID, nil

		case FrameConnectError:
			var rejected ConnectRejected
			_ = json.Unmarshal(frame.Data, &rejected)
			if rejected.Message == "" {
				rejected.Message = "unauthorized"
			}
			return "", &HandshakeError{Message: rejected.Message}
		}
	}
}

// # Connection Loss

func (manager *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		frame, err := conn.ReadFrame(ctx)
		var malformed *FrameError
		if errors.As(err, &malformed) {
			manager.logger.Warn("realtime_frame_skipped", slog.Any("error", err))
			continue
		}
		if err != nil {
			manager.lost(conn, err.Error(), true)
			return
		}

		switch frame.Type {
		case FrameEvent:
			manager.dispatch(frame)

		case FrameAck:
			manager.resolve(frame)

		case FrameDisconnect:
			var reason ConnectRejected
			_ = json.Unmarshal(frame.Data, &reason)
			if reason.Message == "" {
				reason.Message = "server disconnect"
			}
			// A deliberate server close is not retried.
			manager.lost(conn, reason.Message, false)
			return
		}
	}
}

// lost handles the end of conn that the client did not ask for.
func (manager *Manager) lost(conn Conn, reason string, retry bool) {
	manager.mu.Lock()
	if manager.conn != conn {
		// Already detached by Disconnect or a newer Connect.
		manager.mu.Unlock()
		return
	}

	_, acks := manager.detachLocked()
	manager.lastError = reason

	if retry && manager.policy.allows(0) {
		manager.state = StateReconnecting
		manager.scheduleLocked()
	} else {
		manager.state = StateDisconnected
	}
	status := manager.statusLocked()
	manager.mu.Unlock()

	_ = conn.Close("connection lost")
	failAcks(acks, ErrNotConnected)

	manager.logger.Warn("realtime_connection_lost",
		slog.String("reason", reason),
		slog.String("state", string(status.State)),
	)
	manager.emitState(status)
	manager.fireDisconnected(reason)
}

// detachLocked forgets the live connection and returns it with the acks
// that will never be answered. Callers hold manager.mu and close the conn.
func (manager *Manager) detachLocked() (Conn, []AckFunc) {
	conn := manager.conn
	if manager.connCancel != nil {
		manager.connCancel()
	}
	if manager.handle != nil {
		close(manager.handle.done)
	}
	manager.conn = nil
	manager.connCancel = nil
	manager.handle = nil

	acks := make([]AckFunc, 0, len(manager.pending))
	for id, ack := range manager.pending {
		acks = append(acks, ack)
		delete(manager.pending, id)
	}
	return conn, acks
}

// # Backoff

// scheduleLocked arms the retry timer for the next attempt. Callers hold manager.mu.
func (manager *Manager) scheduleLocked() {
	manager.stopRetryLocked()

	next := manager.attempts + 1
	delay := manager.policy.Delay(next)
	generation := manager.generation

	manager.retry = manager.clock.AfterFunc(delay, func() {
		manager.retryNow(generation)
	})

	manager.logger.Debug("realtime_reconnect_scheduled",
		slog.Int("attempt", next),
		slog.Duration("delay", delay),
	)
}

func (manager *Manager) stopRetryLocked() {
	if manager.retry != nil {
		manager.retry.Stop()
		manager.retry = nil
	}
}

func (manager *Manager) retryNow(generation uint64) {
	manager.mu.Lock()
	if manager.generation != generation || manager.state != StateReconnecting || manager.inflight != nil {
		manager.mu.Unlock()
		return
	}
	manager.retry = nil
	current := manager.beginLocked(context.Background(), StateReconnecting)
	next := manager.attempts + 1
	manager.mu.Unlock()

	manager.metrics.reconnectAttempt()
	manager.logger.Info("realtime_reconnect_attempt", slog.Int("attempt", next))

	manager.run(current)
}

// # Events

// On registers handler for event, replacing any previous handler for it.
// The returned function removes the handler only while it is still the one
// registered for event; once replaced, it does nothing.
func (manager *Manager) On(event string, handler Handler) (cancel func()) {
	return manager.register(event, handlerEntry{fn: handler})
}

// Once registers handler for the next occurrence of event only.
func (manager *Manager) Once(event string, handler Handler) (cancel func()) {
	return manager.register(event, handlerEntry{fn: handler, once: true})
}

func (manager *Manager) register(event string, entry handlerEntry) func() {
	manager.mu.Lock()
	manager.nextHandle++
	entry.id = manager.nextHandle
	manager.handlers[event] = entry
	manager.mu.Unlock()

	return func() {
		manager.mu.Lock()
		defer manager.mu.Unlock()
		if current, ok := manager.handlers[event]; ok && current.id == entry.id {
			delete(manager.handlers, event)
		}
	}
}

// Off removes the handler for event.
func (manager *Manager) Off(event string) {
	manager.mu.Lock()
	delete(manager.handlers, event)
	manager.mu.Unlock()
}

/*
Emit sends event with payload.

When the channel is down the event is dropped; ack, if given, is called
synchronously with [ErrNotConnected]. With an ack the frame carries an id and
ack receives the server's answer, or [ErrNotConnected] if the connection
drops first. Emit never panics on a closed channel.
*/
func (manager *Manager) Emit(event string, payload any, ack AckFunc) {
	frame, err := EventFrame(event, payload)
	if err != nil {
		manager.logger.Warn("realtime_emit_encode_failed", slog.String("event", event), slog.Any("error", err))
		if ack != nil {
			ack(nil, err)
		}
		return
	}

	manager.mu.Lock()
	conn := manager.conn
	if manager.state != StateConnected || conn == nil {
		manager.mu.Unlock()

		manager.metrics.emitDropped()
		manager.logger.Debug("realtime_emit_dropped", slog.String("event", event))
		if ack != nil {
			ack(nil, ErrNotConnected)
		}
		return
	}
	if ack != nil {
		manager.nextAckID++
		frame.ID = strconv.FormatUint(manager.nextAckID, 10)
		manager.pending[frame.ID] = ack
	}
	manager.mu.Unlock()

	if err := conn.WriteFrame(context.Background(), frame); err != nil {
		manager.logger.Warn("realtime_emit_failed", slog.String("event", event), slog.Any("error", err))
		if ack != nil {
			if pending := manager.takeAck(frame.ID); pending != nil {
				pending(nil, err)
			}
		}
	}
}

func (manager *Manager) dispatch(frame Frame) {
	manager.mu.Lock()
	entry, ok := manager.handlers[frame.Event]
	if ok && entry.once {
		delete(manager.handlers, frame.Event)
	}
	manager.mu.Unlock()

	manager.metrics.eventReceived(frame.Event)
	if !ok {
		manager.logger.Debug("realtime_event_unhandled", slog.String("event", frame.Event))
		return
	}
	entry.fn(frame.Data)
}

func (manager *Manager) resolve(frame Frame) {
	if ack := manager.takeAck(frame.ID); ack != nil {
		ack(frame.Data, nil)
	}
}

func (manager *Manager) takeAck(id string) AckFunc {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	ack := manager.pending[id]
	delete(manager.pending, id)
	return ack
}

func failAcks(acks []AckFunc, err error) {
	for _, ack := range acks {
		ack(nil, err)
	}
}

// # Callbacks

// OnConnection registers fn to run after every successful connect.
func (manager *Manager) OnConnection(fn func()) (cancel func()) {
	return manager.onConnect.add(fn)
}

// OnDisconnection registers fn to run whenever an established connection ends.
func (manager *Manager) OnDisconnection(fn func(reason string)) (cancel func()) {
	return manager.onDisconnect.add(fn)
}

// OnStateChange registers fn to receive every status transition.
func (manager *Manager) OnStateChange(fn func(Status)) (cancel func()) {
	return manager.onState.add(fn)
}

func (manager *Manager) fireConnected() {
	for _, fn := range manager.onConnect.snapshot() {
		fn()
	}
}

func (manager *Manager) fireDisconnected(reason string) {
	for _, fn := range manager.onDisconnect.snapshot() {
		fn(reason)
	}
}

func (manager *Manager) emitState(status Status) {
	manager.metrics.setState(status.State)
	for _, fn := range manager.onState.snapshot() {
		fn(status)
	}
}

// registry is an ordered set of callbacks removable by the function add returns.
type registry[F any] struct {
	mu      sync.Mutex
	next    uint64
	entries []registryEntry[F]
}

type registryEntry[F any] struct {
	id uint64
	fn F
}

func (r *registry[F]) add(fn F) func() {
	r.mu.Lock()
	r.next++
	id := r.next
	r.entries = append(r.entries, registryEntry[F]{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, entry := range r.entries {
			if entry.id == id {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

func (r *registry[F]) snapshot() []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	fns := make([]F, len(r.entries))
	for i, entry := range r.entries {
		fns[i] = entry.fn
	}
	return fns
}
