// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package hub is the server side of the realtime channel in the development
backend.

It accepts websocket connections on /realtime, authenticates the connect
frame with the same tokens as the REST API, answers feed requests and
pushes lead changes and periodic dashboard figures to every connected client.

# Protocol

	client: {"type":"connect","data":{"auth":{"token":"..."}}}
	server: {"type":"connect","data":{"sid":"01J..."}}      or connect_error
	client: {"type":"event","event":"request_dashboard_stats","id":"3"}
	server: {"type":"event","event":"dashboard_stats","data":{...}}
	server: {"type":"ack","id":"3","data":{...}}
*/
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/mockapi/leads"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/platform/middleware"
	"github.com/taibuivan/leadcrm/internal/platform/sec"
	"github.com/taibuivan/leadcrm/internal/realtime"
)

// sendQueueSize bounds the frames waiting for a slow client.
const sendQueueSize = 64


// Options configures a [Hub].
type Options struct {
	// Verifier checks the token of the connect frame.
	Verifier middleware.TokenVerifier

	// Leads answers feed requests.
	Leads *leads.Service

	// StatsInterval is the period of unsolicited dashboard_stats pushes; 0 disables them.
	StatsInterval time.Duration

	// OriginPatterns are the browser origins allowed besides the request host.
	OriginPatterns []string

	Clock   clockwork.Clock
	Metrics *Metrics
	Logger  *slog.Logger
}

// Hub tracks the connected realtime clients.
type Hub struct {
	verifier       middleware.TokenVerifier
	leads          *leads.Service
	statsInterval  time.Duration
	originPatterns []string
	clock          clockwork.Clock
	metrics        *Metrics
	logger         *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

// client is one authenticated connection.
type client struct {
	sid    string
	claims *sec.AuthClaims
	conn   realtime.Conn
	send   chan realtime.Frame
	done   chan struct{}
}

// canSee reports whether a lead event concerns this operator.
func (c *client) canSee(lead crm.Lead) bool {
	return crm.Role(c.claims.Role).AtLeast(crm.RoleSuperAdmin) || lead.AssignedTo == c.claims.UserID
}

// New constructs a [Hub]. Register [Hub.LeadChanged] with the lead service
// and start [Hub.Run] for periodic pushes.
func New(options Options) *Hub {
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}
	if options.Metrics == nil {
		options.Metrics = NewMetrics(nil)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Hub{
		verifier:       options.Verifier,
		leads:          options.Leads,
		statsInterval:  options.StatsInterval,
		originPatterns: options.OriginPatterns,
		clock:          options.Clock,
		metrics:        options.Metrics,
		logger:         options.Logger.With(slog.String("component", "hub")),
		clients:        make(map[string]*client),
	}
}

// Clients returns the number of connected clients.
func (hub *Hub) Clients() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// # Connection Lifecycle

/*
GET /realtime.

Description: Upgrades to a websocket and runs the realtime protocol until
either side closes. Authentication happens inside the protocol, so a bad
token is answered with a connect_error frame rather than an HTTP 401.
*/
func (hub *Hub) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	socket, err := websocket.Accept(writer, request, &websocket.AcceptOptions{
		Subprotocols:   []string{constants.RealtimeSubprotocol},
		OriginPatterns: hub.originPatterns,
	})
	if err != nil {
		hub.logger.Debug("hub_upgrade_failed", slog.Any("error", err))
		return
	}
	conn := realtime.NewWebSocketConn(socket)

	// ── 1. Handshake ──────────────────────────────────────────────────────

	current, err := hub.handshake(request.Context(), conn, request.Header.Get(constants.HeaderAuthorization))
	if err != nil {
		hub.metrics.Handshakes("rejected").Inc()
		hub.logger.Info("hub_handshake_rejected", slog.Any("error", err))
		_ = conn.Close("handshake rejected")
		return
	}

	// ── 2. Registration ───────────────────────────────────────────────────

	if !hub.register(current) {
		_ = current.conn.WriteFrame(request.Context(), disconnectFrame("server shutting down"))
		_ = current.conn.Close("server shutting down")
		return
	}
	hub.metrics.Handshakes("accepted").Inc()
	hub.logger.Info("hub_client_connected",
		slog.String("sid", current.sid),
		slog.String("user_id", current.claims.UserID),
	)

	go hub.writeLoop(current)

	// ── 3. Read Loop ──────────────────────────────────────────────────────

	hub.readLoop(request.Context(), current)

	hub.remove(current)
	<-current.done
	hub.logger.Info("hub_client_disconnected", slog.String("sid", current.sid))
}

// handshake reads the connect frame and answers it.
func (hub *Hub) handshake(ctx context.Context, conn realtime.Conn, authHeader string) (*client, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.HandshakeTimeout)
	defer cancel()

	frame, err := conn.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	if frame.Type != realtime.FrameConnect {
		_ = conn.WriteFrame(ctx, rejectFrame("expected connect frame"))
		return nil, errors.New("hub: first frame was " + string(frame.Type))
	}

	var request realtime.ConnectRequest
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &request); err != nil {
			_ = conn.WriteFrame(ctx, rejectFrame("malformed connect frame"))
			return nil, err
		}
	}

	token := request.Auth.Token
	if token == "" {
		token, _ = middleware.BearerToken(authHeader)
	}
	if token == "" {
		_ = conn.WriteFrame(ctx, rejectFrame("authentication required"))
		return nil, errors.New("hub: no token")
	}

	claims, err := hub.verifier.VerifyToken(token)
	if err != nil {
		_ = conn.WriteFrame(ctx, rejectFrame("invalid token"))
		return nil, err
	}

	sid := ulid.Make().String()
	accepted, err := json.Marshal(realtime.ConnectAccepted{SID: sid})
	if err != nil {
		return nil, err
	}
	if err := conn.WriteFrame(ctx, realtime.Frame{Type: realtime.FrameConnect, Data: accepted}); err != nil {
		return nil, err
	}

	return &client{
		sid:    sid,
		claims: claims,
		conn:   conn,
		send:   make(chan realtime.Frame, sendQueueSize),
		done:   make(chan struct{}),
	}, nil
}

func (hub *Hub) register(current *client) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		return false
	}
	hub.clients[current.sid] = current
	hub.metrics.clients.Inc()
	return true
}

// remove forgets current and closes its queue. Idempotent.
func (hub *Hub) remove(current *client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.removeLocked(current)
}

func (hub *Hub) removeLocked(current *client) {
	if hub.clients[current.sid] != current {
		return
	}
	delete(hub.clients, current.sid)
	close(current.send)
	hub.metrics.clients.Dec()
}

// writeLoop drains the queue, then closes the connection, which unblocks the reader.
func (hub *Hub) writeLoop(current *client) {
	defer close(current.done)

	for frame := range current.send {
		if err := current.conn.WriteFrame(context.Background(), frame); err != nil {
			hub.logger.Debug("hub_write_failed", slog.String("sid", current.sid), slog.Any("error", err))
			hub.remove(current)
			for range current.send {
			}
			break
		}
	}
	_ = current.conn.Close("bye")
}

func (hub *Hub) readLoop(ctx context.Context, current *client) {
	for {
		frame, err := current.conn.ReadFrame(ctx)
		var malformed *realtime.FrameError
		if errors.As(err, &malformed) {
			hub.logger.Debug("hub_frame_skipped", slog.String("sid", current.sid), slog.Any("error", err))
			continue
		}
		if err != nil {
			return
		}
		if frame.Type != realtime.FrameEvent {
			continue
		}
		hub.handle(ctx, current, frame)
	}
}

// # Requests

// handle answers one client event. Unknown events are only acknowledged.
func (hub *Hub) handle(ctx context.Context, current *client, frame realtime.Frame) {
	var (
		reply any
		err   error
		event string
	)

	switch frame.Event {
	case constants.EventRequestDashboardStats:
		event = constants.EventDashboardStats
		reply, err = hub.leads.DashboardStats(ctx)

	case constants.EventRequestRecentLeads:
		event = constants.EventRecentLeads
		reply, err = hub.leads.RecentLeads(ctx)

	default:
		hub.logger.Debug("hub_event_ignored", slog.String("sid", current.sid), slog.String("event", frame.Event))
	}

	if event != "" {
		if err != nil {
			hub.logger.Warn("hub_request_failed", slog.String("event", frame.Event), slog.Any("error", err))
			event += constants.ErrorEventSuffix
			reply = map[string]string{constants.FieldMessage: err.Error()}
		}
		hub.enqueueEvent(current, event, reply)
	}

	if frame.ID != "" {
		ack := realtime.Frame{Type: realtime.FrameAck, ID: frame.ID}
		if reply != nil {
			data, marshalErr := json.Marshal(reply)
			if marshalErr == nil {
				ack.Data = data
			}
		}
		hub.enqueue(current, ack)
	}
}

// # Pushes

// Broadcast sends event to every connected client.
func (hub *Hub) Broadcast(event string, payload any) {
	hub.broadcastTo(event, payload, func(*client) bool { return true })
}

// LeadChanged pushes a lead mutation, then the refreshed feeds. Its
// signature matches [leads.ChangeFunc].
func (hub *Hub) LeadChanged(ctx context.Context, event string, lead crm.Lead) {
	hub.broadcastTo(event, lead, func(current *client) bool { return current.canSee(lead) })
	hub.pushFeeds(ctx)
}

// Run pushes dashboard figures every StatsInterval until ctx is done.
func (hub *Hub) Run(ctx context.Context) {
	if hub.statsInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := hub.clock.NewTicker(hub.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if hub.Clients() == 0 {
				continue
			}
			stats, err := hub.leads.DashboardStats(ctx)
			if err != nil {
				hub.logger.Warn("hub_stats_push_failed", slog.Any("error", err))
				continue
			}
			hub.Broadcast(constants.EventDashboardStats, stats)
		}
	}
}

func (hub *Hub) pushFeeds(ctx context.Context) {
	if stats, err := hub.leads.DashboardStats(ctx); err == nil {
		hub.Broadcast(constants.EventDashboardStats, stats)
	} else {
		hub.logger.Warn("hub_stats_push_failed", slog.Any("error", err))
	}

	if recent, err := hub.leads.RecentLeads(ctx); err == nil {
		hub.Broadcast(constants.EventRecentLeads, recent)
	} else {
		hub.logger.Warn("hub_recent_push_failed", slog.Any("error", err))
	}
}

func (hub *Hub) broadcastTo(event string, payload any, include func(*client) bool) {
	frame, err := realtime.EventFrame(event, payload)
	if err != nil {
		hub.logger.Error("hub_encode_failed", slog.String("event", event), slog.Any("error", err))
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, current := range hub.clients {
		if include(current) {
			hub.metrics.Pushes(event).Inc()
			hub.enqueueLocked(current, frame)
		}
	}
}

func (hub *Hub) enqueueEvent(current *client, event string, payload any) {
	frame, err := realtime.EventFrame(event, payload)
	if err != nil {
		hub.logger.Error("hub_encode_failed", slog.String("event", event), slog.Any("error", err))
		return
	}
	hub.metrics.Pushes(event).Inc()
	hub.enqueue(current, frame)
}

func (hub *Hub) enqueue(current *client, frame realtime.Frame) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.enqueueLocked(current, frame)
}

// enqueueLocked never blocks; a client whose queue is full is dropped.
func (hub *Hub) enqueueLocked(current *client, frame realtime.Frame) {
	if hub.clients[current.sid] != current {
		return
	}
	select {
	case current.send <- frame:
	default:
		hub.metrics.dropped.Inc()
		hub.logger.Warn("hub_slow_client_dropped", slog.String("sid", current.sid))
		hub.removeLocked(current)
	}
}

// # Shutdown

// Shutdown sends a disconnect frame to every client and waits for their
// queues to flush or ctx to end. Later handshakes are refused.
func (hub *Hub) Shutdown(ctx context.Context) error {
	hub.mu.Lock()
	hub.closed = true
	pending := make([]*client, 0, len(hub.clients))
	for _, current := range hub.clients {
		select {
		case current.send <- disconnectFrame("server shutting down"):
		default:
		}
		pending = append(pending, current)
		hub.removeLocked(current)
	}
	hub.mu.Unlock()

	for _, current := range pending {
		select {
		case <-current.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	hub.logger.Info("hub_shutdown", slog.Int("clients", len(pending)))
	return nil
}

func rejectFrame(message string) realtime.Frame {
	data, _ := json.Marshal(realtime.ConnectRejected{Message: message})
	return realtime.Frame{Type: realtime.FrameConnectError, Data: data}
}

func disconnectFrame(message string) realtime.Frame {
	data, _ := json.Marshal(realtime.ConnectRejected{Message: message})
	return realtime.Frame{Type: realtime.FrameDisconnect, Data: data}
}
