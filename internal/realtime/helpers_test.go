// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/realtime"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type staticToken string

func (token staticToken) Token(context.Context) (string, error) { return string(token), nil }

// fakeServer scripts the far end of a [fakeTransport].
type fakeServer struct {
	mu        sync.Mutex
	failDials int
	reject    string
	dialGate  chan struct{}
	dials     int
	conns     []*fakeConn
}

func (server *fakeServer) transport() realtime.Transport { return fakeTransport{server: server} }

func (server *fakeServer) dialCount() int {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.dials
}

func (server *fakeServer) setFailDials(n int) {
	server.mu.Lock()
	server.failDials = n
	server.mu.Unlock()
}

// last returns the most recent connection.
func (server *fakeServer) last() *fakeConn {
	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.conns) == 0 {
		return nil
	}
	return server.conns[len(server.conns)-1]
}

type fakeTransport struct{ server *fakeServer }

func (fakeTransport) Name() string { return "fake" }

func (transport fakeTransport) Dial(ctx context.Context, _ string, header http.Header) (realtime.Conn, error) {
	server := transport.server

	server.mu.Lock()
	server.dials++
	gate := server.dialGate
	fail := server.failDials > 0
	if fail {
		server.failDials--
	}
	server.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("connection refused")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	conn := &fakeConn{
		sid:     fmt.Sprintf("sid-%d", len(server.conns)+1),
		reject:  server.reject,
		header:  header.Clone(),
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
	server.conns = append(server.conns, conn)
	return conn, nil
}

// failingTransport never connects.
type failingTransport struct{}

func (failingTransport) Name() string { return "broken" }

func (failingTransport) Dial(context.Context, string, http.Header) (realtime.Conn, error) {
	return nil, errors.New("blocked by proxy")
}

// fakeConn answers the handshake itself and records everything else.
type fakeConn struct {
	sid    string
	reject string
	header http.Header

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	token string
	sent  []realtime.Frame
}

func (conn *fakeConn) ReadFrame(ctx context.Context) (realtime.Frame, error) {
	select {
	case <-conn.closed:
		return realtime.Frame{}, io.EOF
	default:
	}

	select {
	case data := <-conn.inbound:
		return realtime.DecodeFrame(data)
	case <-conn.closed:
		return realtime.Frame{}, io.EOF
	case <-ctx.Done():
		return realtime.Frame{}, ctx.Err()
	}
}

func (conn *fakeConn) WriteFrame(_ context.Context, frame realtime.Frame) error {
	select {
	case <-conn.closed:
		return net.ErrClosed
	default:
	}

	if frame.Type == realtime.FrameConnect {
		var request realtime.ConnectRequest
		_ = json.Unmarshal(frame.Data, &request)

		conn.mu.Lock()
		conn.token = request.Auth.Token
		conn.mu.Unlock()

		if conn.reject != "" {
			conn.push(realtime.Frame{Type: realtime.FrameConnectError, Data: mustJSON(realtime.ConnectRejected{Message: conn.reject})})
		} else {
			conn.push(realtime.Frame{Type: realtime.FrameConnect, Data: mustJSON(realtime.ConnectAccepted{SID: conn.sid})})
		}
		return nil
	}

	conn.mu.Lock()
	conn.sent = append(conn.sent, frame)
	conn.mu.Unlock()
	return nil
}

func (conn *fakeConn) Close(string) error {
	conn.closeOnce.Do(func() { close(conn.closed) })
	return nil
}

// push delivers a frame from the server.
func (conn *fakeConn) push(frame realtime.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		panic(err)
	}
	conn.inbound <- data
}

// pushRaw delivers a message exactly as written.
func (conn *fakeConn) pushRaw(message string) { conn.inbound <- []byte(message) }

// pushEvent delivers a server event.
func (conn *fakeConn) pushEvent(event string, data any) {
	conn.push(realtime.Frame{Type: realtime.FrameEvent, Event: event, Data: mustJSON(data)})
}

// drop simulates a network loss.
func (conn *fakeConn) drop() { _ = conn.Close("network") }

func (conn *fakeConn) handshakeToken() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.token
}

// emitted returns the frames the client sent for event.
func (conn *fakeConn) emitted(event string) []realtime.Frame {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	var frames []realtime.Frame
	for _, frame := range conn.sent {
		if frame.Event == event {
			frames = append(frames, frame)
		}
	}
	return frames
}

func mustJSON(value any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return data
}

func testPolicy() *realtime.ReconnectPolicy {
	return &realtime.ReconnectPolicy{
		Enabled:     true,
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
	}
}

func newManager(t *testing.T, clock clockwork.Clock, policy *realtime.ReconnectPolicy, transports ...realtime.Transport) *realtime.Manager {
	t.Helper()

	manager, err := realtime.NewManager(realtime.Options{
		URL:            "ws://crm.test/realtime",
		Transports:     transports,
		ConnectTimeout: time.Second,
		Reconnect:      policy,
		Tokens:         staticToken("T"),
		Clock:          clock,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(manager.Disconnect)
	return manager
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	require.Eventually(t, condition, 2*time.Second, 5*time.Millisecond)
}
