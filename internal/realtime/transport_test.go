// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/realtime"
)

// echoServer speaks the realtime protocol over a real websocket: it accepts
// token "T", acks every event carrying an id and answers
// request_dashboard_stats with a dashboard_stats push, preceded by frames the
// client does not know.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{constants.RealtimeSubprotocol},
		})
		if err != nil {
			return
		}
		conn := realtime.NewWebSocketConn(socket)
		defer conn.Close("bye")

		ctx := r.Context()
		hello, err := conn.ReadFrame(ctx)
		if err != nil || hello.Type != realtime.FrameConnect {
			return
		}
		var request realtime.ConnectRequest
		_ = json.Unmarshal(hello.Data, &request)
		if request.Auth.Token != "T" {
			_ = conn.WriteFrame(ctx, realtime.Frame{Type: realtime.FrameConnectError, Data: mustJSON(realtime.ConnectRejected{Message: "invalid token"})})
			return
		}
		if err := conn.WriteFrame(ctx, realtime.Frame{Type: realtime.FrameConnect, Data: mustJSON(realtime.ConnectAccepted{SID: "ws-1"})}); err != nil {
			return
		}

		for {
			frame, err := conn.ReadFrame(ctx)
			if err != nil {
				return
			}
			if frame.ID != "" {
				_ = conn.WriteFrame(ctx, realtime.Frame{Type: realtime.FrameAck, ID: frame.ID, Data: frame.Data})
			}
			if frame.Event == constants.EventRequestDashboardStats {
				_ = socket.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`))
				_ = socket.Write(ctx, websocket.MessageText, []byte(`{"type":"event","data":{}}`))
				push, _ := realtime.EventFrame(constants.EventDashboardStats, map[string]int{"total_leads": 12})
				_ = conn.WriteFrame(ctx, push)
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTransports_RealWebSocket(t *testing.T) {
	transports := []realtime.Transport{realtime.WebSocketTransport{}, realtime.CompatTransport{HandshakeTimeout: time.Second}}

	for _, transport := range transports {
		t.Run(transport.Name(), func(t *testing.T) {
			server := echoServer(t)

			manager, err := realtime.NewManager(realtime.Options{
				URL:        server.URL,
				Transports: []realtime.Transport{transport},
				Reconnect:  &realtime.ReconnectPolicy{},
				Tokens:     staticToken("T"),
				Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			})
			require.NoError(t, err)
			t.Cleanup(manager.Disconnect)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			handle, err := manager.Connect(ctx)
			require.NoError(t, err)
			assert.Equal(t, "ws-1", handle.ID())
			assert.Equal(t, transport.Name(), handle.Transport())

			stats := make(chan json.RawMessage, 1)
			manager.On(constants.EventDashboardStats, func(data json.RawMessage) { stats <- data })

			acks := make(chan json.RawMessage, 1)
			manager.Emit(constants.EventRequestDashboardStats, map[string]string{"scope": "all"}, func(data json.RawMessage, err error) {
				assert.NoError(t, err)
				acks <- data
			})

			select {
			case data := <-acks:
				assert.JSONEq(t, `{"scope":"all"}`, string(data))
			case <-ctx.Done():
				t.Fatal("no ack")
			}

			select {
			case data := <-stats:
				assert.JSONEq(t, `{"total_leads":12}`, string(data))
			case <-ctx.Done():
				t.Fatal("no dashboard_stats push")
			}
			assert.True(t, manager.IsConnected(), "unknown frames must not drop the connection")
			assert.Equal(t, "ws-1", manager.ConnectionID())
		})
	}
}

func TestTransports_RejectedToken(t *testing.T) {
	server := echoServer(t)

	manager, err := realtime.NewManager(realtime.Options{
		URL:        server.URL,
		Transports: []realtime.Transport{realtime.WebSocketTransport{}},
		Tokens:     staticToken("stale"),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(manager.Disconnect)

	_, err = manager.Connect(context.Background())

	var rejected *realtime.HandshakeError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "invalid token", rejected.Message)
	assert.Equal(t, realtime.StateFailed, manager.Status().State)
}
