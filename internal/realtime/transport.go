// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

// Conn is one established realtime connection.
//
// ReadFrame is called from a single goroutine. WriteFrame may be called
// concurrently with ReadFrame and with itself. Close unblocks a pending ReadFrame.
// A message that is not a valid frame yields a [*FrameError]; any other error
// means the connection is gone.
type Conn interface {
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(ctx context.Context, frame Frame) error
	Close(reason string) error
}

// Transport dials a [Conn]. The manager tries its transports in order and
// keeps the first that completes the handshake.
type Transport interface {
	Name() string
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// # WebSocket (preferred)

// WebSocketTransport is the low-latency transport built on coder/websocket.
type WebSocketTransport struct {
	// HTTPClient is used for the opening handshake; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Name implements [Transport].
func (WebSocketTransport) Name() string { return "websocket" }

// Dial implements [Transport].
func (transport WebSocketTransport) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, response, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient:   transport.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: []string{constants.RealtimeSubprotocol},
	})
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	return NewWebSocketConn(conn), nil
}

// NewWebSocketConn adapts an established coder/websocket connection, client
// or server side, to [Conn].
func NewWebSocketConn(conn *websocket.Conn) Conn {
	conn.SetReadLimit(constants.RealtimeMaxFrameBytes)
	return &webSocketConn{conn: conn}
}

type webSocketConn struct {
	conn *websocket.Conn
}

func (c *webSocketConn) ReadFrame(ctx context.Context) (Frame, error) {
	kind, data, err := c.conn.Read(ctx)
	if err != nil {
		return Frame{}, err
	}
	if kind != websocket.MessageText && kind != websocket.MessageBinary {
		return Frame{}, &FrameError{Err: fmt.Errorf("realtime: unsupported message type %v", kind)}
	}
	return DecodeFrame(data)
}

func (c *webSocketConn) WriteFrame(ctx context.Context, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RealtimeWriteTimeout)
	defer cancel()

	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *webSocketConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}
