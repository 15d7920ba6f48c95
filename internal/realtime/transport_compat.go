// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

const compatHandshakeTimeout = 10 * time.Second

// CompatTransport is the fallback transport built on gorilla/websocket.
//
// It honours HTTP_PROXY/HTTPS_PROXY and never negotiates compression, which
// gets it through corporate proxies that break the preferred transport.
type CompatTransport struct {
	HandshakeTimeout time.Duration
}

// Name implements [Transport].
func (CompatTransport) Name() string { return "compat" }

// Dial implements [Transport].
func (transport CompatTransport) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	timeout := transport.HandshakeTimeout
	if timeout <= 0 {
		timeout = compatHandshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  timeout,
		Subprotocols:      []string{constants.RealtimeSubprotocol},
		EnableCompression: false,
	}

	conn, response, err := dialer.DialContext(ctx, url, header)
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("compat dial: %w", err)
	}

	conn.SetReadLimit(constants.RealtimeMaxFrameBytes)
	return &compatConn{conn: conn}, nil
}

// compatConn serializes writes; gorilla allows one concurrent writer.
type compatConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *compatConn) ReadFrame(ctx context.Context) (Frame, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return Frame{}, err
	}

	// gorilla reads are not context aware; an expired deadline unblocks them.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, err
	}
	return DecodeFrame(data)
}

func (c *compatConn) WriteFrame(ctx context.Context, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(constants.RealtimeWriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *compatConn) Close(reason string) error {
	c.writeMu.Lock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}
