// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime

import "errors"

var (
	// ErrNotConnected is passed to an ack callback when the frame could not be
	// delivered because the channel is down.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrConnectAborted is returned by a connect attempt cancelled by [Manager.Disconnect].
	ErrConnectAborted = errors.New("realtime: connect aborted")

	// ErrNoTransport is returned when the manager has no transport to dial with.
	ErrNoTransport = errors.New("realtime: no transport configured")
)

// HandshakeError is returned when the server answers the handshake with
// connect_error, typically because the bearer token was refused.
//
// A rejected handshake is not retried automatically; the token must change first.
type HandshakeError struct {
	Message string
}

func (e *HandshakeError) Error() string {
	return "realtime: handshake rejected: " + e.Message
}

// FrameError reports a message that arrived intact but is not a frame this
// client understands. The connection itself is still usable.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return e.Err.Error() }

func (e *FrameError) Unwrap() error { return e.Err }
