// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType discriminates the frames of the realtime protocol.
type FrameType string

const (
	// FrameConnect opens a session. Client to server it carries [ConnectRequest];
	// server to client it carries [ConnectAccepted].
	FrameConnect FrameType = "connect"

	// FrameConnectError rejects a handshake with [ConnectRejected].
	FrameConnectError FrameType = "connect_error"

	// FrameEvent carries a named application event in either direction.
	FrameEvent FrameType = "event"

	// FrameAck answers an event that carried an ID.
	FrameAck FrameType = "ack"

	// FrameDisconnect announces a server-initiated close.
	FrameDisconnect FrameType = "disconnect"
)

// Frame is the JSON envelope of every message on the wire:
//
//	{"type":"event","event":"dashboard_stats","data":{...}}
//	{"type":"event","event":"request_recent_leads","id":"7","data":{"limit":10}}
//	{"type":"ack","id":"7","data":{...}}
type Frame struct {
	Type  FrameType       `json:"type"`
	Event string          `json:"event,omitempty"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectRequest is the client handshake payload.
type ConnectRequest struct {
	Auth ConnectAuth `json:"auth"`
}

// ConnectAuth carries the bearer token for server-side authorization.
type ConnectAuth struct {
	Token string `json:"token"`
}

// ConnectAccepted is the server's handshake answer.
type ConnectAccepted struct {
	SID string `json:"sid"`
}

// ConnectRejected is the payload of [FrameConnectError] and [FrameDisconnect].
type ConnectRejected struct {
	Message string `json:"message"`
}

// Validate checks the fields each frame type requires.
func (frame Frame) Validate() error {
	switch frame.Type {
	case FrameConnect, FrameConnectError, FrameDisconnect:
		return nil
	case FrameEvent:
		if frame.Event == "" {
			return errors.New("realtime: event frame without event name")
		}
		return nil
	case FrameAck:
		if frame.ID == "" {
			return errors.New("realtime: ack frame without id")
		}
		return nil
	}
	return fmt.Errorf("realtime: unknown frame type %q", frame.Type)
}

// DecodeFrame parses and validates one wire message. Failures are returned
// as [*FrameError].
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, &FrameError{Err: fmt.Errorf("realtime: bad frame: %w", err)}
	}
	if err := frame.Validate(); err != nil {
		return Frame{}, &FrameError{Err: err}
	}
	return frame, nil
}

// EventFrame builds an event frame, encoding payload as its data.
// A nil payload produces a frame without data.
func EventFrame(event string, payload any) (Frame, error) {
	frame := Frame{Type: FrameEvent, Event: event}
	if payload == nil {
		return frame, nil
	}
	data, err := encodePayload(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	frame.Data = data
	return frame, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
