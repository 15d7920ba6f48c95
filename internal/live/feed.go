// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package live binds named realtime feeds to local state.

A [Feed] registers its handlers on every connection of a shared channel,
optionally requests fresh data and keeps re-requesting it on a fixed
interval while connected. Data survives disconnects: consumers show the last
known value next to the channel status instead of flashing to empty.

# Event Names

A feed named "dashboard_stats" listens to:
  - dashboard_stats: replaces the data
  - dashboard_stats_error: records the server's error message

and, when configured, emits its request event (e.g. "request_dashboard_stats").

# Teardown

[Feed.Close] removes both handlers and the connection callback and stops the
refresh ticker. No goroutine or timer outlives it.
*/
package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/realtime"
)

// ErrorSuffix is appended to a feed's event name to form its error event.
const ErrorSuffix = constants.ErrorEventSuffix

// Channel is the part of [realtime.Manager] a feed needs.
type Channel interface {
	IsConnected() bool
	ConnectionID() string
	On(event string, handler realtime.Handler) (cancel func())
	Emit(event string, payload any, ack realtime.AckFunc)
	OnConnection(fn func()) (cancel func())
	OnDisconnection(fn func(reason string)) (cancel func())
}

var _ Channel = (*realtime.Manager)(nil)

// Options configures a feed.
type Options struct {
	// AutoRequest emits RequestEvent as soon as the channel connects.
	AutoRequest bool

	// RequestEvent asks the server to push the feed. Empty disables requests.
	RequestEvent string

	// RequestData is sent with every request.
	RequestData any

	// RefreshInterval re-emits RequestEvent periodically while connected.
	// Zero disables the refresh ticker.
	RefreshInterval time.Duration

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Snapshot is the observable state of a feed.
type Snapshot[T any] struct {
	Data      T         `json:"data"`
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	Connected bool      `json:"connected"`
}

// Feed keeps the latest payload of one realtime event.
type Feed[T any] struct {
	channel Channel
	event   string
	options Options
	clock   clockwork.Clock
	logger  *slog.Logger

	mu        sync.Mutex
	data      T
	loading   bool
	err       string
	updatedAt time.Time
	closed    bool

	// attachedTo is the connection id the handlers were last registered for.
	attachedTo  string
	cancelData  func()
	cancelError func()

	cancelConnect    func()
	cancelDisconnect func()

	ticker clockwork.Ticker
	stop   chan struct{}
	done   chan struct{}

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot[T])
	nextListener int
}

// Subscribe starts a feed for event on channel with initial as its data
// until the first payload arrives.
//
// Registering a second feed for the same event replaces the first one's
// handlers on the channel; only the newest feed receives payloads, and
// closing the older feed leaves the newer one attached.
func Subscribe[T any](channel Channel, event string, initial T, options Options) *Feed[T] {
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	feed := &Feed[T]{
		channel:   channel,
		event:     event,
		options:   options,
		clock:     options.Clock,
		logger:    options.Logger.With(slog.String("feed", event)),
		data:      initial,
		loading:   true,
		listeners: make(map[int]func(Snapshot[T])),
	}

	feed.cancelConnect = channel.OnConnection(feed.attach)
	feed.cancelDisconnect = channel.OnDisconnection(func(string) {
		feed.notify()
	})

	if options.RefreshInterval > 0 && options.RequestEvent != "" {
		feed.ticker = feed.clock.NewTicker(options.RefreshInterval)
		feed.stop = make(chan struct{})
		feed.done = make(chan struct{})
		go feed.refreshLoop()
	}

	// A connection that fired the callback above is not attached twice.
	feed.attach()

	return feed
}

// # Queries

// Event returns the feed's event name.
func (feed *Feed[T]) Event() string { return feed.event }

// Snapshot returns the current state.
func (feed *Feed[T]) Snapshot() Snapshot[T] {
	feed.mu.Lock()
	defer feed.mu.Unlock()
	return feed.snapshotLocked()
}

func (feed *Feed[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Data:      feed.data,
		Loading:   feed.loading,
		Error:     feed.err,
		UpdatedAt: feed.updatedAt,
		Connected: feed.channel.IsConnected(),
	}
}

// OnChange registers fn to receive every snapshot change. The returned
// function unregisters it.
func (feed *Feed[T]) OnChange(fn func(Snapshot[T])) (cancel func()) {
	feed.listenersMu.Lock()
	id := feed.nextListener
	feed.nextListener++
	feed.listeners[id] = fn
	feed.listenersMu.Unlock()

	return func() {
		feed.listenersMu.Lock()
		delete(feed.listeners, id)
		feed.listenersMu.Unlock()
	}
}

// # Actions

// Refresh re-requests the feed once. It is a no-op when the channel is down,
// the feed has no request event or the feed is closed.
func (feed *Feed[T]) Refresh() {
	if feed.options.RequestEvent == "" || !feed.channel.IsConnected() {
		return
	}

	feed.mu.Lock()
	if feed.closed {
		feed.mu.Unlock()
		return
	}
	feed.loading = true
	feed.mu.Unlock()

	feed.notify()
	feed.request()
}

// Close tears the feed down. It is idempotent and returns once the refresh
// goroutine has exited.
func (feed *Feed[T]) Close() {
	feed.mu.Lock()
	if feed.closed {
		feed.mu.Unlock()
		return
	}
	feed.closed = true
	cancelData, cancelError := feed.cancelData, feed.cancelError
	feed.cancelData, feed.cancelError = nil, nil
	feed.mu.Unlock()

	feed.cancelConnect()
	feed.cancelDisconnect()
	if cancelData != nil {
		cancelData()
		cancelError()
	}

	if feed.ticker != nil {
		feed.ticker.Stop()
		close(feed.stop)
		<-feed.done
	}

	feed.listenersMu.Lock()
	clear(feed.listeners)
	feed.listenersMu.Unlock()

	feed.logger.Debug("live_feed_closed")
}

// # Internals

// attach registers the handlers for the current connection, at most once
// per connection id.
func (feed *Feed[T]) attach() {
	feed.mu.Lock()
	connectionID := feed.channel.ConnectionID()
	if feed.closed || connectionID == "" || connectionID == feed.attachedTo {
		feed.mu.Unlock()
		return
	}
	feed.attachedTo = connectionID
	feed.mu.Unlock()

	cancelData := feed.channel.On(feed.event, feed.handleData)
	cancelError := feed.channel.On(feed.event+ErrorSuffix, feed.handleError)

	feed.mu.Lock()
	if feed.closed {
		feed.mu.Unlock()
		cancelData()
		cancelError()
		return
	}
	feed.cancelData, feed.cancelError = cancelData, cancelError
	feed.mu.Unlock()

	feed.logger.Debug("live_feed_attached", slog.String("connection_id", connectionID))

	if feed.options.AutoRequest {
		feed.request()
	}
	feed.notify()
}

func (feed *Feed[T]) request() {
	if feed.options.RequestEvent == "" {
		return
	}
	feed.channel.Emit(feed.options.RequestEvent, feed.options.RequestData, nil)
}

func (feed *Feed[T]) refreshLoop() {
	defer close(feed.done)

	for {
		select {
		case <-feed.stop:
			return
		case <-feed.ticker.Chan():
			// A tick while disconnected is skipped, not queued.
			if feed.channel.IsConnected() {
				feed.request()
			}
		}
	}
}

func (feed *Feed[T]) handleData(data json.RawMessage) {
	var value T
	decodeErr := json.Unmarshal(data, &value)

	feed.mu.Lock()
	if feed.closed {
		feed.mu.Unlock()
		return
	}
	feed.loading = false
	if decodeErr != nil {
		feed.err = fmt.Sprintf("decode %s: %v", feed.event, decodeErr)
	} else {
		feed.data = value
		feed.err = ""
		feed.updatedAt = feed.clock.Now()
	}
	feed.mu.Unlock()

	if decodeErr != nil {
		feed.logger.Warn("live_feed_decode_failed", slog.Any("error", decodeErr))
	}
	feed.notify()
}

func (feed *Feed[T]) handleError(data json.RawMessage) {
	message := errorMessage(data)

	feed.mu.Lock()
	if feed.closed {
		feed.mu.Unlock()
		return
	}
	feed.loading = false
	feed.err = message
	feed.mu.Unlock()

	feed.logger.Warn("live_feed_server_error", slog.String("message", message))
	feed.notify()
}

func (feed *Feed[T]) notify() {
	feed.mu.Lock()
	if feed.closed {
		feed.mu.Unlock()
		return
	}
	snapshot := feed.snapshotLocked()
	feed.mu.Unlock()

	feed.listenersMu.Lock()
	listeners := make([]func(Snapshot[T]), 0, len(feed.listeners))
	for _, fn := range feed.listeners {
		listeners = append(listeners, fn)
	}
	feed.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// errorMessage accepts "text", {"message": "..."} or {"error": "..."}.
func errorMessage(data json.RawMessage) string {
	var text string
	if err := json.Unmarshal(data, &text); err == nil && text != "" {
		return text
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}

	if len(data) == 0 || string(data) == "null" {
		return "unknown error"
	}
	return string(data)
}
