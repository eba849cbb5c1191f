/*
Package space contains the core logic of the shared-space relay.

This file defines the Client struct, representing one live WebSocket
connection. It owns the connection's read and write loops and the buffered
outbound queue; all session state (lifecycle phase, display name, adminship)
is written exclusively by the Hub's run goroutine.
*/
package space

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hiroba/internal/pkg/errs"
	"hiroba/internal/pkg/logx"
	"hiroba/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxMessageSize = 8192

	// MaxContentBytes is the maximum allowed size (in bytes) of message content.
	MaxContentBytes = 2000

	// MaxDisplayNameBytes is the maximum allowed size (in bytes) of a display name.
	MaxDisplayNameBytes = 64

	// sendQueueSize is the per-connection outbound buffer. A connection that
	// cannot drain this many frames is considered dead and unregistered.
	sendQueueSize = 256
)

// messageRate bounds how fast one connection may send chat messages.
const (
	messageRate  = rate.Limit(5)
	messageBurst = 10
)

// sessionState is the lifecycle phase of one connection.
type sessionState int

const (
	// stateConnected: transport open, login not yet processed.
	stateConnected sessionState = iota

	// stateRegistered: login processed, Registry entry exists.
	stateRegistered

	// stateClosed: terminal. Registry entry removed, no further events
	// accepted for this connection's identifier.
	stateClosed
)

// Client represents one accepted duplex connection and its session state.
type Client struct {
	// id is the server-assigned connection identifier, never reused.
	id string

	// hub is the single sequencer this connection dispatches into.
	hub *Hub

	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// send is the buffered channel of frames waiting to go out.
	send chan []byte

	// msgLimiter bounds this connection's chat message rate.
	msgLimiter *rate.Limiter

	// structured logger with connection context.
	logger zerolog.Logger

	// The fields below are owned by the Hub's run goroutine. Nothing else
	// may read or write them.

	state       sessionState
	displayName string
	admin       bool
}

// NewClient constructs a Client for an accepted connection and assigns its
// connection identifier.
func NewClient(hub *Hub, wsConn *websocket.Conn) *Client {
	connectionID := randx.ConnectionID()

	clientLogger := logx.Logger().With().
		Str("connection_id", connectionID).
		Logger()

	return &Client{
		id:         connectionID,
		hub:        hub,
		conn:       wsConn,
		send:       make(chan []byte, sendQueueSize),
		msgLimiter: rate.NewLimiter(messageRate, messageBurst),
		logger:     clientLogger,
	}
}

// ID returns the server-assigned connection identifier.
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads frames from the WebSocket connection and dispatches them to
// the Hub. It handles heartbeats (Pong) and performs cleanup when the
// connection closes, which is the relay's only disconnect signal.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.dispatchInboundFrame(frameBytes)
	}
}

// cleanupOnDisconnect hands the connection back to the Hub and closes the
// transport when ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// dispatchInboundFrame parses a raw frame and queues it for the Hub. A frame
// that is not valid JSON is dropped for that single event only; the
// connection stays open.
func (c *Client) dispatchInboundFrame(frameBytes []byte) {
	var envelope Envelope
	if err := json.Unmarshal(frameBytes, &envelope); err != nil {
		c.logger.Warn().Err(err).
			Bytes("frame_bytes", frameBytes).
			Msg("Client sent invalid JSON")
		return
	}

	if envelope.Type == "" {
		c.logger.Warn().Msg("Client sent frame without event type")
		return
	}

	c.hub.Dispatch(c, envelope)
}

// WritePump writes frames from the send channel to the WebSocket connection
// and keeps the heartbeat alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send channel. Returns
// false when the WritePump loop should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic Ping to maintain the heartbeat. Returns
// false when the WritePump loop should terminate.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// enqueue queues an encoded event for this connection. The send is
// best-effort: a full queue drops the frame and reports failure so the Hub
// can unregister the connection.
func (c *Client) enqueue(eventType EventType, payload any) bool {
	frame, err := encodeEvent(eventType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Error encoding event for client")
		return true
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
		return false
	}
}

// enqueueError queues an error event describing the given failure.
func (c *Client) enqueueError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.enqueue(EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
