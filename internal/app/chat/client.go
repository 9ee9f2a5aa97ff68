/*
Package chat contains the relay core: the connection registry, session handling, the frame
router with its binary upload sub-protocol, broadcast fan-out and the voice signaling relay.

This file defines the Client struct, representing an active WebSocket connection. It manages the
connection's read and write loops and the bounded outbound queue that broadcasts feed.
*/
package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client, sized for an upload plus metadata.
	maxFrameSize = MaxUploadSize + 64*1024

	// sendBufferSize leaves room for a full history replay plus live traffic.
	sendBufferSize = 512
)

// Client is one live connection. It is owned by the Hub between Register and Unregister.
type Client struct {
	hub *Hub

	// underlying WebSocket connection object. nil for in-process clients.
	conn *websocket.Conn

	// ID tags the connection in logs.
	ID string

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// mu guards closed so a late enqueue after Unregister is skipped instead of panicking.
	mu     sync.Mutex
	closed bool

	logger zerolog.Logger
}

// NewClient constructs a Client for conn. Call Hub.Register before starting the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, remoteIP string) *Client {
	id := randx.ConnectionID()

	return &Client{
		hub:  hub,
		conn: conn,
		ID:   id,
		send: make(chan []byte, sendBufferSize),
		logger: logx.Logger().With().
			Str("component", "client").
			Str("conn_id", id).
			Str("remote_ip", logx.AnonymizeIP(remoteIP)).
			Logger(),
	}
}

// ReadPump reads frames sequentially and hands each one to the hub router.
// It unregisters the client and closes the connection when the read loop ends.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.hub.HandleFrame(c, frame)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Client connection cleanup starting.")

	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump writes queued frames to the WebSocket connection and keeps the heartbeat going.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame pulled from the send channel.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// enqueue queues an encoded frame without blocking. It reports false when the frame was
// dropped because the queue is full or the client is already unregistered.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return false
	}
}

// closeSend closes the outbound queue once; WritePump then sends a close frame and exits.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendEvent marshals and queues a single event for this client.
func (c *Client) sendEvent(t MessageType, payload any) {
	frame, err := json.Marshal(Envelope{Type: t, Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Str("msg_type", string(t)).Msg("Error marshaling event for client")
		return
	}

	if !c.enqueue(frame) {
		c.hub.metrics.recordDropped(t)
	}
}

// SendError queues an `error` event. Errors that are not *errs.CustomError are logged and
// reported to the client as ErrUnknown without detail.
func (c *Client) SendError(err error) {
	c.sendEvent(TypeError, errorPayload(err, c.logger))
}

func errorPayload(err error, logger zerolog.Logger) ErrorPayload {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		logger.Error().Err(err).Msg("Unclassified error reported to client")
		customErr = errs.NewError(errs.ErrUnknown)
	}

	return ErrorPayload{Code: customErr.Code, Message: customErr.Message}
}
