package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	outboundBuffer = 16
)

// Client is one websocket connection of an authenticated user. A user may
// hold several connections at once; id tells them apart in logs.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string
	userID   uint
	username string
	outbound chan Message
	logger   *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, username string, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		hub:      hub,
		conn:     conn,
		id:       id,
		userID:   userID,
		username: username,
		outbound: make(chan Message, outboundBuffer),
		logger:   logger.With(zap.Uint("user_id", userID), zap.String("client_id", id)),
	}
}

// send queues a message for this connection only.
func (c *Client) send(msg Message) {
	select {
	case c.outbound <- msg:
	default:
		c.logger.Warn("dropping event; client buffer full", zap.String("event", msg.Event))
	}
}

func (c *Client) sendError(text string) {
	c.send(Message{Event: EventError, Data: errorPayload{Msg: text}})
}

// readPump consumes inbound frames and hands them to the dispatcher. It owns
// the connection's read side; returning unregisters the client.
func (c *Client) readPump(dispatch func(*Client, Envelope)) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Event == "" {
			c.sendError("Invalid message data.")
			continue
		}
		dispatch(c, envelope)
	}
}

// writePump flushes queued messages and keeps the connection alive with
// pings. It owns the connection's write side.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
