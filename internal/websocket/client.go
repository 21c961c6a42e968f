// internal/websocket/client.go
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"impriartex-service/internal/domain/identity"
	wstypes "impriartex-service/internal/domain/websocket"
	"impriartex-service/internal/projection"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// ClientAuth holds the verified token the socket was opened with.
type ClientAuth struct {
	Identity  identity.Identity
	SessionID string
	ExpiresAt time.Time
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	identity  identity.Identity
	sessionID string
	expiresAt time.Time
	logger    *zap.Logger

	// Subscriptions - what channels this client is listening to
	subscriptions map[wstypes.ChannelType]bool
	subMutex      sync.RWMutex

	cache *projection.Cache

	sendMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		identity:  auth.Identity,
		sessionID: auth.SessionID,
		expiresAt: auth.ExpiresAt,
		logger: hub.logger.With(
			zap.String("identity_id", auth.Identity.ID.String()),
			zap.String("session_id", auth.SessionID),
		),
		subscriptions: map[wstypes.ChannelType]bool{
			wstypes.ChannelProjection: true,
			wstypes.ChannelSystem:     true,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	if hub.newProjection != nil {
		c.cache = hub.newProjection(auth.Identity, projection.Options{OnRefresh: c.pushSnapshot})
	}
	return c
}

func (c *Client) Identity() identity.Identity {
	return c.identity
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// Projection is the cache this session follows; nil when the hub has no factory.
func (c *Client) Projection() *projection.Cache {
	return c.cache
}

// Context is cancelled when the client closes.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) Subscribe(channel wstypes.ChannelType) bool {
	switch channel {
	case wstypes.ChannelProjection, wstypes.ChannelSystem:
	default:
		return false
	}

	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	c.subscriptions[channel] = true
	return true
}

func (c *Client) Unsubscribe(channel wstypes.ChannelType) {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	delete(c.subscriptions, channel)
}

func (c *Client) IsSubscribed(channel wstypes.ChannelType) bool {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	return c.subscriptions[channel]
}

// startProjection runs the initial load. A session without initial state is closed.
func (c *Client) startProjection() {
	if c.cache == nil {
		return
	}
	err := c.cache.Start(c.ctx)
	if err == nil {
		return
	}
	if errors.Is(err, projection.ErrClosed) || c.ctx.Err() != nil {
		return
	}

	c.logger.Warn("initial projection load failed", zap.Error(err))
	c.SendError("projection_unavailable", "Failed to load initial state", err.Error())
	c.hub.Unregister(c)
}

func (c *Client) pushSnapshot(snap *projection.Snapshot) {
	if !c.IsSubscribed(wstypes.ChannelProjection) {
		return
	}
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeSnapshot, snap))
}

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump handles outgoing messages to client. Messages queued before Close are
// still delivered, followed by a close frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	var expired <-chan time.Time
	if !c.expiresAt.IsZero() {
		timer := time.NewTimer(time.Until(c.expiresAt))
		defer timer.Stop()
		expired = timer.C
	}
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-expired:
			expired = nil
			c.SendMessage(wstypes.NewMessage(wstypes.EventTypeSessionRevoked, wstypes.SessionEventData{
				TokenID: c.sessionID,
				Reason:  "expired",
				Message: "Your session has expired",
			}))
			go c.hub.Unregister(c)
		}
	}
}

// handleMessage processes incoming messages from client
func (c *Client) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	handled, err := c.hub.HandleClientMessage(c.ctx, c, msg)
	if err != nil {
		c.SendError("handler_error", "Failed to process message", err.Error())
		return
	}
	if handled {
		return
	}

	switch msg.Type {
	case wstypes.EventTypePing:
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))

	case wstypes.EventTypeSubscribe:
		var req wstypes.SubscribeRequest
		if err := DecodeData(msg.Data, &req); err != nil {
			c.SendError("invalid_subscribe", "Invalid subscribe request", err.Error())
			return
		}
		accepted := make([]wstypes.ChannelType, 0, len(req.Channels))
		for _, channel := range req.Channels {
			if c.Subscribe(channel) {
				accepted = append(accepted, channel)
			}
		}
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeSubscribe, map[string]interface{}{
			"channels": accepted,
			"status":   "subscribed",
		}))

	case wstypes.EventTypeUnsubscribe:
		var req wstypes.UnsubscribeRequest
		if err := DecodeData(msg.Data, &req); err != nil {
			c.SendError("invalid_unsubscribe", "Invalid unsubscribe request", err.Error())
			return
		}
		for _, channel := range req.Channels {
			c.Unsubscribe(channel)
		}
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeUnsubscribe, map[string]interface{}{
			"channels": req.Channels,
			"status":   "unsubscribed",
		}))

	default:
		c.SendError("unsupported_event", "Unsupported event type", string(msg.Type))
	}
}

// SendMessage queues msg without blocking. A client whose buffer is full is dropped.
func (c *Client) SendMessage(msg *wstypes.WSMessage) bool {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal message", zap.String("type", string(msg.Type)), zap.Error(err))
		return false
	}

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("send buffer full, dropping client")
		go c.hub.Unregister(c)
		return false
	}
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message, details string) {
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close stops the projection and ends the write loop once queued messages are flushed.
// Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cache != nil {
			c.cache.Close()
		}
		c.cancel()

		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}
