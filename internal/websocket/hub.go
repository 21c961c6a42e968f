// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"impriartex-service/internal/domain/identity"
	wstypes "impriartex-service/internal/domain/websocket"
	"impriartex-service/internal/metrics"
	"impriartex-service/internal/projection"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectionFactory builds the projection cache a connected session follows.
type ProjectionFactory func(actor identity.Identity, opts projection.Options) *projection.Cache

type Hub struct {
	// Registered clients by identity ID
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	newProjection ProjectionFactory
	logger        *zap.Logger

	done chan struct{}
}

type BroadcastMessage struct {
	IdentityIDs []uuid.UUID
	Channel     wstypes.ChannelType
	Message     *wstypes.WSMessage
}

func NewHub(newProjection ProjectionFactory, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[uuid.UUID]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		newProjection:   newProjection,
		logger:          logger,
		done:            make(chan struct{}),
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage processes a message from a client using registered handlers.
// It reports whether a handler claimed the message.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Unregister removes client from the hub. After the hub stopped the client is closed
// directly.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

// Done is closed when Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	id := client.identity.ID
	if h.clients[id] == nil {
		h.clients[id] = make(map[*Client]bool)
	}
	h.clients[id][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	metrics.ConnectedSessions.Inc()
	h.logger.Info("websocket client connected",
		zap.String("identity_id", id.String()),
		zap.String("session_id", client.sessionID),
		zap.String("role", string(client.identity.Role)),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"identity_id": id,
		"session_id":  client.sessionID,
		"role":        client.identity.Role,
		"full_name":   client.identity.FullName,
	}))

	go client.startProjection()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(client) {
		h.logger.Info("websocket client disconnected",
			zap.String("identity_id", client.identity.ID.String()),
			zap.String("session_id", client.sessionID),
			zap.Int("total", h.totalClients()),
		)
	}
	client.Close()
}

func (h *Hub) removeLocked(client *Client) bool {
	clients, ok := h.clients[client.identity.ID]
	if !ok || !clients[client] {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.identity.ID)
	}
	metrics.ConnectedSessions.Dec()
	return true
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.IdentityIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, identityID := range msg.IdentityIDs {
		for client := range h.clients[identityID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

func (h *Hub) GetConnectedClients(identityID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identityID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) {
	msg := wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert)
	select {
	case h.broadcast <- &BroadcastMessage{Channel: wstypes.ChannelSystem, Message: msg}:
	case <-h.done:
	}
}

// RevokeSession tells every socket opened with the given token that it was revoked and
// disconnects them. It returns the number of sockets closed.
func (h *Hub) RevokeSession(identityID uuid.UUID, sessionID, reason string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := wstypes.NewMessage(wstypes.EventTypeSessionRevoked, wstypes.SessionEventData{
		TokenID: sessionID,
		Reason:  reason,
		Message: "Your session has ended",
	})

	closed := 0
	for client := range h.clients[identityID] {
		if client.sessionID != sessionID {
			continue
		}
		client.SendMessage(msg)
		h.removeLocked(client)
		client.Close()
		closed++
	}

	if closed > 0 {
		h.logger.Info("revoked websocket session",
			zap.String("identity_id", identityID.String()),
			zap.String("session_id", sessionID),
			zap.String("reason", reason),
			zap.Int("closed", closed),
		)
	}
	return closed
}

// DisconnectUser forcefully disconnects all sessions for a user
func (h *Hub) DisconnectUser(identityID uuid.UUID, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
		"reason": reason,
	})
	for client := range h.clients[identityID] {
		client.SendMessage(msg)
		h.removeLocked(client)
		client.Close()
	}
	h.logger.Info("disconnected all clients",
		zap.String("identity_id", identityID.String()),
		zap.String("reason", reason),
	)
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := wstypes.NewMessage(wstypes.EventTypeSystemAlert, wstypes.SystemAlertData{
		Severity: "warning",
		Title:    "Server shutting down",
		Message:  "The connection will be closed",
	})
	for _, clients := range h.clients {
		for client := range clients {
			if client.IsSubscribed(wstypes.ChannelSystem) {
				client.SendMessage(msg)
			}
			h.removeLocked(client)
			client.Close()
		}
	}
	h.logger.Info("websocket hub stopped")
}
