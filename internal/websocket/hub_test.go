package websocket_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/technician"
	"impriartex-service/internal/domain/ticket"
	wstypes "impriartex-service/internal/domain/websocket"
	"impriartex-service/internal/projection"
	ws "impriartex-service/internal/websocket"
	handlers "impriartex-service/internal/websocket/handler"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLoader struct {
	mu      sync.Mutex
	tickets []ticket.View
	err     error
}

func (s *stubLoader) ListCustomers(context.Context) ([]customer.Customer, error) {
	return []customer.Customer{{ID: uuid.New(), Name: "City Hall"}}, nil
}

func (s *stubLoader) ListEquipment(context.Context) ([]equipment.View, error) {
	return []equipment.View{{Equipment: equipment.Equipment{ID: uuid.New(), Serial: "SN-1"}}}, nil
}

func (s *stubLoader) ListTechnicians(context.Context) ([]technician.Profile, error) {
	return nil, nil
}

func (s *stubLoader) ListTickets(context.Context, ticket.Filter) ([]ticket.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]ticket.View(nil), s.tickets...), nil
}

func (s *stubLoader) addTicket(status ticket.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, ticket.View{Ticket: ticket.Ticket{ID: uuid.New(), Status: status}})
}

type harness struct {
	hub    *ws.Hub
	broker *changefeed.Broker
	server *httptest.Server
	cancel context.CancelFunc
	actor  identity.Identity
}

func newHarness(t *testing.T, loader projection.Loader) *harness {
	t.Helper()
	logger := zap.NewNop()
	broker := changefeed.NewBroker()

	hub := ws.NewHub(func(actor identity.Identity, opts projection.Options) *projection.Cache {
		return projection.NewCache(actor, loader, broker, logger, opts)
	}, logger)
	hub.RegisterHandler(handlers.NewProjectionHandler())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := &harness{
		hub:    hub,
		broker: broker,
		cancel: cancel,
		actor:  identity.Identity{ID: uuid.New(), Role: identity.RoleSupervisor, FullName: "Sofia Sup"},
	}

	upgrader := websocket.Upgrader{}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := ws.NewClient(hub, conn, &ws.ClientAuth{
			Identity:  h.actor,
			SessionID: r.URL.Query().Get("jti"),
		})
		hub.Register <- client
		go client.WritePump()
		go client.ReadPump()
	}))

	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		h.server.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, jti string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?jti=" + jti
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type inbound struct {
	Type wstypes.EventType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// next reads until a message of the wanted type arrives.
func next(t *testing.T, conn *websocket.Conn, want wstypes.EventType) inbound {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", want)
		var msg inbound
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, eventType wstypes.EventType, data interface{}) {
	t.Helper()
	b, err := wstypes.NewMessage(eventType, data).ToJSON()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func TestHub_PushesSnapshotOnConnectAndOnChange(t *testing.T) {
	loader := &stubLoader{}
	loader.addTicket(ticket.StatusOpen)
	h := newHarness(t, loader)

	conn := h.dial(t, "jti-1")
	next(t, conn, wstypes.EventTypeConnected)

	var snap projection.Snapshot
	require.NoError(t, json.Unmarshal(next(t, conn, wstypes.EventTypeSnapshot).Data, &snap))
	assert.Len(t, snap.Tickets, 1)
	assert.Len(t, snap.Equipment, 1)

	loader.addTicket(ticket.StatusAssigned)
	h.broker.Publish(changefeed.NewEvent(changefeed.TableTickets, changefeed.OpInsert, uuid.NewString()))

	require.NoError(t, json.Unmarshal(next(t, conn, wstypes.EventTypeSnapshot).Data, &snap))
	assert.Len(t, snap.Tickets, 2)
	assert.Equal(t, 1, h.hub.TotalClients())
}

func TestHub_SummaryAndPing(t *testing.T) {
	loader := &stubLoader{}
	loader.addTicket(ticket.StatusOpen)
	loader.addTicket(ticket.StatusAssigned)
	h := newHarness(t, loader)

	conn := h.dial(t, "jti-1")
	next(t, conn, wstypes.EventTypeSnapshot)

	send(t, conn, wstypes.EventTypeSummaryRequest, nil)
	var summary projection.Summary
	require.NoError(t, json.Unmarshal(next(t, conn, wstypes.EventTypeSummary).Data, &summary))
	assert.Equal(t, 1, summary.Open)
	assert.Equal(t, 1, summary.InAttention)
	assert.Equal(t, 1, summary.Fleet)

	send(t, conn, wstypes.EventTypePing, nil)
	next(t, conn, wstypes.EventTypePong)

	send(t, conn, wstypes.EventTypeRefresh, nil)
	next(t, conn, wstypes.EventTypeSnapshot)
}

func TestHub_UnsubscribedClientGetsNoSnapshots(t *testing.T) {
	loader := &stubLoader{}
	h := newHarness(t, loader)

	conn := h.dial(t, "jti-1")
	next(t, conn, wstypes.EventTypeSnapshot)

	send(t, conn, wstypes.EventTypeUnsubscribe, wstypes.UnsubscribeRequest{
		Channels: []wstypes.ChannelType{wstypes.ChannelProjection},
	})
	next(t, conn, wstypes.EventTypeUnsubscribe)

	h.broker.Publish(changefeed.NewEvent(changefeed.TableEquipment, changefeed.OpUpdate, ""))
	send(t, conn, wstypes.EventTypePing, nil)

	// the pong is the next message; no snapshot is queued ahead of it
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg inbound
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, wstypes.EventTypePong, msg.Type)
}

func TestHub_RevokeSessionClosesOnlyThatSession(t *testing.T) {
	h := newHarness(t, &stubLoader{})

	revoked := h.dial(t, "jti-revoked")
	next(t, revoked, wstypes.EventTypeSnapshot)
	kept := h.dial(t, "jti-kept")
	next(t, kept, wstypes.EventTypeSnapshot)

	require.Eventually(t, func() bool { return h.hub.TotalClients() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, h.broker.Subscribers())

	assert.Equal(t, 1, h.hub.RevokeSession(h.actor.ID, "jti-revoked", "logout"))

	var data wstypes.SessionEventData
	require.NoError(t, json.Unmarshal(next(t, revoked, wstypes.EventTypeSessionRevoked).Data, &data))
	assert.Equal(t, "jti-revoked", data.TokenID)
	assert.Equal(t, "logout", data.Reason)

	_, _, err := revoked.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Equal(t, 1, h.hub.GetConnectedClients(h.actor.ID))
	assert.Eventually(t, func() bool { return h.broker.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	send(t, kept, wstypes.EventTypePing, nil)
	next(t, kept, wstypes.EventTypePong)
}

func TestHub_InitialLoadFailureClosesSession(t *testing.T) {
	h := newHarness(t, &stubLoader{err: errors.New("connection reset by peer")})

	conn := h.dial(t, "jti-1")

	var data wstypes.ErrorData
	require.NoError(t, json.Unmarshal(next(t, conn, wstypes.EventTypeError).Data, &data))
	assert.Equal(t, "projection_unavailable", data.Code)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return h.hub.TotalClients() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.broker.Subscribers())
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := newHarness(t, &stubLoader{})

	conn := h.dial(t, "jti-1")
	next(t, conn, wstypes.EventTypeSnapshot)

	h.cancel()
	<-h.hub.Done()

	next(t, conn, wstypes.EventTypeSystemAlert)
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.hub.TotalClients())
	assert.Eventually(t, func() bool { return h.broker.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}
