// internal/websocket/handler/projection.go
package handlers

import (
	"context"
	"fmt"

	wstypes "impriartex-service/internal/domain/websocket"
	ws "impriartex-service/internal/websocket"
)

// ProjectionHandler answers client requests against the session's own projection.
type ProjectionHandler struct{}

func NewProjectionHandler() *ProjectionHandler {
	return &ProjectionHandler{}
}

func (h *ProjectionHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeRefresh,
		wstypes.EventTypeSummaryRequest,
	}
}

func (h *ProjectionHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	if client.Projection() == nil {
		client.SendError("projection_unavailable", "No projection for this session", "")
		return nil
	}

	switch msg.Type {
	case wstypes.EventTypeRefresh:
		return h.handleRefresh(ctx, client)

	case wstypes.EventTypeSummaryRequest:
		return h.handleSummary(client)

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

// handleRefresh forces a reload; the fresh snapshot is pushed by the cache itself.
func (h *ProjectionHandler) handleRefresh(ctx context.Context, client *ws.Client) error {
	if err := client.Projection().Reload(ctx); err != nil {
		client.SendError("refresh_failed", "Failed to reload state", err.Error())
	}
	return nil
}

func (h *ProjectionHandler) handleSummary(client *ws.Client) error {
	snap, ok := client.Projection().Snapshot()
	if !ok {
		client.SendError("not_ready", "Initial state is still loading", "")
		return nil
	}

	msg := wstypes.NewMessage(wstypes.EventTypeSummary, snap.Summary())
	msg.Metadata = map[string]interface{}{"loaded_at": snap.LoadedAt}
	client.SendMessage(msg)
	return nil
}
