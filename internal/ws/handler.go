package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
)

// TokenValidator checks a WebSocket auth token and returns the identity it
// belongs to.
type TokenValidator func(token string) (identity string, err error)

// Handler provides the WebSocket endpoint for live update streaming.
type Handler struct {
	hub      *Hub
	validate TokenValidator
	logger   *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes it to the event bus.
// validate may be nil, in which case connections are anonymous (identity is
// the optional device_id query parameter).
func NewHandler(bus *event.Bus, validate TokenValidator, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:      NewHub(logger),
		validate: validate,
		logger:   logger,
	}
	h.subscribe(bus)
	return h
}

// RegisterRoutes registers the WebSocket route on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/updates", h.handleUpdates)
}

// Hub exposes the underlying hub, primarily for tests.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// handleUpdates upgrades the connection and streams server events until the
// client disconnects.
func (h *Handler) handleUpdates(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("device_id")

	// Token comes in as a query parameter because the browser WS API can't
	// set headers.
	if h.validate != nil {
		if token := r.URL.Query().Get("token"); token != "" {
			id, err := h.validate(token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			identity = id
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		identity: identity,
		send:     make(chan Message, 256),
		logger:   h.logger,
	}

	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribe forwards bus events to all connected clients.
func (h *Handler) subscribe(bus *event.Bus) {
	if bus == nil {
		return
	}

	bus.Subscribe(event.TopicPrefsUpdated, func(_ context.Context, e event.Event) {
		record, ok := e.Payload.(models.PreferenceRecord)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessagePrefsUpdated,
			Timestamp: e.Timestamp,
			Data:      PrefsUpdatedData{Record: record},
		})
	})

	bus.Subscribe(event.TopicDeviceCreated, func(_ context.Context, e event.Event) {
		id, ok := e.Payload.(string)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageDeviceCreated,
			Timestamp: e.Timestamp,
			Data:      DeviceCreatedData{DeviceID: id},
		})
	})

	bus.Subscribe(event.TopicInventorySaved, func(_ context.Context, e event.Event) {
		item, ok := e.Payload.(models.InventoryItem)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageInventorySaved,
			Timestamp: e.Timestamp,
			Data:      InventorySavedData{Item: item},
		})
	})

	h.logger.Info("subscribed to server events for WebSocket broadcasting")
}
