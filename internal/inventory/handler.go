package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/internal/server"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
)

// Repository is the inventory persistence surface the handler needs.
type Repository interface {
	Save(ctx context.Context, item models.InventoryItem) (*models.InventoryItem, error)
	Get(ctx context.Context, id int64) (*models.InventoryItem, error)
	List(ctx context.Context, category, subteam string) ([]models.InventoryItem, error)
	Search(ctx context.Context, q string) ([]models.InventoryItem, error)
	Update(ctx context.Context, item models.InventoryItem) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*models.InventoryStats, error)
}

// Handler serves the inventory API.
type Handler struct {
	repo   Repository
	bus    *event.Bus
	logger *zap.Logger
}

// NewHandler creates an inventory API handler.
func NewHandler(repo Repository, bus *event.Bus, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, bus: bus, logger: logger}
}

// RegisterRoutes mounts the inventory endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/inventory", h.handleSave)
	mux.HandleFunc("GET /api/v1/inventory", h.handleList)
	mux.HandleFunc("GET /api/v1/inventory/statistics", h.handleStats)
	mux.HandleFunc("GET /api/v1/inventory/search", h.handleSearch)
	mux.HandleFunc("GET /api/v1/inventory/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/v1/inventory/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/inventory/{id}", h.handleDelete)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var item models.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	if item.PartNumber == "" {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "part_number is required"))
		return
	}
	if item.Quantity < 0 {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "quantity must not be negative"))
		return
	}

	saved, err := h.repo.Save(r.Context(), item)
	if err != nil {
		h.logger.Error("inventory save failed", zap.String("part_number", item.PartNumber), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory save failed"))
		return
	}

	h.bus.PublishAsync(r.Context(), event.Event{
		Topic:   event.TopicInventorySaved,
		Source:  "inventory",
		Payload: *saved,
	})

	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List(r.Context(), r.URL.Query().Get("category"), r.URL.Query().Get("subteam"))
	if err != nil {
		h.logger.Error("inventory list failed", zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory list failed"))
		return
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "query parameter q is required"))
		return
	}

	items, err := h.repo.Search(r.Context(), q)
	if err != nil {
		h.logger.Error("inventory search failed", zap.String("q", q), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory search failed"))
		return
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Error("inventory stats failed", zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory stats failed"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	item, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		server.WriteProblem(w, server.NewProblem(http.StatusNotFound, "Not Found", "no such inventory item"))
		return
	}
	if err != nil {
		h.logger.Error("inventory get failed", zap.Int64("id", id), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory read failed"))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var item models.InventoryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	item.ItemID = id

	err := h.repo.Update(r.Context(), item)
	if errors.Is(err, ErrNotFound) {
		server.WriteProblem(w, server.NewProblem(http.StatusNotFound, "Not Found", "no such inventory item"))
		return
	}
	if err != nil {
		h.logger.Error("inventory update failed", zap.Int64("id", id), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory update failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	err := h.repo.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		server.WriteProblem(w, server.NewProblem(http.StatusNotFound, "Not Found", "no such inventory item"))
		return
	}
	if err != nil {
		h.logger.Error("inventory delete failed", zap.Int64("id", id), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "inventory delete failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "item ID must be an integer"))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
