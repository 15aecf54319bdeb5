package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/internal/server"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
)

// Repository is the preference persistence surface the handler needs.
type Repository interface {
	Get(ctx context.Context, identity string) (*models.PreferenceRecord, error)
	Merge(ctx context.Context, identity string, patch models.PreferencePatch) (*models.PreferenceRecord, error)
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]models.PreferenceRecord, error)
}

// AdminGuard authorizes admin-only endpoints. Returns nil when the request
// carries a valid admin credential.
type AdminGuard func(r *http.Request) error

// Handler serves the preference API.
type Handler struct {
	repo   Repository
	bus    *event.Bus
	admin  AdminGuard
	logger *zap.Logger
}

// NewHandler creates a preference API handler. admin may be nil, which
// disables the admin-only endpoints.
func NewHandler(repo Repository, bus *event.Bus, admin AdminGuard, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, bus: bus, admin: admin, logger: logger}
}

// RegisterRoutes mounts the preference endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/preferences/{identity}", h.handleGet)
	mux.HandleFunc("PUT /api/v1/preferences/{identity}", h.handlePut)
	mux.HandleFunc("GET /api/v1/preferences", h.handleList)
	mux.HandleFunc("DELETE /api/v1/preferences/{identity}", h.handleDelete)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	record, err := h.repo.Get(r.Context(), identity)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("preference read failed", zap.String("identity", identity), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "preference read failed"))
		return
	}

	// A missing record is a normal first-touch outcome: return null and let
	// the agent derive defaults.
	writeJSON(w, http.StatusOK, models.GetPreferencesResponse{Record: record})
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	var patch models.PreferencePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	if patch.ItemsPerPage != nil && (*patch.ItemsPerPage < 1 || *patch.ItemsPerPage > 500) {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "items_per_page must be between 1 and 500"))
		return
	}

	merged, err := h.repo.Merge(r.Context(), identity, patch)
	if err != nil {
		h.logger.Error("preference merge failed", zap.String("identity", identity), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "preference write failed"))
		return
	}

	h.bus.PublishAsync(r.Context(), event.Event{
		Topic:   event.TopicPrefsUpdated,
		Source:  "prefs",
		Payload: *merged,
	})

	writeJSON(w, http.StatusOK, merged)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(w, r) {
		return
	}

	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("preference list failed", zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "preference list failed"))
		return
	}
	if list == nil {
		list = []models.PreferenceRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(w, r) {
		return
	}

	identity := r.PathValue("identity")
	if err := h.repo.Delete(r.Context(), identity); err != nil {
		h.logger.Error("preference delete failed", zap.String("identity", identity), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "preference delete failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authorizeAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.admin == nil {
		server.WriteProblem(w, server.NewProblem(http.StatusForbidden, "Forbidden", "admin endpoints are disabled"))
		return false
	}
	if err := h.admin(r); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusForbidden, "Forbidden", err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
