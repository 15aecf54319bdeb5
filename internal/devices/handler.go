package devices

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/internal/server"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
)

// Registry is the device lookup surface the handler needs.
type Registry interface {
	Exists(ctx context.Context, deviceID string) (bool, error)
	FindByFingerprint(ctx context.Context, hash string) (string, error)
	Create(ctx context.Context, req models.CreateDeviceRequest) (string, error)
	Touch(ctx context.Context, deviceID string) error
	List(ctx context.Context) ([]models.DeviceIdentity, error)
}

// Handler serves the device identity API.
type Handler struct {
	registry Registry
	bus      *event.Bus
	logger   *zap.Logger
}

// NewHandler creates a device API handler.
func NewHandler(registry Registry, bus *event.Bus, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, bus: bus, logger: logger}
}

// RegisterRoutes mounts the device endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/devices/verify", h.handleVerify)
	mux.HandleFunc("POST /api/v1/devices/lookup", h.handleLookup)
	mux.HandleFunc("POST /api/v1/devices", h.handleCreate)
	mux.HandleFunc("POST /api/v1/devices/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("GET /api/v1/devices", h.handleList)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	if req.DeviceID == "" {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "device_id is required"))
		return
	}

	exists, err := h.registry.Exists(r.Context(), req.DeviceID)
	if err != nil {
		h.logger.Error("device verify failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "device lookup failed"))
		return
	}
	if exists {
		// A successful verification counts as activity.
		if err := h.registry.Touch(r.Context(), req.DeviceID); err != nil {
			h.logger.Warn("last_seen update failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, models.VerifyDeviceResponse{Exists: exists})
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req models.LookupDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	if req.FingerprintHash == "" {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "fingerprint_hash is required"))
		return
	}

	id, err := h.registry.FindByFingerprint(r.Context(), req.FingerprintHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("fingerprint lookup failed", zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "fingerprint lookup failed"))
		return
	}

	if id != "" {
		if err := h.registry.Touch(r.Context(), id); err != nil {
			h.logger.Warn("last_seen update failed", zap.String("device_id", id), zap.Error(err))
		}
	}

	// A miss is a normal outcome, not an error: the agent falls through to
	// registration.
	writeJSON(w, http.StatusOK, models.LookupDeviceResponse{DeviceID: id})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	if req.FingerprintHash == "" {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "fingerprint_hash is required"))
		return
	}
	if !validFingerprintHash(req.FingerprintHash) {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "fingerprint_hash must be a hex SHA-256 digest"))
		return
	}

	id, err := h.registry.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("device create failed", zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "device registration failed"))
		return
	}

	h.bus.PublishAsync(r.Context(), event.Event{
		Topic:   event.TopicDeviceCreated,
		Source:  "devices",
		Payload: id,
	})

	h.logger.Info("device registered", zap.String("device_id", id), zap.String("platform", req.Platform))
	writeJSON(w, http.StatusCreated, models.CreateDeviceResponse{DeviceID: id})
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}

	err := h.registry.Touch(r.Context(), req.DeviceID)
	if errors.Is(err, ErrNotFound) {
		server.WriteProblem(w, server.NewProblem(http.StatusNotFound, "Not Found", "device is not registered"))
		return
	}
	if err != nil {
		h.logger.Error("heartbeat failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "heartbeat failed"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("device list failed", zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "device list failed"))
		return
	}
	if list == nil {
		list = []models.DeviceIdentity{}
	}
	writeJSON(w, http.StatusOK, list)
}

// validFingerprintHash accepts a lowercase or uppercase hex SHA-256 digest.
func validFingerprintHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F')
	}) < 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
