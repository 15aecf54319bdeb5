package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jheath/partsbin/internal/server"
	"go.uber.org/zap"
)

// Directory is the account surface the handler needs.
type Directory interface {
	CreateUser(ctx context.Context, username, password string, role Role, category, subteam string) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	LinkDevice(ctx context.Context, userID, deviceID string) error
	CountUsers(ctx context.Context) (int, error)
}

// Handler serves the auth API.
type Handler struct {
	users  Directory
	tokens *TokenService
	logger *zap.Logger
}

// NewHandler creates an auth API handler.
func NewHandler(users Directory, tokens *TokenService, logger *zap.Logger) *Handler {
	return &Handler{users: users, tokens: tokens, logger: logger}
}

// RegisterRoutes mounts the auth endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/verify", h.handleVerify)
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Category string `json:"category,omitempty"`
	Subteam  string `json:"subteam,omitempty"`
}

// LoginRequest authenticates an account. DeviceID optionally links the
// requesting device to the account.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request",
			"username is required and password must be at least 8 characters"))
		return
	}

	// The first account ever created becomes the admin.
	role := RoleMember
	if n, err := h.users.CountUsers(r.Context()); err == nil && n == 0 {
		role = RoleAdmin
	}

	u, err := h.users.CreateUser(r.Context(), req.Username, req.Password, role, req.Category, req.Subteam)
	if errors.Is(err, ErrUserExists) {
		server.WriteProblem(w, server.NewProblem(http.StatusConflict, "Conflict", "username already exists"))
		return
	}
	if err != nil {
		h.logger.Error("register failed", zap.String("username", req.Username), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "registration failed"))
		return
	}

	h.logger.Info("user registered", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteProblem(w, server.NewProblem(http.StatusBadRequest, "Invalid Request", "malformed JSON body"))
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrBadCredentials) {
		server.WriteProblem(w, server.NewProblem(http.StatusUnauthorized, "Unauthorized", "invalid username or password"))
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "login failed"))
		return
	}

	if req.DeviceID != "" {
		if err := h.users.LinkDevice(r.Context(), u.ID, req.DeviceID); err != nil {
			// Linking is best-effort; a failed link never blocks login.
			h.logger.Warn("device link failed",
				zap.String("username", u.Username),
				zap.String("device_id", req.DeviceID),
				zap.Error(err))
		}
	}

	token, err := h.tokens.IssueAccessToken(u)
	if err != nil {
		h.logger.Error("token issue failed", zap.String("username", u.Username), zap.Error(err))
		server.WriteProblem(w, server.NewProblem(http.StatusInternalServerError, "Internal Server Error", "login failed"))
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(h.tokens.AccessTokenTTL()),
		User:        u,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := UserFromContext(r.Context())
	if claims == nil {
		server.WriteProblem(w, server.NewProblem(http.StatusUnauthorized, "Unauthorized", "no valid access token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"role":     claims.Role,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
