// ABOUTME: HTTP API handlers for account and ledger endpoints
// ABOUTME: Maps service errors onto HTTP status codes and JSON bodies

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/assetlink/ledger-gateway/internal/auth"
	"github.com/assetlink/ledger-gateway/internal/ca"
	"github.com/assetlink/ledger-gateway/internal/ledger"
	"github.com/assetlink/ledger-gateway/internal/store"
	"github.com/assetlink/ledger-gateway/internal/wallet"
)

// Ledger is the contract surface the handlers need. *ledger.Gateway
// satisfies it; tests substitute a fake.
type Ledger interface {
	InitLedger(username string) error
	GetAllAssets(username string) ([]ledger.Asset, error)
	ReadAsset(username, id string) (*ledger.Asset, error)
	CreateAsset(username string, req *ledger.CreateAssetRequest) (string, error)
}

// Handler serves the HTTP API.
type Handler struct {
	accounts *auth.Service
	verifier auth.TokenVerifier
	ledger   Ledger
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(accounts *auth.Service, verifier auth.TokenVerifier, l Ledger) *Handler {
	return &Handler{
		accounts: accounts,
		verifier: verifier,
		ledger:   l,
		logger:   slog.Default().With("component", "api"),
	}
}

// Routes registers all API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health-check", h.handleHealthCheck)
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)

	authed := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(h.verifier, fn)
	}
	mux.Handle("GET /auth/profile", authed(h.handleProfile))
	mux.Handle("POST /networks/init-ledger", authed(h.handleInitLedger))
	mux.Handle("GET /networks/all-assets", authed(h.handleAllAssets))
	mux.Handle("GET /networks/read-asset/{id}", authed(h.handleReadAsset))
	mux.Handle("POST /networks/create-asset", authed(h.handleCreateAsset))
}

// UserResponse is the JSON shape for user records. Password hashes never
// leave the store layer.
type UserResponse struct {
	Username  string `json:"username"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	CreatedAt string `json:"created_at"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		Username:  u.Username,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// LoginRequest is the JSON request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /auth/login.
type LoginResponse struct {
	Token string `json:"token"`
}

// CreateAssetResponse is the JSON response for POST /networks/create-asset.
type CreateAssetResponse struct {
	ID string `json:"id"`
}

func (h *Handler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Profile(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

func (h *Handler) handleInitLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.InitLedger(auth.UserFromContext(r.Context())); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ledger initialized"})
}

func (h *Handler) handleAllAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.ledger.GetAllAssets(auth.UserFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) handleReadAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.ledger.ReadAsset(auth.UserFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.ledger.CreateAsset(auth.UserFromContext(r.Context()), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateAssetResponse{ID: id})
}

// writeServiceError maps service-layer errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, store.ErrUserNotFound), errors.Is(err, wallet.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrUsernameExists), errors.Is(err, wallet.ErrAlreadyExists), errors.Is(err, ca.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "ledger operation timed out")
	case errors.Is(err, ledger.ErrTransport), errors.Is(err, ledger.ErrMalformedResult):
		writeError(w, http.StatusBadGateway, "ledger unavailable")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
