package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/stores"
	"github.com/ghost-in-the-sushi/efficio-webapp/middleware"
	"github.com/ghost-in-the-sushi/efficio-webapp/password"
)

const maxBodyBytes = 64 << 10

// Accounts is the part of *efficio.Engine the handlers need.
type Accounts interface {
	Register(ctx context.Context, req efficio.RegisterRequest) (string, error)
	Login(ctx context.Context, username string, pwd password.Secret) (string, string, error)
	Logout(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (string, error)
	Flush(ctx context.Context) error
}

// Stores is the owned-store registry. *stores.Resources satisfies it.
type Stores interface {
	CreateStore(ctx context.Context, accountID, name string) (string, error)
	ListStores(ctx context.Context, accountID string) ([]stores.OwnedStore, error)
}

// Handler routes API requests to the engine.
type Handler struct {
	accounts Accounts
	stores   Stores
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Handler. A nil logger discards.
func New(accounts Accounts, ownedStores Stores, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{
		accounts: accounts,
		stores:   ownedStores,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.ClientIP(h.mux).ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	guard := middleware.RequireSession(h.accounts)

	h.mux.HandleFunc("POST /user", h.handleRegister)
	h.mux.HandleFunc("POST /login", h.handleLogin)
	h.mux.HandleFunc("POST /logout", h.handleLogout)
	h.mux.HandleFunc("DELETE /user", h.handleDeleteUser)
	h.mux.Handle("POST /store", guard(http.HandlerFunc(h.handleCreateStore)))
	h.mux.Handle("GET /stores", guard(http.HandlerFunc(h.handleListStores)))
	h.mux.HandleFunc("GET /nuke", h.handleNuke)
}

type tokenResponse struct {
	SessionToken string `json:"session_token"`
}

type loginRequest struct {
	Username string          `json:"username"`
	Password password.Secret `json:"password"`
}

type createStoreRequest struct {
	Name string `json:"name"`
}

type createStoreResponse struct {
	StoreID string `json:"store_id"`
}

type errorResponse struct {
	Msg string `json:"msg"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req efficio.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		req.Password.Wipe()
		req.Email.Wipe()
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	username := req.Username
	token, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, efficio.ErrUsernameTaken) {
			h.writeError(w, http.StatusNotAcceptable, fmt.Sprintf("Username %s is not available.", username))
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{SessionToken: token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		req.Password.Wipe()
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, _, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{SessionToken: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), middleware.SessionToken(r)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())

	var req createStoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	storeID, err := h.stores.CreateStore(r.Context(), accountID, req.Name)
	if err != nil {
		if errors.Is(err, stores.ErrInvalidStoreName) {
			h.writeError(w, http.StatusBadRequest, "Invalid store name")
			return
		}
		h.logger.ErrorContext(r.Context(), "create store", "account_id", accountID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, createStoreResponse{StoreID: storeID})
}

func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountIDFromContext(r.Context())

	owned, err := h.stores.ListStores(r.Context(), accountID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list stores", "account_id", accountID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, owned)
}

func (h *Handler) handleNuke(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Flush(r.Context()); err != nil {
		if errors.Is(err, efficio.ErrFlushDisabled) {
			http.NotFound(w, r)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleServiceError maps engine sentinels to status codes.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, efficio.ErrUsernameTaken):
		h.writeError(w, http.StatusNotAcceptable, "Username is not available.")
	case errors.Is(err, efficio.ErrInvalidCredentials):
		h.writeError(w, http.StatusBadRequest, "Invalid username or password")
	case errors.Is(err, efficio.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, efficio.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, efficio.ErrLoginRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many failed login attempts")
	default:
		// The engine already logged the cause of ErrInternal.
		if !errors.Is(err, efficio.ErrInternal) {
			h.logger.ErrorContext(r.Context(), "unexpected service error", "path", r.URL.Path, "error", err)
		}
		h.writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Msg: msg})
}
