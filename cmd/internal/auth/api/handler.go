package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"collab/cmd/identity"
	"collab/cmd/internal/auth"
	"collab/cmd/internal/httpio"
)

// Authenticator is the subset of *auth.Service used by Handler.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (identity.Account, error)
	Login(ctx context.Context, username, password string) (identity.Account, error)
}

// Handler wires the register and login endpoints to an Authenticator.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc Authenticator
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, svc Authenticator, cfg Config) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("authapi: nil service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, svc: svc}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req credentialsRequest
	if err := httpio.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	_, err := h.svc.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		httpio.WriteJSON(w, http.StatusCreated, httpio.MessageBody{Message: "Registration successful"})
	case errors.Is(err, auth.ErrInvalidUsername):
		httpio.WriteError(w, http.StatusBadRequest, "invalid_username",
			"Username must be 5-20 characters of letters, digits or underscore")
	case errors.Is(err, auth.ErrInvalidPassword):
		httpio.WriteError(w, http.StatusBadRequest, "invalid_password",
			"Password must be at least 8 characters and contain a letter and a digit")
	case errors.Is(err, auth.ErrUsernameTaken):
		httpio.WriteError(w, http.StatusConflict, "username_taken", "Username already exists")
	default:
		h.log.Error("auth.register.fail", "err", err)
		httpio.WriteServerError(w)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !httpio.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req credentialsRequest
	if err := httpio.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpio.WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	_, err := h.svc.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		httpio.WriteJSON(w, http.StatusOK, httpio.MessageBody{Message: "Login successful"})
	case errors.Is(err, auth.ErrAuthenticationFailed):
		httpio.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	default:
		h.log.Error("auth.login.fail", "err", err)
		httpio.WriteServerError(w)
	}
}
