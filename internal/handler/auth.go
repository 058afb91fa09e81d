package handler

import (
	"context"
	"net/http"

	"github.com/capitalize-ai/alpine-chat/internal/middleware"
	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

// Authenticator registers and logs in users.
type Authenticator interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error)
	Authenticate(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error)
}

// AuthHandler handles account endpoints.
type AuthHandler struct {
	auth   Authenticator
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(a Authenticator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: log}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	for _, err := range []error{
		middleware.ValidateEmail(req.Email),
		middleware.ValidatePassword(req.Password),
		middleware.ValidateFullName(req.FullName),
	} {
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	}

	resp, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, r, h.logger, &middleware.ValidationError{Field: "email and password", Message: "are required"})
		return
	}

	resp, err := h.auth.Authenticate(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.GetUser(r.Context()))
}
