package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/alpine-chat/internal/middleware"
	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/internal/service"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/chat/conversation
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/chat/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// Get handles GET /api/chat/conversation/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	conv, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Messages handles GET /api/chat/conversation/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	msgs, err := h.service.ListMessages(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// Delete handles DELETE /api/chat/conversation/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.DeleteConversationResponse{Message: "Conversation deleted successfully"})
}

// conversationID reads the path id. Malformed ids cannot exist and are
// reported as not found.
func (h *ConversationHandler) conversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		respondError(w, r, h.logger, service.ErrConversationNotFound)
		return "", false
	}
	return id, true
}
