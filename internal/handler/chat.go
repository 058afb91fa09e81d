package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/capitalize-ai/alpine-chat/internal/middleware"
	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/internal/service"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

// multipartMemory is the in-memory threshold before parts spill to disk.
const multipartMemory = 8 << 20

// ChatHandler handles message exchanges.
type ChatHandler struct {
	chat           *service.ChatService
	maxUploadBytes int64
	logger         *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, maxUploadBytes int64, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, maxUploadBytes: maxUploadBytes, logger: log}
}

// SendMessage handles POST /api/chat/message. It accepts multipart or
// url-encoded forms with conversation_id, message and an optional file, or
// a JSON body with conversation_id and message.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(w, r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		respondError(w, r, h.logger, service.ErrConversationNotFound)
		return
	}
	if err := middleware.ValidateMessageContent(req.Content, req.Upload != nil); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	resp, err := h.chat.SendMessage(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) parse(w http.ResponseWriter, r *http.Request) (*model.SendMessageRequest, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			ConversationID string `json:"conversation_id"`
			Message        string `json:"message"`
		}
		if err := decodeJSON(w, r, &body, false); err != nil {
			return nil, err
		}
		return &model.SendMessageRequest{ConversationID: body.ConversationID, Content: body.Message}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, formError(err)
	}
	if r.MultipartForm == nil {
		if err := r.ParseForm(); err != nil {
			return nil, formError(err)
		}
	}

	req := &model.SendMessageRequest{
		ConversationID: r.FormValue("conversation_id"),
		Content:        r.FormValue("message"),
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return req, nil
	}
	if err != nil {
		return nil, formError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, formError(err)
	}
	if len(data) == 0 {
		return req, nil
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	req.Upload = &model.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}
	return req, nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &middleware.ValidationError{Field: "request body", Message: "exceeds the upload limit"}
	}
	return &middleware.ValidationError{Field: "form", Message: "could not be parsed"}
}
