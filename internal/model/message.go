package model

import (
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a persisted conversation turn. Messages are immutable.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Attachment payload is base64 encoded. Only images are stored.
	HasAttachment  bool   `json:"has_attachment"`
	AttachmentData string `json:"attachment_data,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Seq breaks creation-time ties; assigned by the store on append.
	Seq int64 `json:"-"`
}

// HasImage reports whether the message carries an image attachment.
func (m *Message) HasImage() bool {
	return m.HasAttachment && IsImageType(m.AttachmentType)
}

// IsImageType reports whether a MIME type denotes an image.
func IsImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// Upload is a file submitted alongside a chat message.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendMessageRequest is one inbound chat message.
type SendMessageRequest struct {
	ConversationID string
	Content        string
	Upload         *Upload
}

// SendMessageResponse carries both sides of a completed exchange.
type SendMessageResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
